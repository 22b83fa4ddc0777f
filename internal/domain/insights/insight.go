package insights

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Insight links a span of an entry's analyzed text to a category.
// (entry, category, start, end) is unique per entry.
type Insight struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EntryID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_insight_span,priority:1" json:"entry_id"`
	CategoryID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_insight_span,priority:2;index" json:"category_id"`
	Category        *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	TextSnippet     string    `gorm:"column:text_snippet;type:text;not null" json:"text_snippet"`
	SentimentScore  float64   `gorm:"column:sentiment_score;not null" json:"sentiment_score"`
	ConfidenceScore float64   `gorm:"column:confidence_score;not null" json:"confidence_score"`
	StartPosition   int       `gorm:"column:start_position;not null;uniqueIndex:idx_insight_span,priority:3" json:"start_position"`
	EndPosition     int       `gorm:"column:end_position;not null;uniqueIndex:idx_insight_span,priority:4" json:"end_position"`
	IsManualEdit    bool      `gorm:"column:is_manual_edit;not null;default:false" json:"is_manual_edit"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

func (Insight) TableName() string { return "insight" }

func (i *Insight) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
