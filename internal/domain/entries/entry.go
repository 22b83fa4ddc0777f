package entries

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry is a diary entry. Sentiment, location and InsightsProcessed are
// owned by the reconciler; the edit path only touches Title/Content/IsPublic.
type Entry struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title             string     `gorm:"column:title;not null" json:"title"`
	Content           string     `gorm:"column:content;type:text;not null" json:"content"`
	IsPublic          bool       `gorm:"column:is_public;not null;default:false" json:"is_public"`
	OverallSentiment  *float64   `gorm:"column:overall_sentiment" json:"overall_sentiment,omitempty"`
	InsightsProcessed bool       `gorm:"column:insights_processed;not null;default:false;index" json:"insights_processed"`
	Latitude          *float64   `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude         *float64   `gorm:"column:longitude" json:"longitude,omitempty"`
	LocationName      string     `gorm:"column:location_name" json:"location_name,omitempty"`
	Documents         []Document `gorm:"foreignKey:EntryID" json:"documents,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (Entry) TableName() string { return "entry" }

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// HasLocation reports whether a geocoded position has been stored.
func (e *Entry) HasLocation() bool {
	return e != nil && e.Latitude != nil && e.Longitude != nil
}
