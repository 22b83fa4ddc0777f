package entries

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is a file attached to an entry. ExtractedText is best-effort
// and may be empty; the row is immutable apart from deletion.
type Document struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EntryID       uuid.UUID `gorm:"type:uuid;not null;index" json:"entry_id"`
	StoredPath    string    `gorm:"column:stored_path;not null" json:"stored_path"`
	Filename      string    `gorm:"column:filename;not null" json:"filename"`
	SizeBytes     int64     `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	ContentType   string    `gorm:"column:content_type" json:"content_type"`
	ExtractedText string    `gorm:"column:extracted_text;type:text" json:"extracted_text,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (Document) TableName() string { return "entry_document" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
