package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
)

func SeedEntry(tb testing.TB, ctx context.Context, tx *gorm.DB, content string) *types.Entry {
	tb.Helper()
	e := &types.Entry{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Title:   "entry",
		Content: content,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed entry: %v", err)
	}
	return e
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, entryID uuid.UUID, filename, text string) *types.Document {
	tb.Helper()
	d := &types.Document{
		ID:            uuid.New(),
		EntryID:       entryID,
		StoredPath:    "documents/" + filename,
		Filename:      filename,
		SizeBytes:     int64(len(text)),
		ContentType:   "text/plain",
		ExtractedText: text,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func MarkProcessed(tb testing.TB, ctx context.Context, tx *gorm.DB, entryID uuid.UUID) {
	tb.Helper()
	if err := tx.WithContext(ctx).Model(&types.Entry{}).Where("id = ?", entryID).
		Update("insights_processed", true).Error; err != nil {
		tb.Fatalf("mark processed: %v", err)
	}
}

func PtrFloat(v float64) *float64 { return &v }
