package entries

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, doc *types.Document) (*types.Document, error)
	ListByEntry(dbc dbctx.Context, entryID uuid.UUID) ([]*types.Document, error)
	Delete(dbc dbctx.Context, entryID, docID uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, doc *types.Document) (*types.Document, error) {
	if doc == nil || doc.EntryID == uuid.Nil {
		return nil, apperr.New(apperr.CodeValidation, "DocumentRepo.Create", "document requires an entry")
	}
	if err := dbc.Conn(r.db).Create(doc).Error; err != nil {
		return nil, apperr.MapDB("DocumentRepo.Create", err)
	}
	return doc, nil
}

// ListByEntry returns documents in upload order.
func (r *documentRepo) ListByEntry(dbc dbctx.Context, entryID uuid.UUID) ([]*types.Document, error) {
	var out []*types.Document
	err := dbc.Conn(r.db).
		Where("entry_id = ?", entryID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.MapDB("DocumentRepo.ListByEntry", err)
	}
	return out, nil
}

func (r *documentRepo) Delete(dbc dbctx.Context, entryID, docID uuid.UUID) error {
	res := dbc.Conn(r.db).Where("id = ? AND entry_id = ?", docID, entryID).Delete(&types.Document{})
	if res.Error != nil {
		return apperr.MapDB("DocumentRepo.Delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Newf(apperr.CodeNotFound, "DocumentRepo.Delete", "document %s not found on entry %s", docID, entryID)
	}
	return nil
}
