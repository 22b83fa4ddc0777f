package entries

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type EntryRepo interface {
	Create(dbc dbctx.Context, entry *types.Entry) (*types.Entry, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Entry, error)
	// LockByID loads the entry with a row lock held until the surrounding
	// transaction ends. Must be called with dbc.Tx set.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Entry, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	ListUnprocessedIDs(dbc dbctx.Context, limit int) ([]uuid.UUID, error)
	CountByProcessed(dbc dbctx.Context) (total int64, processed int64, err error)
}

type entryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntryRepo(db *gorm.DB, baseLog *logger.Logger) EntryRepo {
	return &entryRepo{db: db, log: baseLog.With("repo", "EntryRepo")}
}

func (r *entryRepo) Create(dbc dbctx.Context, entry *types.Entry) (*types.Entry, error) {
	if entry == nil {
		return nil, apperr.New(apperr.CodeValidation, "EntryRepo.Create", "nil entry")
	}
	if err := dbc.Conn(r.db).Omit(clause.Associations).Create(entry).Error; err != nil {
		return nil, apperr.MapDB("EntryRepo.Create", err)
	}
	return entry, nil
}

func (r *entryRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Entry, error) {
	var e types.Entry
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, apperr.MapDB("EntryRepo.GetByID", err)
	}
	return &e, nil
}

func (r *entryRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Entry, error) {
	var e types.Entry
	err := dbc.Conn(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&e).Error
	if err != nil {
		return nil, apperr.MapDB("EntryRepo.LockByID", err)
	}
	return &e, nil
}

func (r *entryRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.Conn(r.db).Model(&types.Entry{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return apperr.MapDB("EntryRepo.UpdateFields", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Newf(apperr.CodeNotFound, "EntryRepo.UpdateFields", "entry %s not found", id)
	}
	return nil
}

// Delete removes the entry together with its documents and insights.
func (r *entryRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("entry_id = ?", id).Delete(&types.Insight{}).Error; err != nil {
			return err
		}
		if err := txx.Where("entry_id = ?", id).Delete(&types.Document{}).Error; err != nil {
			return err
		}
		res := txx.Where("id = ?", id).Delete(&types.Entry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return apperr.MapDB("EntryRepo.Delete", err)
}

func (r *entryRepo) ListUnprocessedIDs(dbc dbctx.Context, limit int) ([]uuid.UUID, error) {
	q := dbc.Conn(r.db).
		Model(&types.Entry{}).
		Where("insights_processed = ?", false).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []uuid.UUID
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, apperr.MapDB("EntryRepo.ListUnprocessedIDs", err)
	}
	return ids, nil
}

func (r *entryRepo) CountByProcessed(dbc dbctx.Context) (int64, int64, error) {
	var total, processed int64
	conn := dbc.Conn(r.db)
	if err := conn.Model(&types.Entry{}).Count(&total).Error; err != nil {
		return 0, 0, apperr.MapDB("EntryRepo.CountByProcessed", err)
	}
	if err := conn.Model(&types.Entry{}).Where("insights_processed = ?", true).Count(&processed).Error; err != nil {
		return 0, 0, apperr.MapDB("EntryRepo.CountByProcessed", err)
	}
	return total, processed, nil
}
