package insights

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type InsightRepo interface {
	DeleteByEntry(dbc dbctx.Context, entryID uuid.UUID) (int64, error)
	// Create inserts one insight. A row that collides with an existing
	// (entry, category, start, end) span returns a duplicate error and
	// leaves the transaction usable.
	Create(dbc dbctx.Context, in *types.Insight) error
	ListByEntry(dbc dbctx.Context, entryID uuid.UUID) ([]*types.Insight, error)
}

type insightRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInsightRepo(db *gorm.DB, baseLog *logger.Logger) InsightRepo {
	return &insightRepo{db: db, log: baseLog.With("repo", "InsightRepo")}
}

func (r *insightRepo) DeleteByEntry(dbc dbctx.Context, entryID uuid.UUID) (int64, error) {
	res := dbc.Conn(r.db).Where("entry_id = ?", entryID).Delete(&types.Insight{})
	if res.Error != nil {
		return 0, apperr.MapDB("InsightRepo.DeleteByEntry", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *insightRepo) Create(dbc dbctx.Context, in *types.Insight) error {
	if in == nil {
		return apperr.New(apperr.CodeValidation, "InsightRepo.Create", "nil insight")
	}
	res := dbc.Conn(r.db).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(in)
	if res.Error != nil {
		return apperr.MapDB("InsightRepo.Create", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Newf(apperr.CodeDuplicate, "InsightRepo.Create",
			"insight span %d-%d already recorded for category %s", in.StartPosition, in.EndPosition, in.CategoryID)
	}
	return nil
}

// ListByEntry returns insights ordered by start_position ascending.
func (r *insightRepo) ListByEntry(dbc dbctx.Context, entryID uuid.UUID) ([]*types.Insight, error) {
	var out []*types.Insight
	err := dbc.Conn(r.db).
		Preload("Category").
		Where("entry_id = ?", entryID).
		Order("start_position ASC").
		Order("end_position ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.MapDB("InsightRepo.ListByEntry", err)
	}
	return out, nil
}
