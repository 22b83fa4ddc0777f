package insights

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
	domaininsights "github.com/yungbote/mindjourney-backend/internal/domain/insights"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

const getOrCreateAttempts = 3

type CategoryRepo interface {
	// GetOrCreate returns the row whose name matches exactly, creating it
	// with typ and an empty description when absent. Existing rows are
	// never modified.
	GetOrCreate(dbc dbctx.Context, name string, typ domaininsights.CategoryType) (*types.Category, error)
	GetByName(dbc dbctx.Context, name string) (*types.Category, error)
	List(dbc dbctx.Context) ([]*types.Category, error)
}

type categoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return &categoryRepo{db: db, log: baseLog.With("repo", "CategoryRepo")}
}

func (r *categoryRepo) GetOrCreate(dbc dbctx.Context, name string, typ domaininsights.CategoryType) (*types.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.New(apperr.CodeValidation, "CategoryRepo.GetOrCreate", "empty category name")
	}
	conn := dbc.Conn(r.db)
	for attempt := 0; attempt < getOrCreateAttempts; attempt++ {
		existing, err := r.find(conn, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}

		cat := &types.Category{ID: uuid.New(), Name: name, Type: typ}
		// A concurrent writer may win the insert; DO NOTHING keeps the
		// transaction usable on Postgres and the next read picks up its row.
		res := conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(cat)
		if res.Error != nil {
			mapped := apperr.MapDB("CategoryRepo.GetOrCreate", res.Error)
			if apperr.IsCode(mapped, apperr.CodeConflict) {
				continue
			}
			return nil, mapped
		}
		if res.RowsAffected == 1 {
			return cat, nil
		}
		r.log.Debug("Category insert lost race, re-reading", "name", name, "attempt", attempt+1)
	}
	existing, err := r.find(conn, name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.Newf(apperr.CodeConflict, "CategoryRepo.GetOrCreate", "category %q could not be resolved", name)
	}
	return existing, nil
}

func (r *categoryRepo) find(conn *gorm.DB, name string) (*types.Category, error) {
	var cat types.Category
	if err := conn.Where("name = ?", name).Limit(1).Find(&cat).Error; err != nil {
		return nil, apperr.MapDB("CategoryRepo.find", err)
	}
	if cat.ID == uuid.Nil {
		return nil, nil
	}
	return &cat, nil
}

func (r *categoryRepo) GetByName(dbc dbctx.Context, name string) (*types.Category, error) {
	cat, err := r.find(dbc.Conn(r.db), name)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "CategoryRepo.GetByName", "category %q not found", name)
	}
	return cat, nil
}

func (r *categoryRepo) List(dbc dbctx.Context) ([]*types.Category, error) {
	var out []*types.Category
	if err := dbc.Conn(r.db).Order("name ASC").Find(&out).Error; err != nil {
		return nil, apperr.MapDB("CategoryRepo.List", err)
	}
	return out, nil
}
