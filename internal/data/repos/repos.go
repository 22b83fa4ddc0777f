package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/mindjourney-backend/internal/data/repos/entries"
	"github.com/yungbote/mindjourney-backend/internal/data/repos/insights"
	"github.com/yungbote/mindjourney-backend/internal/data/repos/jobs"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type EntryRepo = entries.EntryRepo
type DocumentRepo = entries.DocumentRepo

type CategoryRepo = insights.CategoryRepo
type InsightRepo = insights.InsightRepo

type JobRunRepo = jobs.JobRunRepo

func NewEntryRepo(db *gorm.DB, log *logger.Logger) EntryRepo {
	return entries.NewEntryRepo(db, log)
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return entries.NewDocumentRepo(db, log)
}

func NewCategoryRepo(db *gorm.DB, log *logger.Logger) CategoryRepo {
	return insights.NewCategoryRepo(db, log)
}

func NewInsightRepo(db *gorm.DB, log *logger.Logger) InsightRepo {
	return insights.NewInsightRepo(db, log)
}

func NewJobRunRepo(db *gorm.DB, log *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, log)
}
