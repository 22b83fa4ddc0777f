package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type Repos struct {
	Entries    repos.EntryRepo
	Documents  repos.DocumentRepo
	Categories repos.CategoryRepo
	Insights   repos.InsightRepo
	JobRuns    repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Entries:    repos.NewEntryRepo(db, log),
		Documents:  repos.NewDocumentRepo(db, log),
		Categories: repos.NewCategoryRepo(db, log),
		Insights:   repos.NewInsightRepo(db, log),
		JobRuns:    repos.NewJobRunRepo(db, log),
	}
}
