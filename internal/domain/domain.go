package domain

import (
	"github.com/yungbote/mindjourney-backend/internal/domain/entries"
	"github.com/yungbote/mindjourney-backend/internal/domain/insights"
	"github.com/yungbote/mindjourney-backend/internal/domain/jobs"
)

type (
	Entry    = entries.Entry
	Document = entries.Document

	Category     = insights.Category
	CategoryType = insights.CategoryType
	Insight      = insights.Insight

	JobRun = jobs.JobRun
)

// Models lists every table AutoMigrate manages.
func Models() []interface{} {
	return []interface{}{
		&entries.Entry{},
		&entries.Document{},
		&insights.Category{},
		&insights.Insight{},
		&jobs.JobRun{},
	}
}
