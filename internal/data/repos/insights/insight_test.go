package insights

import (
	"context"
	"testing"

	"github.com/yungbote/mindjourney-backend/internal/data/repos/testutil"
	types "github.com/yungbote/mindjourney-backend/internal/domain"
	domaininsights "github.com/yungbote/mindjourney-backend/internal/domain/insights"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
)

func TestInsightRepoDuplicateSpan(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	cats := NewCategoryRepo(db, testutil.Logger(t))
	repo := NewInsightRepo(db, testutil.Logger(t))

	e := testutil.SeedEntry(t, ctx, tx, "Lunch in Paris was lovely.")
	cat, err := cats.GetOrCreate(dbc, "Paris", domaininsights.CategoryPlace)
	if err != nil {
		t.Fatalf("category: %v", err)
	}

	mk := func(start, end int) *types.Insight {
		return &types.Insight{
			EntryID: e.ID, CategoryID: cat.ID, TextSnippet: "Paris",
			SentimentScore: 0.5, ConfidenceScore: 0.9, StartPosition: start, EndPosition: end,
		}
	}
	if err := repo.Create(dbc, mk(9, 14)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(dbc, mk(9, 14)); !apperr.IsCode(err, apperr.CodeDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	// Transaction must still be usable after the skipped duplicate.
	if err := repo.Create(dbc, mk(0, 5)); err != nil {
		t.Fatalf("create after duplicate: %v", err)
	}

	list, err := repo.ListByEntry(dbc, e.ID)
	if err != nil {
		t.Fatalf("ListByEntry: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(list))
	}
	if list[0].StartPosition != 0 || list[1].StartPosition != 9 {
		t.Fatalf("not ordered by start_position: %d, %d", list[0].StartPosition, list[1].StartPosition)
	}
	if list[0].Category == nil || list[0].Category.Name != "Paris" {
		t.Fatalf("category not preloaded")
	}

	n, err := repo.DeleteByEntry(dbc, e.ID)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByEntry n=%d err=%v", n, err)
	}
}
