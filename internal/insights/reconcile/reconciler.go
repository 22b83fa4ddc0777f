package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	types "github.com/yungbote/mindjourney-backend/internal/domain"
	"github.com/yungbote/mindjourney-backend/internal/insights/extract"
	"github.com/yungbote/mindjourney-backend/internal/insights/geocode"
	"github.com/yungbote/mindjourney-backend/internal/observability"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

// Result summarizes one committed reconciliation pass.
type Result struct {
	EntryID           uuid.UUID `json:"entry_id"`
	Inserted          int       `json:"inserted"`
	SkippedDuplicates int       `json:"skipped_duplicates"`
	Replaced          int64     `json:"replaced"`
	OverallSentiment  float64   `json:"overall_sentiment"`
	LocationUpdated   bool      `json:"location_updated"`
	LocationName      string    `json:"location_name,omitempty"`
}

// Notifier is told about every committed pass. Failures are logged only.
type Notifier interface {
	InsightsReady(ctx context.Context, entry *types.Entry, res Result) error
}

type NopNotifier struct{}

func (NopNotifier) InsightsReady(context.Context, *types.Entry, Result) error { return nil }

type Deps struct {
	DB         *gorm.DB
	Log        *logger.Logger
	Entries    repos.EntryRepo
	Documents  repos.DocumentRepo
	Categories repos.CategoryRepo
	Insights   repos.InsightRepo
	Extractor  extract.Extractor
	Geocoder   geocode.Geocoder
	Notifier   Notifier
}

type Reconciler struct {
	deps Deps
	log  *logger.Logger
}

func New(deps Deps) (*Reconciler, error) {
	if deps.DB == nil || deps.Entries == nil || deps.Documents == nil || deps.Categories == nil || deps.Insights == nil {
		return nil, fmt.Errorf("reconcile: missing repository deps")
	}
	if deps.Extractor == nil || deps.Geocoder == nil {
		return nil, fmt.Errorf("reconcile: missing model clients")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	return &Reconciler{deps: deps, log: deps.Log.With("component", "InsightReconciler")}, nil
}

// Reconcile runs one full pass for entryID inside a single transaction. The
// entry row is locked for the duration so passes for the same entry
// serialize. Any error rolls the pass back and leaves insights_processed
// false.
func (r *Reconciler) Reconcile(ctx context.Context, entryID uuid.UUID) (Result, error) {
	ctx, span := observability.StartSpan(ctx, "insights.reconcile", attribute.String("entry_id", entryID.String()))
	defer span.End()

	start := time.Now()
	var (
		res   Result
		entry *types.Entry
	)
	err := r.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, res, err = r.pass(dbctx.Context{Ctx: ctx, Tx: tx}, entryID)
		return err
	})

	outcome := "ok"
	if err != nil {
		outcome = string(apperr.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn("Reconciliation pass failed", "entry_id", entryID, "code", outcome, "error", err)
	}
	observability.Current().ObserveReconcile(outcome, time.Since(start))
	if err != nil {
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("insights.inserted", res.Inserted),
		attribute.Int("insights.duplicates", res.SkippedDuplicates),
	)
	r.log.Info("Reconciliation pass committed",
		"entry_id", entryID,
		"inserted", res.Inserted,
		"skipped_duplicates", res.SkippedDuplicates,
		"overall_sentiment", res.OverallSentiment,
		"location_updated", res.LocationUpdated,
	)
	if nerr := r.deps.Notifier.InsightsReady(ctx, entry, res); nerr != nil {
		r.log.Warn("Insights-ready notification failed", "entry_id", entryID, "error", nerr)
	}
	return res, nil
}

func (r *Reconciler) pass(dbc dbctx.Context, entryID uuid.UUID) (*types.Entry, Result, error) {
	res := Result{EntryID: entryID}

	entry, err := r.deps.Entries.LockByID(dbc, entryID)
	if err != nil {
		return nil, res, err
	}

	docs, err := r.deps.Documents.ListByEntry(dbc, entryID)
	if err != nil {
		return nil, res, err
	}
	text := CombinedText(entry.Content, docs)

	// Model calls come before the first write; category rows are shared
	// across entries and must not stay locked while a call is in flight.
	candidates, err := r.deps.Extractor.ExtractInsights(dbc.Ctx, text)
	if err != nil {
		return nil, res, err
	}
	places, placesErr := r.deps.Geocoder.ExtractPlaces(dbc.Ctx, text)

	res.Replaced, err = r.deps.Insights.DeleteByEntry(dbc, entryID)
	if err != nil {
		return nil, res, err
	}

	accepted := make([]extract.Candidate, 0, len(candidates))
	for _, c := range candidates {
		cat, err := r.deps.Categories.GetOrCreate(dbc, c.CategoryName, c.CategoryType)
		if err != nil {
			return nil, res, err
		}
		row := &types.Insight{
			EntryID:         entryID,
			CategoryID:      cat.ID,
			TextSnippet:     c.TextSnippet,
			SentimentScore:  c.SentimentScore,
			ConfidenceScore: c.ConfidenceScore,
			StartPosition:   c.StartPosition,
			EndPosition:     c.EndPosition,
		}
		if err := r.deps.Insights.Create(dbc, row); err != nil {
			if apperr.IsCode(err, apperr.CodeDuplicate) {
				res.SkippedDuplicates++
				observability.Current().IncDuplicateSkipped()
				r.log.Warn("Duplicate insight skipped",
					"entry_id", entryID,
					"category", c.CategoryName,
					"start", c.StartPosition,
					"end", c.EndPosition,
				)
				continue
			}
			return nil, res, err
		}
		accepted = append(accepted, c)
		observability.Current().IncInsightCreated(string(cat.Type))
	}
	res.Inserted = len(accepted)
	res.OverallSentiment = extract.OverallSentiment(accepted)

	updates := map[string]interface{}{
		"overall_sentiment":  res.OverallSentiment,
		"insights_processed": true,
	}

	switch {
	case placesErr != nil:
		r.log.Warn("Place extraction failed, keeping location", "entry_id", entryID, "error", placesErr)
	case len(places) == 0:
		r.log.Debug("No places to geocode", "entry_id", entryID)
	default:
		top := places[0]
		updates["latitude"] = top.Location.Latitude
		updates["longitude"] = top.Location.Longitude
		updates["location_name"] = top.Location.ResolvedName
		res.LocationUpdated = true
		res.LocationName = top.Location.ResolvedName
	}

	if err := r.deps.Entries.UpdateFields(dbc, entryID, updates); err != nil {
		return nil, res, err
	}
	entry.OverallSentiment = &res.OverallSentiment
	entry.InsightsProcessed = true
	if res.LocationUpdated {
		lat, lon := places[0].Location.Latitude, places[0].Location.Longitude
		entry.Latitude, entry.Longitude = &lat, &lon
		entry.LocationName = res.LocationName
	}
	return entry, res, nil
}

// CombinedText appends one delimited section per document that has
// extracted text.
func CombinedText(content string, docs []*types.Document) string {
	var b strings.Builder
	b.WriteString(content)
	for _, d := range docs {
		if d == nil || strings.TrimSpace(d.ExtractedText) == "" {
			continue
		}
		b.WriteString("\n\n[Attached Document: ")
		b.WriteString(d.Filename)
		b.WriteString("]\n")
		b.WriteString(d.ExtractedText)
	}
	return b.String()
}
