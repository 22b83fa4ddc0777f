package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/data/repos"
	"github.com/yungbote/mindjourney-backend/internal/documents"
	types "github.com/yungbote/mindjourney-backend/internal/domain"
	"github.com/yungbote/mindjourney-backend/internal/insights/extract"
	"github.com/yungbote/mindjourney-backend/internal/insights/sweep"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type TitleGenerator interface {
	GenerateTitle(ctx context.Context, content string) (string, error)
}

type CreateEntryInput struct {
	OwnerID  uuid.UUID
	Title    string
	Content  string
	IsPublic bool
}

// UpdateEntryInput applies only the non-nil fields.
type UpdateEntryInput struct {
	Title    *string
	Content  *string
	IsPublic *bool
}

type EntryWithInsights struct {
	Entry    *types.Entry     `json:"entry"`
	Insights []*types.Insight `json:"insights"`
}

/*
EntryService is the producer side of the pipeline. Every write that can
change the analyzed text resets insights_processed and schedules a pass.
Scheduling failures are logged and never fail the write; the sweep catches
anything left behind.
*/
type EntryService interface {
	CreateEntry(ctx context.Context, in CreateEntryInput) (*types.Entry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*types.Entry, error)
	UpdateEntry(ctx context.Context, id uuid.UUID, in UpdateEntryInput) (*types.Entry, error)
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	AttachDocument(ctx context.Context, entryID uuid.UUID, filename, declaredType string, data []byte) (*types.Document, error)
	DeleteDocument(ctx context.Context, entryID, docID uuid.UUID) error
	GetInsights(ctx context.Context, entryID uuid.UUID) (*EntryWithInsights, error)
	Reprocess(ctx context.Context, entryID uuid.UUID) error
	InsightsStatus(ctx context.Context) (sweep.Report, error)
	RetryUnprocessed(ctx context.Context) (sweep.Report, error)
}

type EntryServiceDeps struct {
	Log       *logger.Logger
	Entries   repos.EntryRepo
	Documents repos.DocumentRepo
	Insights  repos.InsightRepo
	Store     documents.Store
	Titles    TitleGenerator
	Scheduler ReconcileScheduler
	Sweeper   *sweep.Sweeper
}

type entryService struct {
	deps     EntryServiceDeps
	log      *logger.Logger
	maxBytes int
}

func NewEntryService(deps EntryServiceDeps) EntryService {
	return &entryService{
		deps:     deps,
		log:      deps.Log.With("service", "EntryService"),
		maxBytes: envutil.Int("DOCUMENTS_MAX_BYTES", 20<<20),
	}
}

func (s *entryService) CreateEntry(ctx context.Context, in CreateEntryInput) (*types.Entry, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.New(apperr.CodeValidation, "EntryService.CreateEntry", "content is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = s.title(ctx, content)
	}
	entry := &types.Entry{
		ID:       uuid.New(),
		OwnerID:  in.OwnerID,
		Title:    title,
		Content:  in.Content,
		IsPublic: in.IsPublic,
	}
	if _, err := s.deps.Entries.Create(dbctx.Context{Ctx: ctx}, entry); err != nil {
		return nil, err
	}
	s.schedule(ctx, entry.ID, "created")
	return entry, nil
}

func (s *entryService) title(ctx context.Context, content string) string {
	if s.deps.Titles != nil {
		t, err := s.deps.Titles.GenerateTitle(ctx, content)
		if err == nil && strings.TrimSpace(t) != "" {
			return t
		}
		s.log.Warn("Title generation failed, using fallback", "error", err)
	}
	return extract.FallbackTitle(content)
}

func (s *entryService) GetEntry(ctx context.Context, id uuid.UUID) (*types.Entry, error) {
	dbc := dbctx.Context{Ctx: ctx}
	entry, err := s.deps.Entries.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.deps.Documents.ListByEntry(dbc, id)
	if err != nil {
		return nil, err
	}
	entry.Documents = make([]types.Document, 0, len(docs))
	for _, d := range docs {
		entry.Documents = append(entry.Documents, *d)
	}
	return entry, nil
}

func (s *entryService) UpdateEntry(ctx context.Context, id uuid.UUID, in UpdateEntryInput) (*types.Entry, error) {
	dbc := dbctx.Context{Ctx: ctx}
	entry, err := s.deps.Entries.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = strings.TrimSpace(*in.Title)
		entry.Title = strings.TrimSpace(*in.Title)
	}
	if in.IsPublic != nil {
		updates["is_public"] = *in.IsPublic
		entry.IsPublic = *in.IsPublic
	}
	contentChanged := in.Content != nil && *in.Content != entry.Content
	if contentChanged {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, apperr.New(apperr.CodeValidation, "EntryService.UpdateEntry", "content cannot be empty")
		}
		updates["content"] = *in.Content
		updates["insights_processed"] = false
		entry.Content = *in.Content
		entry.InsightsProcessed = false
	}
	if len(updates) == 0 {
		return entry, nil
	}
	if err := s.deps.Entries.UpdateFields(dbc, id, updates); err != nil {
		return nil, err
	}
	if contentChanged {
		s.schedule(ctx, id, "content_changed")
	}
	return entry, nil
}

func (s *entryService) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	docs, err := s.deps.Documents.ListByEntry(dbc, id)
	if err != nil {
		return err
	}
	if err := s.deps.Entries.Delete(dbc, id); err != nil {
		return err
	}
	for _, d := range docs {
		s.removeFile(ctx, d)
	}
	return nil
}

func (s *entryService) AttachDocument(ctx context.Context, entryID uuid.UUID, filename, declaredType string, data []byte) (*types.Document, error) {
	const op = "EntryService.AttachDocument"
	if len(data) == 0 {
		return nil, apperr.New(apperr.CodeValidation, op, "empty upload")
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return nil, apperr.Newf(apperr.CodeValidation, op, "document exceeds %d bytes", s.maxBytes)
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.deps.Entries.GetByID(dbc, entryID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(filename)
	if name == "" {
		name = "document"
	}

	stored, err := s.deps.Store.Save(ctx, entryID, name, data)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	contentType := documents.DetectContentType(declaredType, name, data)
	doc := &types.Document{
		ID:            uuid.New(),
		EntryID:       entryID,
		StoredPath:    stored,
		Filename:      name,
		SizeBytes:     int64(len(data)),
		ContentType:   contentType,
		ExtractedText: documents.ExtractText(contentType, name, data),
	}
	if _, err := s.deps.Documents.Create(dbc, doc); err != nil {
		_ = s.deps.Store.Remove(ctx, stored)
		return nil, err
	}
	s.log.Debug("Document attached", "entry_id", entryID, "document_id", doc.ID, "content_type", contentType, "text_bytes", len(doc.ExtractedText))
	s.markStale(ctx, entryID)
	s.schedule(ctx, entryID, "document_added")
	return doc, nil
}

func (s *entryService) DeleteDocument(ctx context.Context, entryID, docID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	docs, err := s.deps.Documents.ListByEntry(dbc, entryID)
	if err != nil {
		return err
	}
	var target *types.Document
	for _, d := range docs {
		if d.ID == docID {
			target = d
			break
		}
	}
	if target == nil {
		return apperr.Newf(apperr.CodeNotFound, "EntryService.DeleteDocument", "document %s not found on entry %s", docID, entryID)
	}
	if err := s.deps.Documents.Delete(dbc, entryID, docID); err != nil {
		return err
	}
	s.removeFile(ctx, target)
	s.markStale(ctx, entryID)
	s.schedule(ctx, entryID, "document_removed")
	return nil
}

func (s *entryService) GetInsights(ctx context.Context, entryID uuid.UUID) (*EntryWithInsights, error) {
	dbc := dbctx.Context{Ctx: ctx}
	entry, err := s.deps.Entries.GetByID(dbc, entryID)
	if err != nil {
		return nil, err
	}
	rows, err := s.deps.Insights.ListByEntry(dbc, entryID)
	if err != nil {
		return nil, err
	}
	return &EntryWithInsights{Entry: entry, Insights: rows}, nil
}

// Reprocess forces a new pass even if the entry is already processed.
func (s *entryService) Reprocess(ctx context.Context, entryID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.deps.Entries.GetByID(dbc, entryID); err != nil {
		return err
	}
	if err := s.deps.Entries.UpdateFields(dbc, entryID, map[string]interface{}{"insights_processed": false}); err != nil {
		return err
	}
	return s.deps.Scheduler.Schedule(ctx, entryID)
}

func (s *entryService) InsightsStatus(ctx context.Context) (sweep.Report, error) {
	return s.deps.Sweeper.Status(ctx)
}

func (s *entryService) RetryUnprocessed(ctx context.Context) (sweep.Report, error) {
	return s.deps.Sweeper.SweepOnce(ctx, "manual")
}

func (s *entryService) schedule(ctx context.Context, entryID uuid.UUID, reason string) {
	if s.deps.Scheduler == nil {
		return
	}
	if err := s.deps.Scheduler.Schedule(ctx, entryID); err != nil {
		s.log.Error("Failed to schedule insight reconciliation", "entry_id", entryID, "reason", reason, "error", err)
	}
}

func (s *entryService) markStale(ctx context.Context, entryID uuid.UUID) {
	if err := s.deps.Entries.UpdateFields(dbctx.Context{Ctx: ctx}, entryID, map[string]interface{}{"insights_processed": false}); err != nil {
		s.log.Warn("Failed to reset insights_processed", "entry_id", entryID, "error", err)
	}
}

func (s *entryService) removeFile(ctx context.Context, d *types.Document) {
	if d == nil || d.StoredPath == "" || s.deps.Store == nil {
		return
	}
	if err := s.deps.Store.Remove(ctx, d.StoredPath); err != nil {
		s.log.Warn("Failed to remove stored document", "document_id", d.ID, "path", d.StoredPath, "error", err)
	}
}
