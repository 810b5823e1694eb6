// Package app hosts the editing sessions of funnel pages and exposes them,
// together with page management, versions and publishing, over HTTP.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/auth"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/config"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/drafts"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/editor"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/events"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/export"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/gitrepo"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/rbac"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/search"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/store"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/util"
)

const (
	sourceSaved = "saved"
	sourceDraft = "draft"

	corruptWarning = "Saved content could not be read; the editor was reset to an empty page"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Name   string
	Role   rbac.Role
}

type PageStore interface {
	ListPages(ctx context.Context, funnelID string) ([]store.Page, error)
	GetPage(ctx context.Context, pageID string) (store.Page, error)
	InsertPage(ctx context.Context, page store.Page) (store.Page, error)
	RenamePage(ctx context.Context, pageID, name, pathName, updatedBy string) (store.Page, error)
	DeletePage(ctx context.Context, pageID string) error
	LoadContent(ctx context.Context, pageID string) (string, error)
	SaveContent(ctx context.Context, pageID, content, plainText, updatedBy string) (time.Time, error)
	ListSearchRecords(ctx context.Context) ([]store.SearchRecord, error)
	Ping(ctx context.Context) error
}

type DraftStore interface {
	Save(ctx context.Context, draft drafts.Draft) error
	Load(ctx context.Context, pageID string) (drafts.Draft, error)
	Discard(ctx context.Context, pageID string) error
}

type VersionStore interface {
	EnsurePageRepo(pageID string, initial gitrepo.Content, author string) error
	CommitVersion(pageID string, content gitrepo.Content, author, message string) (gitrepo.Version, bool, error)
	History(pageID string, limit int) ([]gitrepo.Version, error)
	GetContentByHash(pageID, hash string) (gitrepo.Content, error)
	Tag(pageID, hash, name, tagger string) error
}

type PageIndex interface {
	Search(q search.Query) search.Response
	IndexPage(page search.PageRecord)
	DeletePage(id string)
}

type PagePublisher interface {
	Publish(ctx context.Context, page export.Page, format export.Format) (*export.Result, error)
}

// Deps are the collaborators of a Service. Only Pages is required; leave an
// interface nil to disable the integration.
type Deps struct {
	Pages     PageStore
	Drafts    DraftStore
	Versions  VersionStore
	Search    PageIndex
	Publisher PagePublisher
	Events    events.Publisher
	Logger    *zap.Logger
	IDs       util.Generator
}

type Service struct {
	cfg       config.Config
	pages     PageStore
	drafts    DraftStore
	versions  VersionStore
	search    PageIndex
	publisher PagePublisher
	events    events.Publisher
	logger    *zap.Logger
	ids       util.Generator
	pageIDs   util.Generator
	policy    editor.HistoryPolicy
	sessions  *sessionRegistry
	now       func() time.Time
}

func NewService(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := deps.IDs
	if ids == nil {
		ids = util.UUIDv7()
	}
	s := &Service{
		cfg:       cfg,
		pages:     deps.Pages,
		drafts:    deps.Drafts,
		versions:  deps.Versions,
		search:    deps.Search,
		publisher: deps.Publisher,
		events:    deps.Events,
		logger:    logger,
		ids:       ids,
		pageIDs:   util.Prefixed("page", ids),
		policy: editor.HistoryPolicy{
			RecordViewChanges: cfg.RecordViewHistory,
			Limit:             cfg.HistoryLimit,
		},
		now: time.Now,
	}
	s.sessions = newSessionRegistry(cfg.SessionIdle, s.persistDraft)
	return s
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

// ActorFromToken verifies a bearer token and returns its holder.
func (s *Service) ActorFromToken(token string) (Actor, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Actor{}, err
	}
	return Actor{
		UserID: claims.Subject,
		Name:   claims.Name,
		Role:   rbac.Normalize(claims.Role),
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.pages.Ping(ctx)
}

// PageSummary is the API representation of a page row.
type PageSummary struct {
	ID        string    `json:"id"`
	FunnelID  string    `json:"funnelId"`
	Name      string    `json:"name"`
	PathName  string    `json:"pathName"`
	Order     int       `json:"order"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func summarize(page store.Page) PageSummary {
	return PageSummary{
		ID:        page.ID,
		FunnelID:  page.FunnelID,
		Name:      page.Name,
		PathName:  page.PathName,
		Order:     page.Order,
		UpdatedBy: page.UpdatedBy,
		UpdatedAt: page.UpdatedAt,
	}
}

// SessionView is what clients see of an editing session.
type SessionView struct {
	PageID   string              `json:"pageId"`
	FunnelID string              `json:"funnelId"`
	Name     string              `json:"name"`
	PathName string              `json:"pathName"`
	State    editor.EditorState  `json:"state"`
	History  editor.HistoryStats `json:"history"`
	Dirty    bool                `json:"dirty"`
	ReadOnly bool                `json:"readOnly"`
	Source   string              `json:"source,omitempty"`
	Warning  string              `json:"warning,omitempty"`
}

func (s *Service) view(actor Actor, session *editSession) SessionView {
	page := session.meta()
	state := session.editor.State()
	readOnly := !s.Can(actor.Role, rbac.ActionEdit)
	if readOnly {
		state.Live = true
	}
	return SessionView{
		PageID:   page.ID,
		FunnelID: page.FunnelID,
		Name:     page.Name,
		PathName: page.PathName,
		State:    state,
		History:  session.editor.Stats(),
		Dirty:    session.editor.Dirty(),
		ReadOnly: readOnly,
	}
}

type OpenOptions struct {
	// Live opens the session in live mode.
	Live bool
	// FromDraft resumes the autosaved draft when there is one.
	FromDraft bool
}

// OpenSession returns the editing session of a page, loading the page into
// a new editor when none is open. The session is shared by everyone on the
// page; read-only callers see it in live mode without changing it.
func (s *Service) OpenSession(ctx context.Context, actor Actor, pageID string, opts OpenOptions) (SessionView, error) {
	if existing, ok := s.sessions.get(pageID); ok {
		return s.view(actor, existing), nil
	}

	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return SessionView{}, err
	}

	session := &editSession{editor: editor.New(pageID, editor.NewDocument(), editor.Options{
		Policy: s.policy,
		IDs:    s.ids,
		Logger: s.logger,
	})}
	session.setMeta(page)
	canEdit := s.Can(actor.Role, rbac.ActionEdit)
	if canEdit {
		session.touchedBy(actor.Name)
	}

	content, source := page.Content, sourceSaved
	if opts.FromDraft && canEdit && s.drafts != nil {
		draft, err := s.drafts.Load(ctx, pageID)
		switch {
		case err == nil:
			content, source = draft.Content, sourceDraft
		case errors.Is(err, drafts.ErrDraftNotFound):
		default:
			s.logger.Warn("load draft", zap.String("page_id", pageID), zap.Error(err))
		}
	}

	_, _, loadErr := session.editor.CompleteLoad(session.editor.BeginLoad(), content, opts.Live && canEdit)
	if loadErr != nil && !errors.Is(loadErr, editor.ErrCorruptContent) {
		return SessionView{}, loadErr
	}
	if source == sourceDraft {
		session.editor.MarkSaved(canonicalContent(page.Content))
	}

	registered, created := s.sessions.add(pageID, session)
	if !created {
		return s.view(actor, registered), nil
	}

	view := s.view(actor, session)
	view.Source = source
	if loadErr != nil {
		view.Warning = corruptWarning
	}
	s.logger.Info("editing session opened",
		zap.String("page_id", pageID),
		zap.String("source", source),
		zap.String("actor", actor.UserID),
	)
	return view, nil
}

func (s *Service) GetSession(actor Actor, pageID string) (SessionView, error) {
	session, ok := s.sessions.get(pageID)
	if !ok {
		return SessionView{}, errSessionNotFound
	}
	return s.view(actor, session), nil
}

// CloseSession drops the editor of a page. Unsaved changes are parked as a
// draft by the eviction hook.
func (s *Service) CloseSession(actor Actor, pageID string) error {
	if !s.Can(actor.Role, rbac.ActionEdit) {
		return errForbidden
	}
	if !s.sessions.remove(pageID) {
		return errSessionNotFound
	}
	return nil
}

// Dispatch sends one action through the editor of a page. The editor state
// and its history are shared, so every action needs edit rights.
func (s *Service) Dispatch(ctx context.Context, actor Actor, pageID string, action editor.Action) (SessionView, error) {
	if action == nil {
		return SessionView{}, fmt.Errorf("%w: missing action", editor.ErrMalformedAction)
	}
	if !s.Can(actor.Role, rbac.ActionEdit) {
		return SessionView{}, errForbidden
	}
	session, ok := s.sessions.get(pageID)
	if !ok {
		return SessionView{}, errSessionNotFound
	}
	if target, ok := setPageIDTarget(action); ok && target != pageID {
		return SessionView{}, domainError(http.StatusBadRequest, "INVALID_ACTION", "The page of an open session cannot change", nil)
	}

	before := session.editor.State().Document.Root
	next, err := session.editor.Dispatch(action)
	if err != nil {
		return SessionView{}, err
	}
	session.touchedBy(actor.Name)

	if next.Document.Root != before {
		s.autosave(ctx, pageID, session, actor.Name)
	}
	return s.view(actor, session), nil
}

func (s *Service) Undo(ctx context.Context, actor Actor, pageID string) (SessionView, error) {
	return s.Dispatch(ctx, actor, pageID, editor.Undo{})
}

func (s *Service) Redo(ctx context.Context, actor Actor, pageID string) (SessionView, error) {
	return s.Dispatch(ctx, actor, pageID, editor.Redo{})
}

func setPageIDTarget(action editor.Action) (string, bool) {
	switch a := action.(type) {
	case editor.SetPageID:
		return a.PageID, true
	case *editor.SetPageID:
		return a.PageID, true
	}
	return "", false
}

// autosave keeps the draft in step with the session: dirty sessions are
// written, sessions back at the saved version drop their draft.
func (s *Service) autosave(ctx context.Context, pageID string, session *editSession, actorName string) {
	if s.drafts == nil {
		return
	}
	var err error
	if session.editor.Dirty() {
		err = s.saveDraft(ctx, pageID, session, actorName)
	} else {
		err = s.drafts.Discard(ctx, pageID)
	}
	if err != nil {
		s.logger.Warn("autosave draft", zap.String("page_id", pageID), zap.Error(err))
	}
}

func (s *Service) saveDraft(ctx context.Context, pageID string, session *editSession, actorName string) error {
	_, content, err := session.editor.Snapshot()
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return s.drafts.Save(ctx, drafts.Draft{
		PageID:      pageID,
		Content:     content,
		Fingerprint: editor.Fingerprint(content),
		UpdatedBy:   actorName,
		SavedAt:     s.now().UTC(),
	})
}

type SaveResult struct {
	Session    SessionView      `json:"session"`
	SavedAt    time.Time        `json:"savedAt"`
	Version    *gitrepo.Version `json:"version,omitempty"`
	NewVersion bool             `json:"newVersion"`
}

// Save persists the visible document of a session. The page row is the
// source of truth; versioning, indexing and notification failures are
// logged without failing the save.
func (s *Service) Save(ctx context.Context, actor Actor, pageID string) (SaveResult, error) {
	if !s.Can(actor.Role, rbac.ActionEdit) {
		return SaveResult{}, errForbidden
	}
	session, ok := s.sessions.get(pageID)
	if !ok {
		return SaveResult{}, errSessionNotFound
	}

	state, content, err := session.editor.Snapshot()
	if err != nil {
		return SaveResult{}, fmt.Errorf("encode page: %w", err)
	}
	savedAt, err := s.pages.SaveContent(ctx, pageID, content, editor.PlainText(state.Document), actor.Name)
	if err != nil {
		return SaveResult{}, err
	}
	session.editor.MarkSaved(content)
	session.touchedBy(actor.Name)

	page := session.meta()
	result := SaveResult{SavedAt: savedAt}
	if version, created, err := s.recordVersion(page, content, actor.Name, "Save "+displayName(page)); err != nil {
		s.logger.Warn("record version", zap.String("page_id", pageID), zap.Error(err))
	} else if version != nil {
		result.Version = version
		result.NewVersion = created
	}

	s.index(page, state.Document)
	if s.drafts != nil {
		if err := s.drafts.Discard(ctx, pageID); err != nil {
			s.logger.Warn("discard draft", zap.String("page_id", pageID), zap.Error(err))
		}
	}
	s.publishEvent(ctx, events.PageChanged{
		Type:     events.PageSaved,
		PageID:   pageID,
		FunnelID: page.FunnelID,
		Name:     page.Name,
		PathName: page.PathName,
		Actor:    actor.UserID,
	})

	s.logger.Info("page saved", zap.String("page_id", pageID), zap.String("actor", actor.UserID), zap.Bool("new_version", result.NewVersion))
	result.Session = s.view(actor, session)
	return result, nil
}

// recordVersion commits content to the page repository, creating the
// repository on first use. It returns nil when versioning is disabled.
func (s *Service) recordVersion(page store.Page, content, author, message string) (*gitrepo.Version, bool, error) {
	if s.versions == nil {
		return nil, false, nil
	}
	snapshot := gitrepo.Content{
		PageID:   page.ID,
		Name:     page.Name,
		PathName: page.PathName,
		Elements: json.RawMessage(content),
	}
	if err := s.versions.EnsurePageRepo(page.ID, snapshot, author); err != nil {
		return nil, false, err
	}
	version, created, err := s.versions.CommitVersion(page.ID, snapshot, author, message)
	if err != nil {
		return nil, false, err
	}
	return &version, created, nil
}

// Reload replaces the session document with the saved version. Unsaved
// changes and undo history are discarded.
func (s *Service) Reload(ctx context.Context, actor Actor, pageID string) (SessionView, error) {
	if !s.Can(actor.Role, rbac.ActionEdit) {
		return SessionView{}, errForbidden
	}
	session, ok := s.sessions.get(pageID)
	if !ok {
		return SessionView{}, errSessionNotFound
	}
	warning, err := s.reload(ctx, pageID, session)
	if err != nil {
		return SessionView{}, err
	}
	if s.drafts != nil {
		if err := s.drafts.Discard(ctx, pageID); err != nil {
			s.logger.Warn("discard draft", zap.String("page_id", pageID), zap.Error(err))
		}
	}
	view := s.view(actor, session)
	view.Source = sourceSaved
	view.Warning = warning
	return view, nil
}

func (s *Service) reload(ctx context.Context, pageID string, session *editSession) (string, error) {
	ticket := session.editor.BeginLoad()
	content, err := s.pages.LoadContent(ctx, pageID)
	if err != nil {
		return "", err
	}
	_, applied, err := session.editor.CompleteLoad(ticket, content, session.editor.State().Live)
	if errors.Is(err, editor.ErrCorruptContent) {
		return corruptWarning, nil
	}
	if err != nil {
		return "", err
	}
	if !applied {
		s.logger.Debug("reload superseded by a newer load", zap.String("page_id", pageID))
	}
	return "", nil
}

// Versions lists saved versions of a page, newest first.
func (s *Service) Versions(pageID string, limit int) ([]gitrepo.Version, error) {
	if s.versions == nil {
		return []gitrepo.Version{}, nil
	}
	versions, err := s.versions.History(pageID, limit)
	if errors.Is(err, gitrepo.ErrRepoNotFound) {
		return []gitrepo.Version{}, nil
	}
	return versions, err
}

// Restore loads an older version into the open session. The restored tree
// is unsaved until the next Save and the undo history starts over.
func (s *Service) Restore(ctx context.Context, actor Actor, pageID, hash string) (SessionView, error) {
	if !s.Can(actor.Role, rbac.ActionEdit) {
		return SessionView{}, errForbidden
	}
	session, ok := s.sessions.get(pageID)
	if !ok {
		return SessionView{}, errSessionNotFound
	}
	if s.versions == nil {
		return SessionView{}, gitrepo.ErrVersionNotFound
	}
	snapshot, err := s.versions.GetContentByHash(pageID, hash)
	if err != nil {
		return SessionView{}, err
	}
	doc, err := editor.Decode(string(snapshot.Elements))
	if err != nil {
		return SessionView{}, err
	}
	return s.Dispatch(ctx, actor, pageID, editor.LoadData{
		Elements: doc,
		WithLive: session.editor.State().Live,
	})
}

// Publish renders the saved version of a page and tags it in the version
// history.
func (s *Service) Publish(ctx context.Context, actor Actor, pageID string, format export.Format) (*export.Result, error) {
	if !s.Can(actor.Role, rbac.ActionPublish) {
		return nil, errForbidden
	}
	if s.publisher == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Publishing is not configured", nil)
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	doc, err := editor.Decode(page.Content)
	if err != nil {
		return nil, err
	}

	result, err := s.publisher.Publish(ctx, export.Page{
		ID:        page.ID,
		FunnelID:  page.FunnelID,
		Name:      page.Name,
		PathName:  page.PathName,
		Elements:  doc,
		Author:    actor.Name,
		UpdatedAt: page.UpdatedAt,
	}, format)
	if err != nil {
		return nil, err
	}

	if content, err := editor.Encode(doc); err == nil {
		s.tagPublished(page, content, actor.Name, format)
	}
	s.logger.Info("page published",
		zap.String("page_id", pageID),
		zap.String("format", string(format)),
		zap.String("archive_key", result.ArchiveKey),
	)
	return result, nil
}

func (s *Service) tagPublished(page store.Page, content, author string, format export.Format) {
	version, _, err := s.recordVersion(page, content, author, "Publish "+displayName(page))
	if err != nil || version == nil {
		if err != nil {
			s.logger.Warn("record published version", zap.String("page_id", page.ID), zap.Error(err))
		}
		return
	}
	name := fmt.Sprintf("publish-%s-%s", format, s.now().UTC().Format("20060102T150405Z"))
	if err := s.versions.Tag(page.ID, version.Hash, name, author); err != nil {
		s.logger.Warn("tag published version", zap.String("page_id", page.ID), zap.Error(err))
	}
}

type CreatePageInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	PathName string `json:"pathName" validate:"omitempty,max=200,excludesall=?#"`
	Order    *int   `json:"order" validate:"omitempty,min=0"`
}

type RenamePageInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	PathName string `json:"pathName" validate:"omitempty,max=200,excludesall=?#"`
}

func (s *Service) ListPages(ctx context.Context, funnelID string) ([]PageSummary, error) {
	pages, err := s.pages.ListPages(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	items := make([]PageSummary, 0, len(pages))
	for _, page := range pages {
		items = append(items, summarize(page))
	}
	return items, nil
}

func (s *Service) CreatePage(ctx context.Context, actor Actor, funnelID string, input CreatePageInput) (PageSummary, error) {
	if !s.Can(actor.Role, rbac.ActionEdit) {
		return PageSummary{}, errForbidden
	}
	order := -1
	if input.Order != nil {
		order = *input.Order
	}
	page, err := s.pages.InsertPage(ctx, store.Page{
		ID:        s.pageIDs(),
		FunnelID:  funnelID,
		Name:      strings.TrimSpace(input.Name),
		PathName:  normalizePath(input.PathName),
		Order:     order,
		UpdatedBy: actor.Name,
	})
	if err != nil {
		return PageSummary{}, err
	}
	s.index(page, editor.NewDocument())
	return summarize(page), nil
}

// Rename changes the title and path of a page. Open sessions of the page
// reload from the saved version; their unsaved changes are parked as a draft
// first.
func (s *Service) Rename(ctx context.Context, actor Actor, pageID string, input RenamePageInput) (PageSummary, error) {
	if !s.Can(actor.Role, rbac.ActionEdit) {
		return PageSummary{}, errForbidden
	}
	page, err := s.pages.RenamePage(ctx, pageID, strings.TrimSpace(input.Name), normalizePath(input.PathName), actor.Name)
	if err != nil {
		return PageSummary{}, err
	}
	if session, ok := s.sessions.peek(pageID); ok {
		session.setMeta(page)
		s.refresh(ctx, pageID, session)
	}

	doc, _ := editor.DecodeOrEmpty(page.Content)
	s.index(page, doc)
	s.publishEvent(ctx, events.PageChanged{
		Type:     events.PageRenamed,
		PageID:   page.ID,
		FunnelID: page.FunnelID,
		Name:     page.Name,
		PathName: page.PathName,
		Actor:    actor.UserID,
	})
	return summarize(page), nil
}

// DeletePage removes a page together with its open session, draft and
// search entry. Saved versions stay in the page repository.
func (s *Service) DeletePage(ctx context.Context, actor Actor, pageID string) error {
	if !s.Can(actor.Role, rbac.ActionEdit) {
		return errForbidden
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	if err := s.pages.DeletePage(ctx, pageID); err != nil {
		return err
	}
	s.dropSession(ctx, pageID)
	if s.search != nil {
		s.search.DeletePage(pageID)
	}
	s.publishEvent(ctx, events.PageChanged{
		Type:     events.PageDeleted,
		PageID:   pageID,
		FunnelID: page.FunnelID,
		Name:     page.Name,
		PathName: page.PathName,
		Actor:    actor.UserID,
	})
	s.logger.Info("page deleted", zap.String("page_id", pageID), zap.String("actor", actor.UserID))
	return nil
}

// dropSession closes the session of a deleted page without parking its
// changes and removes any draft left behind.
func (s *Service) dropSession(ctx context.Context, pageID string) {
	if session, ok := s.sessions.peek(pageID); ok {
		session.discard()
		s.sessions.remove(pageID)
	}
	if s.drafts != nil {
		if err := s.drafts.Discard(ctx, pageID); err != nil {
			s.logger.Warn("discard draft of deleted page", zap.String("page_id", pageID), zap.Error(err))
		}
	}
}

// HandlePageEvent reacts to changes made through another API instance.
// Renames always reload the local session; saves only reload sessions
// without unsaved changes. Deletions close the session.
func (s *Service) HandlePageEvent(ctx context.Context, event events.PageChanged) error {
	session, ok := s.sessions.peek(event.PageID)
	if !ok {
		return nil
	}
	switch event.Type {
	case events.PageDeleted:
		session.discard()
		s.sessions.remove(event.PageID)
	case events.PageRenamed:
		page, err := s.pages.GetPage(ctx, event.PageID)
		if err != nil {
			return err
		}
		session.setMeta(page)
		s.refresh(ctx, event.PageID, session)
	case events.PageSaved:
		if session.editor.Dirty() {
			s.logger.Info("remote save ignored, session has unsaved changes", zap.String("page_id", event.PageID))
			return nil
		}
		s.refresh(ctx, event.PageID, session)
	}
	return nil
}

// refresh parks unsaved work as a draft and reloads the saved version.
func (s *Service) refresh(ctx context.Context, pageID string, session *editSession) {
	if s.drafts != nil && session.editor.Dirty() {
		if err := s.saveDraft(ctx, pageID, session, session.lastActor()); err != nil {
			s.logger.Warn("park draft before reload", zap.String("page_id", pageID), zap.Error(err))
		}
	}
	if _, err := s.reload(ctx, pageID, session); err != nil {
		s.logger.Warn("reload session", zap.String("page_id", pageID), zap.Error(err))
	}
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// ListPageRecords feeds full reindexing of the search backend.
func (s *Service) ListPageRecords(ctx context.Context) ([]search.PageRecord, error) {
	records, err := s.pages.ListSearchRecords(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]search.PageRecord, 0, len(records))
	for _, r := range records {
		items = append(items, search.PageRecord{
			ID:       r.ID,
			FunnelID: r.FunnelID,
			Name:     r.Name,
			PathName: r.PathName,
			Text:     r.Text,
		})
	}
	return items, nil
}

// Shutdown parks the unsaved work of every open session.
func (s *Service) Shutdown(ctx context.Context) {
	parked := 0
	s.sessions.each(func(pageID string, session *editSession) {
		if s.drafts == nil || !session.editor.Dirty() {
			return
		}
		if err := s.saveDraft(ctx, pageID, session, session.lastActor()); err != nil {
			s.logger.Warn("park draft on shutdown", zap.String("page_id", pageID), zap.Error(err))
			return
		}
		parked++
	})
	s.logger.Info("editing sessions stopped", zap.Int("open", s.sessions.count()), zap.Int("drafts", parked))
}

func (s *Service) index(page store.Page, doc editor.Document) {
	if s.search == nil {
		return
	}
	s.search.IndexPage(search.PageRecord{
		ID:       page.ID,
		FunnelID: page.FunnelID,
		Name:     page.Name,
		PathName: page.PathName,
		Text:     editor.PlainText(doc),
	})
}

func (s *Service) publishEvent(ctx context.Context, event events.PageChanged) {
	if s.events == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.events.PublishPageChanged(ctx, event); err != nil {
		s.logger.Warn("publish page event",
			zap.String("type", string(event.Type)),
			zap.String("page_id", event.PageID),
			zap.Error(err),
		)
	}
}

// canonicalContent re-encodes stored content so its fingerprint matches
// what the editor computes for the same tree.
func canonicalContent(content string) string {
	doc, err := editor.Decode(content)
	if err != nil {
		return content
	}
	encoded, err := editor.Encode(doc)
	if err != nil {
		return content
	}
	return encoded
}

// normalizePath trims slashes and joins words with hyphens.
func normalizePath(path string) string {
	return strings.Join(strings.Fields(strings.Trim(strings.TrimSpace(path), "/")), "-")
}

func displayName(page store.Page) string {
	if page.Name != "" {
		return page.Name
	}
	return page.ID
}
