package app

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/auth"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/config"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/drafts"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/events"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/export"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/gitrepo"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/rbac"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/search"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/store"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/util"
)

const testSecret = "test-secret"

const heroContent = `[{"id":"__body","name":"Body","type":"__body","styles":{"backgroundColor":"white"},"content":[
	{"id":"hero","name":"Hero","type":"container","styles":{},"content":[
		{"id":"title","name":"Title","type":"text","styles":{},"content":{"innerText":"Welcome"}}
	]}
]}]`

const heroWithoutTitle = `[{"id":"__body","name":"Body","type":"__body","styles":{"backgroundColor":"white"},"content":[
	{"id":"hero","name":"Hero","type":"container","styles":{},"content":[]}
]}]`

var (
	owner = Actor{UserID: "u-owner", Name: "Avery", Role: rbac.RoleAgencyOwner}
	guest = Actor{UserID: "u-guest", Name: "Gale", Role: rbac.RoleSubaccountGuest}
)

type memoryPages struct {
	mu      sync.Mutex
	pages   map[string]store.Page
	text    map[string]string
	pingErr error
}

func newMemoryPages(pages ...store.Page) *memoryPages {
	m := &memoryPages{pages: map[string]store.Page{}, text: map[string]string{}}
	for _, page := range pages {
		m.pages[page.ID] = page
	}
	return m
}

func (m *memoryPages) ListPages(_ context.Context, funnelID string) ([]store.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []store.Page{}
	for _, page := range m.pages {
		if page.FunnelID == funnelID {
			items = append(items, page)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return items, nil
}

func (m *memoryPages) GetPage(_ context.Context, pageID string) (store.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pages[pageID]
	if !ok {
		return store.Page{}, store.ErrPageNotFound
	}
	return page, nil
}

func (m *memoryPages) InsertPage(_ context.Context, page store.Page) (store.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.pages {
		if existing.FunnelID == page.FunnelID && existing.PathName == page.PathName {
			return store.Page{}, store.ErrPathTaken
		}
	}
	if page.Order < 0 {
		page.Order = len(m.pages)
	}
	page.CreatedAt = time.Now()
	page.UpdatedAt = page.CreatedAt
	m.pages[page.ID] = page
	return page, nil
}

func (m *memoryPages) RenamePage(_ context.Context, pageID, name, pathName, updatedBy string) (store.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pages[pageID]
	if !ok {
		return store.Page{}, store.ErrPageNotFound
	}
	page.Name, page.PathName, page.UpdatedBy = name, pathName, updatedBy
	m.pages[pageID] = page
	return page, nil
}

func (m *memoryPages) DeletePage(_ context.Context, pageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[pageID]; !ok {
		return store.ErrPageNotFound
	}
	delete(m.pages, pageID)
	delete(m.text, pageID)
	return nil
}

func (m *memoryPages) LoadContent(_ context.Context, pageID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pages[pageID]
	if !ok {
		return "", store.ErrPageNotFound
	}
	return page.Content, nil
}

func (m *memoryPages) SaveContent(_ context.Context, pageID, content, plainText, updatedBy string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pages[pageID]
	if !ok {
		return time.Time{}, store.ErrPageNotFound
	}
	page.Content, page.UpdatedBy, page.UpdatedAt = content, updatedBy, time.Now()
	m.pages[pageID] = page
	m.text[pageID] = plainText
	return page.UpdatedAt, nil
}

func (m *memoryPages) ListSearchRecords(context.Context) ([]store.SearchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []store.SearchRecord{}
	for _, page := range m.pages {
		items = append(items, store.SearchRecord{ID: page.ID, FunnelID: page.FunnelID, Name: page.Name, PathName: page.PathName, Text: m.text[page.ID]})
	}
	return items, nil
}

func (m *memoryPages) Ping(context.Context) error { return m.pingErr }

func (m *memoryPages) content(pageID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[pageID].Content
}

func (m *memoryPages) setContent(pageID, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page := m.pages[pageID]
	page.Content = content
	m.pages[pageID] = page
}

type memoryDrafts struct {
	mu    sync.Mutex
	items map[string]drafts.Draft
}

func (m *memoryDrafts) Save(_ context.Context, draft drafts.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[draft.PageID] = draft
	return nil
}

func (m *memoryDrafts) Load(_ context.Context, pageID string) (drafts.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.items[pageID]
	if !ok {
		return drafts.Draft{}, drafts.ErrDraftNotFound
	}
	return draft, nil
}

func (m *memoryDrafts) Discard(_ context.Context, pageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, pageID)
	return nil
}

func (m *memoryDrafts) get(pageID string) (drafts.Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.items[pageID]
	return draft, ok
}

type recordingIndex struct {
	mu      sync.Mutex
	indexed []search.PageRecord
	deleted []string
}

func (r *recordingIndex) Search(q search.Query) search.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	results := []search.Result{}
	for _, page := range r.indexed {
		results = append(results, search.Result{PageID: page.ID, FunnelID: page.FunnelID, Name: page.Name, PathName: page.PathName})
	}
	return search.Response{Results: results, Total: len(results), Query: q.Text}
}

func (r *recordingIndex) IndexPage(page search.PageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, page)
}

func (r *recordingIndex) DeletePage(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.PageChanged
}

func (r *recordingEvents) PublishPageChanged(_ context.Context, event events.PageChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type fixture struct {
	svc    *Service
	pages  *memoryPages
	drafts *memoryDrafts
	index  *recordingIndex
	events *recordingEvents
}

func newFixture(t *testing.T, pages ...store.Page) *fixture {
	t.Helper()
	if len(pages) == 0 {
		pages = []store.Page{{ID: "p1", FunnelID: "f1", Name: "Landing", PathName: "landing", Content: heroContent}}
	}
	f := &fixture{
		pages:  newMemoryPages(pages...),
		drafts: &memoryDrafts{items: map[string]drafts.Draft{}},
		index:  &recordingIndex{},
		events: &recordingEvents{},
	}
	logger := zaptest.NewLogger(t)
	f.svc = NewService(config.Config{
		JWTSecret:         testSecret,
		RecordViewHistory: true,
		SessionIdle:       time.Hour,
	}, Deps{
		Pages:     f.pages,
		Drafts:    f.drafts,
		Versions:  gitrepo.New(t.TempDir()),
		Search:    f.index,
		Publisher: export.NewService(nil, logger),
		Events:    f.events,
		Logger:    logger,
		IDs:       util.Sequence("id-1", "id-2", "id-3", "id-4"),
	})
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func tokenFor(t *testing.T, actor Actor) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.NewClaims(actor.UserID, actor.Name, string(actor.Role), util.NewID("jti"), time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}
