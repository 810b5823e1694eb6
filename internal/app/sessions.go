package app

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/editor"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/store"
)

// editSession is the open editor of one page, shared by everyone editing it.
type editSession struct {
	editor *editor.Editor

	mu        sync.Mutex
	page      store.Page
	actor     string
	discarded bool
}

func (s *editSession) meta() store.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *editSession) touchedBy(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = name
}

func (s *editSession) lastActor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor
}

// discard marks the session of a deleted page; its changes are not parked.
func (s *editSession) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
}

func (s *editSession) isDiscarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

func (s *editSession) setMeta(page store.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page.Content = ""
	s.page = page
}

// sessionRegistry holds open sessions keyed by page id. Sessions nobody
// touched for the idle timeout are evicted; onEvict sees every removal.
type sessionRegistry struct {
	cache *cache.Cache
}

func newSessionRegistry(idle time.Duration, onEvict func(pageID string, session *editSession)) *sessionRegistry {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	cleanup := idle / 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	c := cache.New(idle, cleanup)
	if onEvict != nil {
		c.OnEvicted(func(key string, value interface{}) {
			if session, ok := value.(*editSession); ok {
				onEvict(key, session)
			}
		})
	}
	return &sessionRegistry{cache: c}
}

// get returns the session of pageID and restarts its idle timer.
func (r *sessionRegistry) get(pageID string) (*editSession, bool) {
	value, found := r.cache.Get(pageID)
	if !found {
		return nil, false
	}
	session := value.(*editSession)
	r.cache.Set(pageID, session, cache.DefaultExpiration)
	return session, true
}

// peek looks a session up without restarting its idle timer.
func (r *sessionRegistry) peek(pageID string) (*editSession, bool) {
	value, found := r.cache.Get(pageID)
	if !found {
		return nil, false
	}
	return value.(*editSession), true
}

// add stores session unless one is already open for pageID, in which case
// the existing session is returned with false.
func (r *sessionRegistry) add(pageID string, session *editSession) (*editSession, bool) {
	for {
		if err := r.cache.Add(pageID, session, cache.DefaultExpiration); err == nil {
			return session, true
		}
		if existing, ok := r.get(pageID); ok {
			return existing, false
		}
	}
}

func (r *sessionRegistry) remove(pageID string) bool {
	if _, found := r.cache.Get(pageID); !found {
		return false
	}
	r.cache.Delete(pageID)
	return true
}

func (r *sessionRegistry) each(fn func(pageID string, session *editSession)) {
	for key, item := range r.cache.Items() {
		if session, ok := item.Object.(*editSession); ok {
			fn(key, session)
		}
	}
}

func (r *sessionRegistry) count() int {
	return r.cache.ItemCount()
}

// persistDraft is the eviction hook: unsaved work is parked in the draft
// store so the next session can resume it.
func (s *Service) persistDraft(pageID string, session *editSession) {
	if s.drafts == nil || session.isDiscarded() || !session.editor.Dirty() {
		s.logger.Debug("editing session closed", zap.String("page_id", pageID))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saveDraft(ctx, pageID, session, session.lastActor()); err != nil {
		s.logger.Warn("park draft of closed session", zap.String("page_id", pageID), zap.Error(err))
		return
	}
	s.logger.Info("editing session closed with unsaved changes, draft kept", zap.String("page_id", pageID))
}
