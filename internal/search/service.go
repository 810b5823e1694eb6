package search

import (
	"context"

	"go.uber.org/zap"
)

// RecordSource lists every page in searchable form, for full reindexing.
type RecordSource interface {
	ListPageRecords(ctx context.Context) ([]PageRecord, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// Postgres full text search.
type Service struct {
	meili    *Meili
	fallback Searcher
	logger   *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, fallback: fallback, logger: logger.Named("search")}
}

// Search tries Meilisearch if healthy, otherwise falls back.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.logger.Error("fallback search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexPage indexes a page (fire-and-forget to Meilisearch).
func (s *Service) IndexPage(page PageRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPage(page); err != nil {
			s.logger.Warn("index page", zap.String("page_id", page.ID), zap.Error(err))
		}
	}()
}

// DeletePage removes a page from the search index (fire-and-forget).
func (s *Service) DeletePage(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePage(id); err != nil {
			s.logger.Warn("delete page from index", zap.String("page_id", id), zap.Error(err))
		}
	}()
}

// ReindexAll pushes every page from source to Meilisearch.
func (s *Service) ReindexAll(ctx context.Context, source RecordSource) {
	if s.meili == nil || !s.meili.Healthy() || source == nil {
		return
	}
	pages, err := source.ListPageRecords(ctx)
	if err != nil {
		s.logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	if err := s.meili.IndexPages(pages); err != nil {
		s.logger.Warn("reindex pages", zap.Error(err))
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
