// Package search finds funnel pages by name, path and visible text.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	PageID   string `json:"pageId"`
	FunnelID string `json:"funnelId"`
	Name     string `json:"name"`
	PathName string `json:"pathName"`
	Snippet  string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text     string
	FunnelID string // empty = all funnels
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// PageRecord is the data we index for a page.
type PageRecord struct {
	ID       string `json:"id"`
	FunnelID string `json:"funnelId"`
	Name     string `json:"name"`
	PathName string `json:"pathName"`
	Text     string `json:"text"`
}

func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
