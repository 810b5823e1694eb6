package store

import "time"

// Page is one page of a funnel. Content holds the serialized element tree;
// the empty string means nobody has authored the page yet.
type Page struct {
	ID        string
	FunnelID  string
	Name      string
	PathName  string
	Order     int
	Content   string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchRecord is the searchable projection of a page.
type SearchRecord struct {
	ID       string
	FunnelID string
	Name     string
	PathName string
	Text     string
}
