// Package events carries page lifecycle notifications between API
// instances over NATS, so every instance can reload the editing sessions
// it holds for a page that changed elsewhere.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type identifies what happened to a page.
type Type string

const (
	PageRenamed Type = "PAGE_RENAMED"
	PageSaved   Type = "PAGE_SAVED"
	PageDeleted Type = "PAGE_DELETED"
)

// SubjectPrefix is prepended to the lowercased event type.
const SubjectPrefix = "plura.pages."

var ErrInvalidEvent = errors.New("invalid page event")

// PageChanged is published after a page row or its content changes.
type PageChanged struct {
	Type       Type      `json:"type"`
	PageID     string    `json:"page_id"`
	FunnelID   string    `json:"funnel_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	PathName   string    `json:"path_name,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Subject returns the NATS subject the event is published on.
func (e PageChanged) Subject() string {
	return SubjectPrefix + strings.ToLower(string(e.Type))
}

func (e PageChanged) validate() error {
	if e.PageID == "" {
		return fmt.Errorf("%w: missing page_id", ErrInvalidEvent)
	}
	switch e.Type {
	case PageRenamed, PageSaved, PageDeleted:
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
}

// Encode validates and serializes an event.
func Encode(e PageChanged) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Decode parses and validates an event payload.
func Decode(data []byte) (PageChanged, error) {
	var e PageChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return PageChanged{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.validate(); err != nil {
		return PageChanged{}, err
	}
	return e, nil
}

// Handler processes one received event.
type Handler func(ctx context.Context, event PageChanged) error

// Publisher abstracts event publishing for page operations.
type Publisher interface {
	PublishPageChanged(ctx context.Context, event PageChanged) error
}
