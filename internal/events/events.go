// Package events describes the domain events published after a mutation
// commits. Publication is best-effort: the store is the source of truth and
// a lost event only delays counter reconciliation.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

//go:generate mockgen -destination=../mock/publisher.go -package=mock github.com/sakif/snippet-vault/internal/events Publisher

type Type string

const (
	SnippetCreated     Type = "snippet.created"
	SnippetUpdated     Type = "snippet.updated"
	SnippetDeleted     Type = "snippet.deleted"
	SubCategoryDeleted Type = "subcategory.deleted"
)

func (t Type) Valid() bool {
	switch t {
	case SnippetCreated, SnippetUpdated, SnippetDeleted, SubCategoryDeleted:
		return true
	}
	return false
}

// Event is the JSON message body.
type Event struct {
	Type          Type      `json:"type"`
	UserID        string    `json:"userId"`
	SnippetID     string    `json:"snippetId,omitempty"`
	SubCategoryID string    `json:"subCategoryId,omitempty"`
	Cleared       int       `json:"cleared,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// New stamps an event with the current UTC time.
func New(t Type, userID string) Event {
	return Event{Type: t, UserID: userID, OccurredAt: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

var ErrMalformed = errors.New("malformed event")

// Decode parses and checks a message body. Unknown types and events
// without a user are rejected with ErrMalformed.
func Decode(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !e.Type.Valid() {
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, e.Type)
	}
	if e.UserID == "" {
		return Event{}, fmt.Errorf("%w: missing userId", ErrMalformed)
	}
	return e, nil
}
