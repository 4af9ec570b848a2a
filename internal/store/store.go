// Package store is the document store the engine runs against: JSON
// documents grouped in collections, field-level merge updates, set-union
// appends and change snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrExists       = errors.New("already exists")
	ErrPrecondition = errors.New("precondition failed")
)

// Collections.
const (
	Teams         = "teams"
	Challenges    = "challenges"
	Settings      = "settings"
	Tokens        = "tokens"
	Finalists     = "finalists"
	TeamSessions  = "team_sessions"
	Admins        = "admins"
	AdminSessions = "admin_sessions"
)

var collections = map[string]bool{
	Teams: true, Challenges: true, Settings: true, Tokens: true,
	Finalists: true, TeamSessions: true, Admins: true, AdminSessions: true,
}

// Filter keeps documents whose top-level Field equals Equals.
type Filter struct {
	Field  string
	Equals any
}

// Condition guards UpdateIf. Field may be a dotted path; a nil Equals
// matches a null or missing field.
type Condition struct {
	Field  string
	Equals any
}

// Snapshot is the state of a document right after a committed write.
type Snapshot struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Version    int64           `json:"version"`
	Deleted    bool            `json:"deleted,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func (s Snapshot) Decode(dest any) error {
	return json.Unmarshal(s.Data, dest)
}

// UpdateOptions controls Update. With Merge, nested objects in the fields
// are merged into the stored ones; without it each top-level field given is
// replaced wholesale.
type UpdateOptions struct {
	Merge bool
}

// Store is the CRUD surface the engine consumes. Field names in updates may
// be dotted paths such as "challengeAttempts.<id>.tamperCount"; build them
// with Path when a key is not a fixed name.
type Store interface {
	Get(ctx context.Context, collection, id string, dest any) error
	// List decodes the matching documents, in insertion order, into dest,
	// which must point to a slice.
	List(ctx context.Context, collection string, filter *Filter, dest any) error
	// Create inserts doc under id, or a fresh UUID when id is empty, and
	// returns the id. It fails with ErrExists if the id is taken.
	Create(ctx context.Context, collection, id string, doc any) (string, error)
	// Put inserts or replaces a whole document.
	Put(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, fields map[string]any, opts UpdateOptions) error
	// UpdateIf merges fields only while cond holds, otherwise it returns
	// ErrPrecondition and leaves the document untouched.
	UpdateIf(ctx context.Context, collection, id string, cond Condition, fields map[string]any) error
	// AppendToSet unions values into the array at field and reports how many
	// were not already present.
	AppendToSet(ctx context.Context, collection, id, field string, values ...string) (int, error)
	// Increment adds delta to the number at field and returns the result.
	Increment(ctx context.Context, collection, id, field string, delta int) (int, error)
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers snapshots of one document, or of every document in
	// the collection when id is "*". The returned func unsubscribes.
	Subscribe(collection, id string) (<-chan Snapshot, func())
}
