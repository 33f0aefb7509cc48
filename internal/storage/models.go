package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Source is one ingested document source (a PDF deck, a notes file).
type Source struct {
	Name       string
	Kind       string // "pdf" or "text"
	Pages      int
	Chunks     int
	IngestedAt time.Time
}

// Interaction is one answered request, kept as an audit trail for the
// history endpoints and for offline inspection of model output.
type Interaction struct {
	ID         string
	CreatedAt  time.Time
	Query      string
	Code       string
	Tier       int
	Labels     string // JSON array stored as text
	Citations  string // JSON array stored as text
	Response   string
	DurationMs int64
}
