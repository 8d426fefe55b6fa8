package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dataloom-cli/internal/result"
)

// ErrSessionClosed is returned by Record after Close.
var ErrSessionClosed = errors.New("session is closed")

// Session is caller-owned conversation state. Entries are kept in memory and,
// when a store is attached, persisted as they are recorded.
type Session struct {
	ID string

	store *Store
	now   func() time.Time

	mu      sync.Mutex
	entries []Entry
	closed  bool
}

// NewSession starts a session with a fresh id. store may be nil.
func NewSession(store *Store) *Session {
	return ResumeSession(store, uuid.NewString())
}

// ResumeSession continues an existing session id. Previously stored entries
// are not loaded; use Store.List for those.
func ResumeSession(store *Store, id string) *Session {
	return &Session{ID: id, store: store, now: time.Now}
}

// Record appends the outcome of query. The in-memory entry is kept even if
// persisting it fails; the store error is returned.
func (s *Session) Record(ctx context.Context, query string, res result.Result) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Entry{}, ErrSessionClosed
	}
	e := Entry{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Query:     query,
		Timestamp: s.now(),
		Type:      string(res.Type),
		Content:   Content(res),
	}
	s.entries = append(s.entries, e)
	if s.store != nil {
		if err := s.store.Append(ctx, e); err != nil {
			return e, err
		}
	}
	return e, nil
}

// Entries returns the recorded entries in the order they were recorded.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Close ends the session. It does not close the store.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Content is the stored text for a result: the artifact path for plots, the
// message for errors and the rendered value otherwise.
func Content(res result.Result) string {
	switch res.Type {
	case result.TypePlot:
		return res.Path()
	case result.TypeError:
		return res.Message()
	default:
		return res.Text()
	}
}
