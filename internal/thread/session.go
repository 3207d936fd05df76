// Package thread implements the comment-tree aggregation and
// incremental-disclosure engine: it partitions a flat comment collection
// into top-level comments and their direct replies, tracks per-list
// disclosure counters, manages reply-form visibility, and applies
// optimistic local inserts on submission.
package thread

import (
	"context"
	"sync"
	"time"

	"github.com/banterhq/banter/internal/comment"
)

// Config holds the per-session engine configuration. It is threaded through
// the constructor explicitly so multiple sessions on one process never
// interfere through shared state.
type Config struct {
	// PageSize is the disclosure page size P. Zero or negative means
	// unbounded: every comment is visible and reveal is a no-op.
	PageSize int

	// Moderation reports whether the server holds new comments for approval.
	// Presentation layers use it to badge unconfirmed comments.
	Moderation bool

	// Limits are the server-configured field length limits for submissions.
	Limits comment.Limits
}

// Unbounded reports whether the page size disables disclosure pagination.
func (c Config) Unbounded() bool {
	return c.PageSize <= 0
}

// State is the lifecycle state of a session.
type State int

const (
	// StateNotLoaded means no fetch has completed yet.
	StateNotLoaded State = iota
	// StateLoading means a fetch is in flight.
	StateLoading
	// StateLoaded means the thread has at least one comment.
	StateLoaded
	// StateEmpty means the fetch succeeded but no comments exist yet.
	// Distinct from both StateNotLoaded and StateFailed.
	StateEmpty
	// StateFailed means the fetch failed. Terminal: the session is not
	// retried automatically.
	StateFailed
)

// String returns a display name for the state.
func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not-loaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher retrieves all comments for a logical path. A path with no thread
// yet must be reported as a NOT_FOUND error, which the session treats as the
// normal empty state.
type Fetcher interface {
	Comments(ctx context.Context, path string) ([]comment.Comment, error)
}

// Submitter creates a comment server-side and returns the assigned
// identifier along with the server-normalized body.
type Submitter interface {
	CreateComment(ctx context.Context, path, body, author string, replyTo *comment.ID, email *string) (comment.ID, string, error)
}

// formState tracks the visibility of one reply form. Field text is owned by
// the presentation layer; the engine only keeps the visibility flag.
type formState struct {
	visible bool
}

// Session is the aggregate root for one thread on one page view. It is
// created once per page view, populated by the first successful load,
// mutated by user interaction, and discarded on navigation.
//
// Applying concurrent submission results is atomic with respect to the
// disclosure-counter recomputation: each result application reads the
// current true count and computes the new counter under the session lock.
type Session struct {
	path      string
	cfg       Config
	fetcher   Fetcher
	submitter Submitter
	now       func() time.Time

	mu           sync.Mutex
	gen          int // bumped by Reset; stale fetch results are dropped
	state        State
	loadErr      error
	threadID     int64
	comments     []comment.Comment
	topVisible   int
	replyVisible map[comment.ID]int
	forms        map[comment.ID]*formState
	authorName   string
}

// NewSession creates a session for the given logical path.
func NewSession(path string, cfg Config, fetcher Fetcher, submitter Submitter) *Session {
	return &Session{
		path:         path,
		cfg:          cfg,
		fetcher:      fetcher,
		submitter:    submitter,
		now:          time.Now,
		state:        StateNotLoaded,
		replyVisible: make(map[comment.ID]int),
		forms:        map[comment.ID]*formState{comment.RootFormID: {visible: true}},
	}
}

// SetClock overrides the timestamp source for optimistic inserts.
func (s *Session) SetClock(now func() time.Time) {
	s.now = now
}

// Path returns the logical path the session serves.
func (s *Session) Path() string {
	return s.path
}

// Config returns the engine configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ThreadID returns the thread identifier derived on ingestion, or 0 before
// the first successful load.
func (s *Session) ThreadID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// AuthorName returns the display name persisted from the last submission or
// seeded from the identity store.
func (s *Session) AuthorName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorName
}

// SetAuthorName seeds the author display name, typically from the identity
// store, so forms can be pre-filled.
func (s *Session) SetAuthorName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorName = name
}

// Comments returns a copy of the full comment collection.
func (s *Session) Comments() []comment.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]comment.Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

// Reset discards all session state, returning it to not-loaded. Any fetch
// still in flight becomes a no-op when it completes.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = StateNotLoaded
	s.loadErr = nil
	s.threadID = 0
	s.comments = nil
	s.topVisible = 0
	s.replyVisible = make(map[comment.ID]int)
	s.forms = map[comment.ID]*formState{comment.RootFormID: {visible: true}}
}
