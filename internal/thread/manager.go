package thread

import (
	"context"
	"sync"

	"github.com/banterhq/banter/internal/api"
	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/errors"
)

// Client bundles everything a managed session needs from the comments
// server. *api.Client satisfies it.
type Client interface {
	Fetcher
	Submitter
	ClientConfig(ctx context.Context) (*api.ClientConfig, error)
}

// Manager owns one session per page path, created lazily on first use.
// The server's client config is fetched once and shared across sessions;
// a non-zero local page size override wins over the server value, and a
// negative override disables pagination.
type Manager struct {
	client   Client
	override int

	mu       sync.Mutex
	cfg      *Config
	sessions map[string]*Session
}

// NewManager creates a session manager backed by the given client.
func NewManager(client Client, pageSizeOverride int) *Manager {
	return &Manager{
		client:   client,
		override: pageSizeOverride,
		sessions: make(map[string]*Session),
	}
}

// ThreadConfig resolves the effective thread configuration, fetching the
// server's client config on first call.
func (m *Manager) ThreadConfig(ctx context.Context) (Config, error) {
	m.mu.Lock()
	cached := m.cfg
	m.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	remote, err := m.client.ClientConfig(ctx)
	if err != nil {
		return Config{}, errors.NewFetchFailed(err)
	}

	cfg := Config{
		PageSize:   remote.PageSize,
		Moderation: remote.Moderation,
		Limits: comment.Limits{
			MaxAuthorLength:  remote.MaxAuthorLength,
			MaxCommentLength: remote.MaxCommentLength,
		},
	}
	if m.override != 0 {
		cfg.PageSize = m.override
	}
	if cfg.PageSize < 0 {
		cfg.PageSize = 0 // pagination disabled
	}

	m.mu.Lock()
	m.cfg = &cfg
	m.mu.Unlock()
	return cfg, nil
}

// Session returns the session for a path, creating and loading it on
// first use. An already loaded session is returned as-is; Refresh
// re-fetches. A failed session surfaces its stored error.
func (m *Manager) Session(ctx context.Context, path string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[path]
	m.mu.Unlock()

	if !ok {
		cfg, err := m.ThreadConfig(ctx)
		if err != nil {
			return nil, err
		}
		sess = NewSession(path, cfg, m.client, m.client)
		m.mu.Lock()
		if existing, ok := m.sessions[path]; ok {
			sess = existing
		} else {
			m.sessions[path] = sess
		}
		m.mu.Unlock()
	}

	switch sess.State() {
	case StateNotLoaded, StateFailed:
		if err := sess.Load(ctx); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Refresh re-fetches a session's comments from the server. A failed
// session is reset first so the fetch is attempted again.
func (m *Manager) Refresh(ctx context.Context, path string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[path]
	m.mu.Unlock()

	if !ok {
		return m.Session(ctx, path)
	}
	if sess.State() == StateFailed {
		sess.Reset()
	}
	if err := sess.Load(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}
