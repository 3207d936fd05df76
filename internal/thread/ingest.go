package thread

import (
	"context"

	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/errors"
)

// Load fetches the comment collection for the session's path and ingests it.
//
// Only one fetch is in flight per session at a time: a Load issued while
// another is outstanding returns immediately without a second request. A
// failed session is terminal and keeps returning its original error. A
// successful re-load of an already loaded session refreshes the collection
// but keeps the disclosure counters and form state, so previously revealed
// items never disappear mid-interaction; only Reset starts over.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateLoading:
		s.mu.Unlock()
		return nil
	case StateFailed:
		err := s.loadErr
		s.mu.Unlock()
		return err
	}
	firstLoad := s.state == StateNotLoaded
	gen := s.gen
	s.state = StateLoading
	s.mu.Unlock()

	comments, err := s.fetcher.Comments(ctx, s.path)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The session was reset while the fetch was in flight; drop the result.
	if s.gen != gen {
		return nil
	}

	if err != nil {
		// No thread for this path yet is a normal empty state, not a failure.
		if errors.Is(err, errors.ErrNotFound) {
			s.ingest(nil, firstLoad)
			return nil
		}
		s.state = StateFailed
		s.loadErr = errors.NewFetchFailed(err)
		return s.loadErr
	}

	s.ingest(comments, firstLoad)
	return nil
}

// ingest normalizes a fetched collection into session state. Callers hold
// the session lock.
func (s *Session) ingest(comments []comment.Comment, firstLoad bool) {
	s.comments = comments

	if len(comments) == 0 {
		s.state = StateEmpty
		if firstLoad {
			s.topVisible = s.cfg.PageSize
		}
		return
	}

	// All comments in a response share one thread identifier.
	s.threadID = comments[0].ThreadID
	s.state = StateLoaded

	// The top-level counter is initialized on first load only; refreshes
	// keep whatever the user has already revealed.
	if firstLoad {
		s.topVisible = s.cfg.PageSize
	}

	// Every top-level comment gets a reply counter, and every comment a
	// (closed) form entry. Existing counters and form state survive a
	// refresh so moderation changes surface without resetting disclosure.
	for _, c := range s.comments {
		if !c.IsReply() {
			if _, ok := s.replyVisible[c.ID]; !ok {
				s.replyVisible[c.ID] = s.cfg.PageSize
			}
		}
		if _, ok := s.forms[c.ID]; !ok {
			s.forms[c.ID] = &formState{}
		}
	}
}
