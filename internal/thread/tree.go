package thread

import (
	"github.com/banterhq/banter/internal/comment"
)

// Scope identifies which disclosure counter an operation targets: the
// top-level list or the reply list of one parent comment.
type Scope struct {
	TopLevel bool
	Parent   comment.ID
}

// TopLevelScope targets the thread's top-level list.
func TopLevelScope() Scope {
	return Scope{TopLevel: true}
}

// RepliesScope targets the reply list of the given top-level comment.
func RepliesScope(parent comment.ID) Scope {
	return Scope{Parent: parent}
}

// VisibleTopLevel returns the top-level comments, oldest first, truncated to
// the top-level disclosure counter, and whether more remain hidden.
func (s *Session) VisibleTopLevel() ([]comment.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.topLevel()
	return truncate(all, s.topVisible, s.cfg.Unbounded())
}

// VisibleReplies returns the direct replies of the given top-level comment,
// oldest first, truncated to that parent's reply counter, and whether more
// remain hidden. A parent that is not a known top-level comment has no
// visible replies.
func (s *Session) VisibleReplies(parent comment.ID) ([]comment.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isTopLevel(parent) {
		return nil, false
	}
	all := s.replies(parent)
	counter, ok := s.replyVisible[parent]
	if !ok {
		counter = s.cfg.PageSize
	}
	return truncate(all, counter, s.cfg.Unbounded())
}

// RevealMore raises the disclosure counter for the given scope by one page
// size, saturating at the total count. Once saturated, further calls are
// no-ops. Counters only ever grow during a session, so items already
// revealed never disappear mid-interaction.
func (s *Session) RevealMore(scope Scope) {
	if s.cfg.Unbounded() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if scope.TopLevel {
		s.topVisible = saturatingAdd(s.topVisible, s.cfg.PageSize, len(s.topLevel()))
		return
	}
	if !s.isTopLevel(scope.Parent) {
		return
	}
	counter, ok := s.replyVisible[scope.Parent]
	if !ok {
		counter = s.cfg.PageSize
	}
	s.replyVisible[scope.Parent] = saturatingAdd(counter, s.cfg.PageSize, len(s.replies(scope.Parent)))
}

// topLevel returns all top-level comments oldest first. Callers hold the lock.
func (s *Session) topLevel() []comment.Comment {
	out := make([]comment.Comment, 0, len(s.comments))
	for _, c := range s.comments {
		if !c.IsReply() {
			out = append(out, c)
		}
	}
	return comment.SortByCreatedAt(out)
}

// replies returns the direct replies of parent oldest first. A reply whose
// target is not a known top-level comment is an orphan and appears nowhere.
// Callers hold the lock.
func (s *Session) replies(parent comment.ID) []comment.Comment {
	out := make([]comment.Comment, 0)
	for _, c := range s.comments {
		if c.ReplyTo != nil && *c.ReplyTo == parent {
			out = append(out, c)
		}
	}
	return comment.SortByCreatedAt(out)
}

// isTopLevel reports whether id names a top-level comment in the live
// collection. Callers hold the lock.
func (s *Session) isTopLevel(id comment.ID) bool {
	for _, c := range s.comments {
		if c.ID == id && !c.IsReply() {
			return true
		}
	}
	return false
}

// truncate cuts a sorted list down to the counter value and reports whether
// anything was cut.
func truncate(all []comment.Comment, counter int, unbounded bool) ([]comment.Comment, bool) {
	if unbounded || counter >= len(all) {
		return all, false
	}
	if counter < 0 {
		counter = 0
	}
	return all[:counter], true
}

// saturatingAdd raises counter by pageSize without growing past total.
func saturatingAdd(counter, pageSize, total int) int {
	counter += pageSize
	if counter > total {
		counter = total
	}
	return counter
}
