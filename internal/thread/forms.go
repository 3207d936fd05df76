package thread

import (
	"github.com/banterhq/banter/internal/comment"
)

// Form state registry. Exactly one entry exists per comment identifier plus
// the root sentinel; entries for identifiers not yet seen are created lazily
// with the defensive default (closed) rather than failing. The root form is
// open by convention: the new-comment box is always shown.

// FormVisible reports whether the form for the given identifier is open.
func (s *Session) FormVisible(id comment.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form(id).visible
}

// OpenForm opens the form for the given identifier.
func (s *Session) OpenForm(id comment.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form(id).visible = true
}

// CloseForm closes the form for the given identifier.
func (s *Session) CloseForm(id comment.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form(id).visible = false
}

// ToggleForm flips the form visibility for the given identifier.
func (s *Session) ToggleForm(id comment.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.form(id)
	f.visible = !f.visible
}

// form returns the registry entry for id, creating it lazily. The root
// sentinel defaults to open, everything else to closed. Callers hold the lock.
func (s *Session) form(id comment.ID) *formState {
	if f, ok := s.forms[id]; ok {
		return f
	}
	f := &formState{visible: id == comment.RootFormID}
	s.forms[id] = f
	return f
}
