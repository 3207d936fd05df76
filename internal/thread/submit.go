package thread

import (
	"context"
	"strings"

	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/errors"
)

// SubmitInput contains parameters for the Submit operation.
type SubmitInput struct {
	// FormID identifies the form the submission came from: RootFormID for a
	// new top-level comment, or the comment whose reply form was used.
	FormID comment.ID
	Author string
	Body   string
	Email  *string
}

// SubmitOutput contains the result of a successful Submit.
type SubmitOutput struct {
	// Comment is the optimistically inserted record. Confirmed is false
	// until the next full reload reflects the server's moderation decision.
	Comment comment.Comment

	// Focus is the focus target for the freshly inserted comment node, so
	// the presentation layer can scroll it into view.
	Focus string
}

// Submit validates the form contents, delegates to the submit collaborator,
// and on success performs an optimistic local insert: the new comment is
// appended to the collection and the affected disclosure counter is raised
// to the next page boundary so the comment is immediately visible. The
// submitting author's name is persisted for pre-filling future forms, and
// the used form closes (the root form stays open for further comments).
//
// Validation failure returns a VALIDATION error naming the focus target of
// the offending field and mutates nothing. Collaborator failure returns a
// SUBMIT_FAILED error and mutates nothing; the engine does not retry.
func (s *Session) Submit(ctx context.Context, input SubmitInput) (*SubmitOutput, error) {
	if err := comment.ValidateSubmission(input.Author, input.Body, s.cfg.Limits); err != nil {
		return nil, err
	}

	replyTo, err := s.resolveReplyTarget(input.FormID)
	if err != nil {
		return nil, err
	}

	author := strings.TrimSpace(input.Author)

	// The network call runs outside the session lock: submissions for
	// different comments may be concurrently in flight.
	id, body, err := s.submitter.CreateComment(ctx, s.path, input.Body, author, replyTo, input.Email)
	if err != nil {
		return nil, errors.NewSubmitFailed(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id <= 0 {
		id = comment.MaxID(s.comments) + 1
	}
	if body == "" {
		body = input.Body
	}

	inserted := comment.Comment{
		ID:        id,
		ThreadID:  s.threadID,
		Body:      body,
		Author:    author,
		Confirmed: false,
		CreatedAt: s.now(),
		ReplyTo:   replyTo,
	}
	s.comments = append(s.comments, inserted)
	s.state = StateLoaded

	// Raise the affected counter to the next page boundary, reading the
	// true count in the same step so results applied out of order never
	// lose an update.
	if !s.cfg.Unbounded() {
		if replyTo == nil {
			s.topVisible = nextPageBoundary(len(s.topLevel()), s.cfg.PageSize)
		} else {
			s.replyVisible[*replyTo] = nextPageBoundary(len(s.replies(*replyTo)), s.cfg.PageSize)
		}
	}
	if replyTo == nil {
		// A brand new top-level comment needs its own reply counter.
		if _, ok := s.replyVisible[id]; !ok {
			s.replyVisible[id] = s.cfg.PageSize
		}
	}
	if _, ok := s.forms[id]; !ok {
		s.forms[id] = &formState{}
	}

	s.authorName = author
	if input.FormID != comment.RootFormID {
		s.form(input.FormID).visible = false
	}

	return &SubmitOutput{
		Comment: inserted,
		Focus:   comment.FocusNode(id),
	}, nil
}

// resolveReplyTarget maps a form identifier to the reply-to identifier the
// server should record. The root form produces a top-level comment. A reply
// form targets the comment's top-level ancestor: replying to a reply folds
// into the same single reply list.
func (s *Session) resolveReplyTarget(formID comment.ID) (*comment.ID, error) {
	if formID == comment.RootFormID {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.comments {
		if c.ID == formID {
			target := c.ReplyTarget()
			return &target, nil
		}
	}
	return nil, errors.NewInvalidRequest("cannot reply to unknown comment")
}

// nextPageBoundary returns count rounded up to the next multiple of the page
// size, so a freshly inserted comment is always within the visible window.
func nextPageBoundary(count, pageSize int) int {
	return (count + pageSize - 1) / pageSize * pageSize
}
