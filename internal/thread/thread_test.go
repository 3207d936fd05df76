package thread

import (
	"context"
	"time"

	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/errors"
)

// fakeFetcher serves a canned comment collection or error.
type fakeFetcher struct {
	comments []comment.Comment
	err      error
	calls    int
}

func (f *fakeFetcher) Comments(_ context.Context, _ string) ([]comment.Comment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.comments, nil
}

// fakeSubmitter records the last submission and returns a canned response.
type fakeSubmitter struct {
	id      comment.ID
	body    string
	err     error
	lastReq struct {
		path    string
		body    string
		author  string
		replyTo *comment.ID
		email   *string
	}
	calls int
}

func (f *fakeSubmitter) CreateComment(_ context.Context, path, body, author string, replyTo *comment.ID, email *string) (comment.ID, string, error) {
	f.calls++
	f.lastReq.path = path
	f.lastReq.body = body
	f.lastReq.author = author
	f.lastReq.replyTo = replyTo
	f.lastReq.email = email
	if f.err != nil {
		return 0, "", f.err
	}
	return f.id, f.body, nil
}

func baseTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

// topLevelComment builds a top-level comment n seconds into the thread.
func topLevelComment(id comment.ID, sec int) comment.Comment {
	return comment.Comment{
		ID:        id,
		ThreadID:  1,
		Body:      "<p>body</p>",
		Author:    "author",
		Confirmed: true,
		CreatedAt: baseTime().Add(time.Duration(sec) * time.Second),
	}
}

// replyComment builds a reply to parent n seconds into the thread.
func replyComment(id, parent comment.ID, sec int) comment.Comment {
	c := topLevelComment(id, sec)
	c.ReplyTo = &parent
	return c
}

// loadedSession builds a loaded session over the given comments.
func loadedSession(cfg Config, comments []comment.Comment) (*Session, *fakeSubmitter) {
	fetcher := &fakeFetcher{comments: comments}
	submitter := &fakeSubmitter{}
	s := NewSession("/blog/post-1", cfg, fetcher, submitter)
	if err := s.Load(context.Background()); err != nil {
		panic(err)
	}
	return s, submitter
}

var errUpstream = errors.NewInternal(nil)
