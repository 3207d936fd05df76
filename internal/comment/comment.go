// Package comment contains the comment data model shared by the engine,
// the API client, and the presentation surfaces.
package comment

import (
	"sort"
	"time"
)

// ID is a server-assigned comment identifier. Identifiers are unique and
// monotonically increasing but not guaranteed gap-free.
type ID int64

// RootFormID is the sentinel identifier for the thread-level new-comment form.
const RootFormID ID = -1

// Comment represents a single comment in a thread. Field names match the
// wire format served by the comments API.
type Comment struct {
	ID        ID         `json:"Id"`
	ThreadID  int64      `json:"ThreadId"`
	Body      string     `json:"Body"`
	Author    string     `json:"Author"`
	Confirmed bool       `json:"Confirmed"`
	CreatedAt time.Time  `json:"CreatedAt"`
	DeletedAt *time.Time `json:"DeletedAt,omitempty"`
	ReplyTo   *ID        `json:"ReplyTo,omitempty"`
}

// IsReply reports whether the comment targets another comment.
func (c Comment) IsReply() bool {
	return c.ReplyTo != nil
}

// ReplyTarget returns the identifier a reply to this comment should target.
// Replies are never nested more than one level deep: replying to a reply
// targets its top-level ancestor, replying to a top-level comment targets
// the comment itself.
func (c Comment) ReplyTarget() ID {
	if c.ReplyTo != nil {
		return *c.ReplyTo
	}
	return c.ID
}

// Slice represents a collection of comments, sortable by creation time.
type Slice []Comment

func (cs Slice) Len() int {
	return len(cs)
}

func (cs Slice) Less(i, j int) bool {
	return cs[i].CreatedAt.Before(cs[j].CreatedAt)
}

func (cs Slice) Swap(i, j int) {
	cs[i], cs[j] = cs[j], cs[i]
}

// SortByCreatedAt returns a copy of the comments ordered oldest-first.
// The sort is stable so comments sharing a timestamp keep arrival order.
func SortByCreatedAt(comments []Comment) []Comment {
	out := make([]Comment, len(comments))
	copy(out, comments)
	sort.Stable(Slice(out))
	return out
}

// MaxID returns the largest identifier present in the collection, or 0
// when the collection is empty.
func MaxID(comments []Comment) ID {
	var maxID ID
	for _, c := range comments {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	return maxID
}
