package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/db"
	"github.com/banterhq/banter/internal/errors"
	"github.com/banterhq/banter/internal/identity"
	"github.com/banterhq/banter/internal/thread"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	origin   string
	sessions *thread.Manager
}

// NewHandlers creates a new Handlers instance. origin is the normalized
// origin of the comments server the sessions talk to; identities are
// stored under it.
func NewHandlers(database *sql.DB, cfg *config.Config, origin string, sessions *thread.Manager) *Handlers {
	return &Handlers{db: database, cfg: cfg, origin: origin, sessions: sessions}
}

// Request types for each tool

// ThreadViewRequest represents the arguments for thread_view.
type ThreadViewRequest struct {
	URI     string `json:"uri"`
	Refresh bool   `json:"refresh,omitempty"`
}

// ThreadRevealRequest represents the arguments for thread_reveal.
type ThreadRevealRequest struct {
	URI    string `json:"uri"`
	Parent *int64 `json:"parent,omitempty"`
}

// CommentPostRequest represents the arguments for comment_post.
type CommentPostRequest struct {
	URI     string  `json:"uri"`
	Body    string  `json:"body"`
	Author  string  `json:"author,omitempty"`
	Email   *string `json:"email,omitempty"`
	ReplyTo *int64  `json:"reply_to,omitempty"`
}

// AuthorIdentityRequest represents the arguments for author_identity.
type AuthorIdentityRequest struct {
	Author string  `json:"author,omitempty"`
	Email  *string `json:"email,omitempty"`
	Forget bool    `json:"forget,omitempty"`
}

// Response shapes

// CommentView is one comment in a thread view.
type CommentView struct {
	ID        int64         `json:"id"`
	Author    string        `json:"author"`
	Body      string        `json:"body"`
	CreatedAt string        `json:"created_at"`
	Confirmed bool          `json:"confirmed"`
	Replies   []CommentView `json:"replies,omitempty"`
	// HiddenReplies counts replies beyond the disclosure counter.
	HiddenReplies int `json:"hidden_replies,omitempty"`
}

// ThreadView is the response for thread_view and thread_reveal.
type ThreadView struct {
	URI            string        `json:"uri"`
	State          string        `json:"state"`
	ThreadID       int64         `json:"thread_id,omitempty"`
	PageSize       int           `json:"page_size,omitempty"`
	Moderation     bool          `json:"moderation,omitempty"`
	Comments       []CommentView `json:"comments"`
	HiddenTopLevel int           `json:"hidden_top_level,omitempty"`
}

// Handler implementations

// HandleThreadView handles the thread_view tool call.
func (h *Handlers) HandleThreadView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ThreadViewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.URI == "" {
		return errorResult(errors.NewInvalidRequest("uri is required")), nil
	}

	var sess *thread.Session
	if input.Refresh {
		sess, err = h.sessions.Refresh(ctx, input.URI)
	} else {
		sess, err = h.sessions.Session(ctx, input.URI)
	}
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(renderThread(sess))
}

// HandleThreadReveal handles the thread_reveal tool call.
func (h *Handlers) HandleThreadReveal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ThreadRevealRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.URI == "" {
		return errorResult(errors.NewInvalidRequest("uri is required")), nil
	}

	sess, err := h.sessions.Session(ctx, input.URI)
	if err != nil {
		return errorResult(err), nil
	}

	scope := thread.TopLevelScope()
	if input.Parent != nil {
		scope = thread.RepliesScope(comment.ID(*input.Parent))
	}
	sess.RevealMore(scope)

	return successResult(renderThread(sess))
}

// HandleCommentPost handles the comment_post tool call.
func (h *Handlers) HandleCommentPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CommentPostRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.URI == "" {
		return errorResult(errors.NewInvalidRequest("uri is required")), nil
	}

	// An omitted author falls back to the stored identity for this server.
	author := input.Author
	email := input.Email
	if author == "" {
		ident, err := db.GetIdentity(h.db, h.origin)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return errorResult(errors.NewValidation(comment.FocusAuthorInput,
					"no author given and no stored identity; pass author or call author_identity first")), nil
			}
			return errorResult(err), nil
		}
		author = ident.Author
		if email == nil {
			email = ident.Email
		}
	}

	sess, err := h.sessions.Session(ctx, input.URI)
	if err != nil {
		return errorResult(err), nil
	}

	formID := comment.RootFormID
	if input.ReplyTo != nil {
		formID = comment.ID(*input.ReplyTo)
	}

	out, err := sess.Submit(ctx, thread.SubmitInput{
		FormID: formID,
		Author: author,
		Body:   input.Body,
		Email:  email,
	})
	if err != nil {
		return errorResult(err), nil
	}

	// Remember the identity that successfully posted.
	if _, err := db.SaveIdentity(h.db, h.origin, sess.AuthorName(), email); err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"comment": renderComment(out.Comment, nil, 0),
		"pending": !out.Comment.Confirmed && sess.Config().Moderation,
		"thread":  renderThread(sess),
	})
}

// HandleAuthorIdentity handles the author_identity tool call.
func (h *Handlers) HandleAuthorIdentity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AuthorIdentityRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Forget {
		if err := db.DeleteIdentity(h.db, h.origin); err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{"origin": h.origin, "forgotten": true})
	}

	var ident *identity.Identity
	if input.Author == "" {
		// Read-only lookup.
		ident, err = db.GetIdentity(h.db, h.origin)
	} else {
		ident, err = db.SaveIdentity(h.db, h.origin, input.Author, input.Email)
	}
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ident)
}

// renderThread builds the two-level tree view of a session.
func renderThread(s *thread.Session) ThreadView {
	cfg := s.Config()
	view := ThreadView{
		URI:        s.Path(),
		State:      s.State().String(),
		ThreadID:   s.ThreadID(),
		PageSize:   cfg.PageSize,
		Moderation: cfg.Moderation,
		Comments:   []CommentView{},
	}

	all := s.Comments()
	topLevel, hasMore := s.VisibleTopLevel()
	for _, c := range topLevel {
		replies, repliesMore := s.VisibleReplies(c.ID)
		hidden := 0
		if repliesMore {
			hidden = countReplies(all, c.ID) - len(replies)
		}
		view.Comments = append(view.Comments, renderComment(c, replies, hidden))
	}
	if hasMore {
		view.HiddenTopLevel = countTopLevel(all) - len(topLevel)
	}

	return view
}

// renderComment converts one comment plus its visible replies.
func renderComment(c comment.Comment, replies []comment.Comment, hiddenReplies int) CommentView {
	cv := CommentView{
		ID:            int64(c.ID),
		Author:        c.Author,
		Body:          c.Body,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
		Confirmed:     c.Confirmed,
		HiddenReplies: hiddenReplies,
	}
	for _, r := range replies {
		cv.Replies = append(cv.Replies, renderComment(r, nil, 0))
	}
	return cv
}

func countTopLevel(all []comment.Comment) int {
	n := 0
	for _, c := range all {
		if !c.IsReply() {
			n++
		}
	}
	return n
}

func countReplies(all []comment.Comment, parent comment.ID) int {
	n := 0
	for _, c := range all {
		if c.IsReply() && *c.ReplyTo == parent {
			n++
		}
	}
	return n
}

// errorResult creates an MCP error result from a structured error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if banterErr, ok := err.(*errors.BanterError); ok {
		errorObj := map[string]any{
			"code":    banterErr.Code,
			"message": banterErr.Message,
			"status":  banterErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if banterErr.Code != errors.ErrInternal && banterErr.Details != nil {
			errorObj["details"] = banterErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
