package mcp

import (
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/banterhq/banter/internal/api"
	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/identity"
	"github.com/banterhq/banter/internal/thread"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var threadViewToolDef = mcp.NewTool("thread_view",
	mcp.WithDescription("View the comment thread for a page as a two-level tree. Shows the currently revealed comments; hidden counts indicate how many more thread_reveal would show."),
	mcp.WithString("uri",
		mcp.Required(),
		mcp.Description("Logical page path the thread belongs to, e.g. /blog/my-post"),
	),
	mcp.WithBoolean("refresh",
		mcp.Description("Re-fetch comments from the server. Revealed comments stay revealed. Also retries a failed thread."),
	),
)

var threadRevealToolDef = mcp.NewTool("thread_reveal",
	mcp.WithDescription("Reveal one more page of comments in a thread, either at the top level or under one comment. Revealing never hides anything."),
	mcp.WithString("uri",
		mcp.Required(),
		mcp.Description("Logical page path the thread belongs to"),
	),
	mcp.WithNumber("parent",
		mcp.Description("Identifier of the top-level comment whose replies to reveal. Omit to reveal more top-level comments."),
	),
)

var commentPostToolDef = mcp.NewTool("comment_post",
	mcp.WithDescription("Post a comment to a page's thread. The comment appears in the thread immediately; on moderated servers it stays pending until approved. Replying to a reply attaches to its top-level comment."),
	mcp.WithString("uri",
		mcp.Required(),
		mcp.Description("Logical page path to comment on"),
	),
	mcp.WithString("body",
		mcp.Required(),
		mcp.Description("Comment text, at least 3 characters. Markdown is rendered server-side."),
	),
	mcp.WithString("author",
		mcp.Description("Display name, at least 3 characters. Defaults to the stored identity for this server."),
	),
	mcp.WithString("email",
		mcp.Description("Optional email, used by the server for gravatars and notifications"),
	),
	mcp.WithNumber("reply_to",
		mcp.Description("Identifier of the comment to reply to. Omit for a new top-level comment."),
	),
)

var authorIdentityToolDef = mcp.NewTool("author_identity",
	mcp.WithDescription("Show, set, or forget the commenter identity stored for this server. Setting it the first time mints a stable visitor token."),
	mcp.WithString("author",
		mcp.Description("Display name to store. Omit to just show the current identity."),
	),
	mcp.WithString("email",
		mcp.Description("Optional email to store alongside the name"),
	),
	mcp.WithBoolean("forget",
		mcp.Description("Delete the stored identity for this server"),
	),
)

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"thread_view": {
		def:     threadViewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleThreadView },
	},
	"thread_reveal": {
		def:     threadRevealToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleThreadReveal },
	},
	"comment_post": {
		def:     commentPostToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCommentPost },
	},
	"author_identity": {
		def:     authorIdentityToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAuthorIdentity },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with Banter tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(database *sql.DB, cfg *config.Config, version string) (*server.MCPServer, error) {
	origin, err := identity.NormalizeOrigin(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	s := server.NewMCPServer(
		"banter",
		version,
		server.WithToolCapabilities(true),
	)

	client := api.NewClient(cfg.ServerURL)
	h := NewHandlers(database, cfg, origin, thread.NewManager(client, cfg.PageSize))

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s, nil
}

// Run starts the MCP server using stdio transport.
func Run(database *sql.DB, cfg *config.Config, version string) error {
	s, err := NewServer(database, cfg, version)
	if err != nil {
		return err
	}
	return server.ServeStdio(s)
}
