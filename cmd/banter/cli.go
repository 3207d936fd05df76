package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/banterhq/banter/internal/api"
	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/db"
	"github.com/banterhq/banter/internal/errors"
	"github.com/banterhq/banter/internal/identity"
	"github.com/banterhq/banter/internal/thread"
	"github.com/banterhq/banter/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "banter",
		Usage:   "Comment threads for static pages",
		Version: Version,
		Commands: []*cli.Command{
			viewCmd(cfg),
			postCmd(database, cfg),
			authorCmd(database, cfg),
			configCmd(cfg),
			serveCmd(database, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// commentOutput is one comment in the view command's JSON output.
type commentOutput struct {
	ID            int64           `json:"id"`
	Author        string          `json:"author"`
	Body          string          `json:"body"`
	CreatedAt     time.Time       `json:"created_at"`
	Confirmed     bool            `json:"confirmed"`
	Replies       []commentOutput `json:"replies,omitempty"`
	HiddenReplies int             `json:"hidden_replies,omitempty"`
}

// threadOutput is the view command's JSON output.
type threadOutput struct {
	URI            string          `json:"uri"`
	State          string          `json:"state"`
	ThreadID       int64           `json:"thread_id,omitempty"`
	PageSize       int             `json:"page_size,omitempty"`
	Moderation     bool            `json:"moderation,omitempty"`
	Comments       []commentOutput `json:"comments"`
	HiddenTopLevel int             `json:"hidden_top_level,omitempty"`
}

// viewCmd creates the view command.
func viewCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "View the comment thread for a page",
		ArgsUsage: "<uri>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Show every comment, ignoring the page size"},
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "Comments server URL (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("uri argument is required"))
			}
			uri := c.Args().First()

			override := cfg.PageSize
			if c.Bool("all") {
				override = -1
			}

			manager := thread.NewManager(api.NewClient(serverURL(c, cfg)), override)
			sess, err := manager.Session(c.Context, uri)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(buildThreadOutput(sess))
		},
	}
}

// postCmd creates the post command.
func postCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Post a comment (reads the body from stdin or --body)",
		ArgsUsage: "<uri>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Comment body (alternative to stdin)"},
			&cli.StringFlag{Name: "author", Usage: "Display name (defaults to the stored identity)"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email to send along (optional)"},
			&cli.Int64Flag{Name: "reply-to", Aliases: []string{"r"}, Usage: "Identifier of the comment to reply to"},
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "Comments server URL (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("uri argument is required"))
			}
			uri := c.Args().First()

			body := c.String("body")
			if body == "" && stdinHasData() {
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				body = text
			}
			if body == "" {
				return outputError(errors.NewInvalidRequest("comment body must be given via --body or stdin"))
			}

			server := serverURL(c, cfg)
			origin, err := identity.NormalizeOrigin(server)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			var email *string
			if v := c.String("email"); v != "" {
				email = &v
			}

			author := c.String("author")
			if author == "" {
				ident, err := db.GetIdentity(database, origin)
				if err != nil {
					if errors.Is(err, errors.ErrNotFound) {
						return outputError(errors.NewInvalidRequest(
							"no --author given and no stored identity; run 'banter author --name ...' first"))
					}
					return outputError(err)
				}
				author = ident.Author
				if email == nil {
					email = ident.Email
				}
			}

			manager := thread.NewManager(api.NewClient(server), cfg.PageSize)
			sess, err := manager.Session(c.Context, uri)
			if err != nil {
				return outputError(err)
			}

			formID := comment.RootFormID
			if id := c.Int64("reply-to"); id != 0 {
				formID = comment.ID(id)
			}

			out, err := sess.Submit(c.Context, thread.SubmitInput{
				FormID: formID,
				Author: author,
				Body:   body,
				Email:  email,
			})
			if err != nil {
				return outputError(err)
			}

			if _, err := db.SaveIdentity(database, origin, sess.AuthorName(), email); err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{
				"comment": toCommentOutput(out.Comment, nil, 0),
				"pending": !out.Comment.Confirmed && sess.Config().Moderation,
			})
		},
	}
}

// authorCmd creates the author command.
func authorCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "author",
		Usage: "Show, set, or forget the stored commenter identity",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name to store"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email to store"},
			&cli.BoolFlag{Name: "forget", Usage: "Delete the stored identity for this server"},
			&cli.BoolFlag{Name: "list", Aliases: []string{"l"}, Usage: "List identities for all servers"},
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "Comments server URL (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("list") {
				identities, err := db.ListIdentities(database)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]any{"identities": identities})
			}

			origin, err := identity.NormalizeOrigin(serverURL(c, cfg))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			if c.Bool("forget") {
				if err := db.DeleteIdentity(database, origin); err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]any{"origin": origin, "forgotten": true})
			}

			var ident *identity.Identity
			if name := c.String("name"); name != "" {
				var email *string
				if v := c.String("email"); v != "" {
					email = &v
				}
				ident, err = db.SaveIdentity(database, origin, name, email)
			} else {
				ident, err = db.GetIdentity(database, origin)
			}
			if err != nil {
				return outputError(err)
			}

			return outputJSON(ident)
		},
	}
}

// configCmd creates the config command.
func configCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration",
		Action: func(c *cli.Context) error {
			return outputJSON(cfg)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local thread preview UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8433, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(database, cfg, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(err)
			}
			return web.Run(srv)
		},
	}
}

// Helper functions

// serverURL resolves the comments server URL: flag wins over config.
func serverURL(c *cli.Context, cfg *config.Config) string {
	if s := c.String("server"); s != "" {
		return s
	}
	return cfg.ServerURL
}

// buildThreadOutput renders a session's current view for the CLI.
func buildThreadOutput(sess *thread.Session) threadOutput {
	cfg := sess.Config()
	out := threadOutput{
		URI:        sess.Path(),
		State:      sess.State().String(),
		ThreadID:   sess.ThreadID(),
		PageSize:   cfg.PageSize,
		Moderation: cfg.Moderation,
		Comments:   []commentOutput{},
	}

	all := sess.Comments()
	topLevel, hasMore := sess.VisibleTopLevel()
	for _, c := range topLevel {
		replies, repliesMore := sess.VisibleReplies(c.ID)
		hidden := 0
		if repliesMore {
			hidden = countReplies(all, c.ID) - len(replies)
		}
		out.Comments = append(out.Comments, toCommentOutput(c, replies, hidden))
	}
	if hasMore {
		out.HiddenTopLevel = countTopLevel(all) - len(topLevel)
	}

	return out
}

func toCommentOutput(c comment.Comment, replies []comment.Comment, hiddenReplies int) commentOutput {
	co := commentOutput{
		ID:            int64(c.ID),
		Author:        c.Author,
		Body:          c.Body,
		CreatedAt:     c.CreatedAt,
		Confirmed:     c.Confirmed,
		HiddenReplies: hiddenReplies,
	}
	for _, r := range replies {
		co.Replies = append(co.Replies, toCommentOutput(r, nil, 0))
	}
	return co
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

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if banterErr, ok := err.(*errors.BanterError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", banterErr.Code, banterErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
