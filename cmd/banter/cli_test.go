package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/banterhq/banter/internal/api"
	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/db"
	"github.com/banterhq/banter/internal/identity"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	cleanup := func() {
		database.Close()
	}
	return database, cleanup
}

// startCommentsServer runs a fake comments server and returns its URL.
func startCommentsServer(t *testing.T, comments map[string][]comment.Comment) string {
	t.Helper()

	nextID := comment.ID(100)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/client/config", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ClientConfig{PageSize: 10})
	})
	mux.HandleFunc("GET /v1/comments", func(w http.ResponseWriter, r *http.Request) {
		list, ok := comments[r.URL.Query().Get("uri")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("POST /v1/comments", func(w http.ResponseWriter, r *http.Request) {
		nextID++
		json.NewEncoder(w).Encode(map[string]any{"id": nextID, "body": ""})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func testComments() map[string][]comment.Comment {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	parent := comment.ID(1)
	return map[string][]comment.Comment{
		"/blog/post-1": {
			{ID: 1, ThreadID: 7, Body: "<p>first</p>", Author: "alice", Confirmed: true, CreatedAt: base},
			{ID: 2, ThreadID: 7, Body: "<p>second</p>", Author: "bob", Confirmed: true, CreatedAt: base.Add(time.Minute)},
			{ID: 3, ThreadID: 7, Body: "<p>a reply</p>", Author: "carol", Confirmed: true, CreatedAt: base.Add(2 * time.Minute), ReplyTo: &parent},
		},
	}
}

// runApp runs the CLI app with the given args and captures stdout.
func runApp(t *testing.T, database *sql.DB, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	app := newCLIApp(database, cfg)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(append([]string{"banter"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

// TestCLIView tests the view command.
func TestCLIView(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = startCommentsServer(t, testComments())

	out, err := runApp(t, database, cfg, "view", "/blog/post-1")
	if err != nil {
		t.Fatalf("view command failed: %v", err)
	}

	var output threadOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if output.State != "loaded" {
		t.Errorf("expected state=loaded, got %s", output.State)
	}
	if len(output.Comments) != 2 {
		t.Fatalf("expected 2 top-level comments, got %d", len(output.Comments))
	}
	if len(output.Comments[0].Replies) != 1 {
		t.Errorf("expected 1 reply under the first comment, got %d", len(output.Comments[0].Replies))
	}
	if output.ThreadID != 7 {
		t.Errorf("expected thread_id=7, got %d", output.ThreadID)
	}
}

// TestCLIViewEmpty tests viewing a page with no thread yet.
func TestCLIViewEmpty(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = startCommentsServer(t, map[string][]comment.Comment{})

	out, err := runApp(t, database, cfg, "view", "/fresh")
	if err != nil {
		t.Fatalf("view command failed: %v", err)
	}

	var output threadOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.State != "empty" {
		t.Errorf("expected state=empty, got %s", output.State)
	}
	if len(output.Comments) != 0 {
		t.Errorf("expected no comments, got %d", len(output.Comments))
	}
}

// TestCLIViewPaged tests that a page-size override limits the view.
func TestCLIViewPaged(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = startCommentsServer(t, testComments())
	cfg.PageSize = 1

	out, err := runApp(t, database, cfg, "view", "/blog/post-1")
	if err != nil {
		t.Fatalf("view command failed: %v", err)
	}

	var output threadOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(output.Comments) != 1 {
		t.Errorf("expected 1 visible comment, got %d", len(output.Comments))
	}
	if output.HiddenTopLevel != 1 {
		t.Errorf("expected hidden_top_level=1, got %d", output.HiddenTopLevel)
	}

	// --all ignores the page size.
	out, err = runApp(t, database, cfg, "view", "--all", "/blog/post-1")
	if err != nil {
		t.Fatalf("view --all failed: %v", err)
	}
	output = threadOutput{}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(output.Comments) != 2 {
		t.Errorf("expected 2 visible comments with --all, got %d", len(output.Comments))
	}
	if output.HiddenTopLevel != 0 {
		t.Errorf("expected hidden_top_level=0 with --all, got %d", output.HiddenTopLevel)
	}
}

// TestCLIPost tests the post command.
func TestCLIPost(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = startCommentsServer(t, testComments())

	out, err := runApp(t, database, cfg, "post",
		"--author=erin", "--body=hello from the command line", "/blog/post-1")
	if err != nil {
		t.Fatalf("post command failed: %v", err)
	}

	var output struct {
		Comment commentOutput `json:"comment"`
		Pending bool          `json:"pending"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if output.Comment.ID != 101 {
		t.Errorf("expected id=101, got %d", output.Comment.ID)
	}
	if output.Comment.Author != "erin" {
		t.Errorf("expected author=erin, got %s", output.Comment.Author)
	}
	if output.Comment.Body != "hello from the command line" {
		t.Errorf("unexpected body %q", output.Comment.Body)
	}

	// Posting stores the identity for the server.
	origin, err := identity.NormalizeOrigin(cfg.ServerURL)
	if err != nil {
		t.Fatalf("NormalizeOrigin() error = %v", err)
	}
	ident, err := db.GetIdentity(database, origin)
	if err != nil {
		t.Fatalf("identity not stored after post: %v", err)
	}
	if ident.Author != "erin" {
		t.Errorf("expected stored author=erin, got %s", ident.Author)
	}
}

// TestCLIPostFromStdin tests reading the comment body from stdin.
func TestCLIPostFromStdin(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = startCommentsServer(t, testComments())

	oldStdin := os.Stdin
	stdinR, stdinW, _ := os.Pipe()
	os.Stdin = stdinR
	defer func() { os.Stdin = oldStdin }()

	go func() {
		_, _ = stdinW.WriteString("a body piped in\n")
		stdinW.Close()
	}()

	out, err := runApp(t, database, cfg, "post", "--author=erin", "/blog/post-1")
	if err != nil {
		t.Fatalf("post command failed: %v", err)
	}

	var output struct {
		Comment commentOutput `json:"comment"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Comment.Body != "a body piped in" {
		t.Errorf("unexpected body %q", output.Comment.Body)
	}
}

// TestCLIPostUsesStoredIdentity tests the identity fallback.
func TestCLIPostUsesStoredIdentity(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = startCommentsServer(t, testComments())

	origin, err := identity.NormalizeOrigin(cfg.ServerURL)
	if err != nil {
		t.Fatalf("NormalizeOrigin() error = %v", err)
	}
	if _, err := db.SaveIdentity(database, origin, "stored-name", nil); err != nil {
		t.Fatalf("SaveIdentity() error = %v", err)
	}

	out, err := runApp(t, database, cfg, "post", "--body=a comment with no author flag", "/blog/post-1")
	if err != nil {
		t.Fatalf("post command failed: %v", err)
	}

	var output struct {
		Comment commentOutput `json:"comment"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Comment.Author != "stored-name" {
		t.Errorf("expected author=stored-name, got %s", output.Comment.Author)
	}
}

// TestCLIAuthor tests the author command.
func TestCLIAuthor(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = "https://comments.example.com"

	t.Run("set", func(t *testing.T) {
		out, err := runApp(t, database, cfg, "author", "--name=erin", "--email=erin@example.com")
		if err != nil {
			t.Fatalf("author command failed: %v", err)
		}

		var ident identity.Identity
		if err := json.Unmarshal([]byte(out), &ident); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if ident.Author != "erin" {
			t.Errorf("expected author=erin, got %s", ident.Author)
		}
		if ident.VisitorToken == "" {
			t.Error("expected a visitor token")
		}
	})

	t.Run("get", func(t *testing.T) {
		out, err := runApp(t, database, cfg, "author")
		if err != nil {
			t.Fatalf("author command failed: %v", err)
		}

		var ident identity.Identity
		if err := json.Unmarshal([]byte(out), &ident); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if ident.Author != "erin" {
			t.Errorf("expected author=erin, got %s", ident.Author)
		}
	})

	t.Run("list", func(t *testing.T) {
		out, err := runApp(t, database, cfg, "author", "--list")
		if err != nil {
			t.Fatalf("author command failed: %v", err)
		}

		var output struct {
			Identities []identity.Identity `json:"identities"`
		}
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(output.Identities) != 1 {
			t.Errorf("expected 1 identity, got %d", len(output.Identities))
		}
	})

	t.Run("forget", func(t *testing.T) {
		out, err := runApp(t, database, cfg, "author", "--forget")
		if err != nil {
			t.Fatalf("author command failed: %v", err)
		}

		var output struct {
			Forgotten bool `json:"forgotten"`
		}
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if !output.Forgotten {
			t.Error("expected forgotten=true")
		}

		if _, err := runApp(t, database, cfg, "author"); err == nil {
			t.Error("expected error after forget, got nil")
		}
	})
}

// TestCLIConfig tests the config command.
func TestCLIConfig(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = "https://comments.example.com"
	cfg.PageSize = 7

	out, err := runApp(t, database, cfg, "config")
	if err != nil {
		t.Fatalf("config command failed: %v", err)
	}

	var output config.Config
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.ServerURL != "https://comments.example.com" {
		t.Errorf("unexpected server_url %q", output.ServerURL)
	}
	if output.PageSize != 7 {
		t.Errorf("expected page_size=7, got %d", output.PageSize)
	}
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.ServerURL = startCommentsServer(t, testComments())

	t.Run("view without uri returns error", func(t *testing.T) {
		_, err := runApp(t, database, cfg, "view")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("post without body returns error", func(t *testing.T) {
		_, err := runApp(t, database, cfg, "post", "--author=erin", "/blog/post-1")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("post with too-short author returns error", func(t *testing.T) {
		_, err := runApp(t, database, cfg, "post", "--author=ab", "--body=a fine body", "/blog/post-1")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("post without author or identity returns error", func(t *testing.T) {
		_, err := runApp(t, database, cfg, "post", "--body=a fine body", "/blog/post-1")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("unreachable server returns error", func(t *testing.T) {
		broken := config.DefaultConfig()
		broken.ServerURL = "http://127.0.0.1:1"
		_, err := runApp(t, database, broken, "view", "/blog/post-1")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{
			name:     "no args",
			args:     []string{"banter"},
			expected: false,
		},
		{
			name:     "view command",
			args:     []string{"banter", "view"},
			expected: true,
		},
		{
			name:     "post command",
			args:     []string{"banter", "post"},
			expected: true,
		},
		{
			name:     "serve command",
			args:     []string{"banter", "serve"},
			expected: true,
		},
		{
			name:     "help flag",
			args:     []string{"banter", "--help"},
			expected: true,
		},
		{
			name:     "version flag",
			args:     []string{"banter", "--version"},
			expected: true,
		},
		{
			name:     "short help flag",
			args:     []string{"banter", "-h"},
			expected: true,
		},
		{
			name:     "short version flag",
			args:     []string{"banter", "-v"},
			expected: true,
		},
		{
			name:     "unknown arg defaults to MCP",
			args:     []string{"banter", "--unknown"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save and restore os.Args
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			result := isCLIMode()

			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{
			name:     "no args",
			args:     []string{"banter"},
			expected: false,
		},
		{
			name:     "help flag",
			args:     []string{"banter", "--help"},
			expected: true,
		},
		{
			name:     "short help flag",
			args:     []string{"banter", "-h"},
			expected: true,
		},
		{
			name:     "version flag",
			args:     []string{"banter", "--version"},
			expected: true,
		},
		{
			name:     "short version flag",
			args:     []string{"banter", "-v"},
			expected: true,
		},
		{
			name:     "help subcommand",
			args:     []string{"banter", "help"},
			expected: true,
		},
		{
			name:     "view command is not help",
			args:     []string{"banter", "view"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			result := isHelpOrVersion()

			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestReadStdin tests the readStdin helper.
func TestReadStdin(t *testing.T) {
	content := "piped comment body\n"
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}

	go func() {
		_, _ = w.WriteString(content)
		w.Close()
	}()

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	result, err := readStdin()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "piped comment body" {
		t.Errorf("expected trimmed content, got %q", result)
	}
}
