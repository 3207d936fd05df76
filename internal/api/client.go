// Package api implements the HTTP client for the comments server:
// fetching the comment collection, fetching the deployment's client
// configuration, and submitting new comments.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/banterhq/banter/internal/comment"
	"github.com/banterhq/banter/internal/errors"
)

// ClientConfig is the per-deployment presentation and validation limits
// served by the comments server.
type ClientConfig struct {
	PageSize         int  `json:"pageSize"`
	Moderation       bool `json:"moderation"`
	MaxAuthorLength  int  `json:"maxAuthorLength"`
	MaxCommentLength int  `json:"maxCommentLength"`
	UseDefaultStyle  bool `json:"useDefaultStyle"`
}

// createCommentBody is the wire format for a create comment request.
type createCommentBody struct {
	Path    string      `json:"path"`
	Body    string      `json:"body"`
	Author  string      `json:"author"`
	Email   *string     `json:"email,omitempty"`
	ReplyTo *comment.ID `json:"replyTo,omitempty"`
}

// createCommentResponse is the wire format for a create comment response.
// The identifier is authoritative; the body comes back server-normalized.
type createCommentResponse struct {
	ID   comment.ID `json:"id"`
	Body string     `json:"body"`
}

// Client is an HTTP client for a comments server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/v1",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Comments retrieves all comments for a logical path. A path with no thread
// yet comes back as a NOT_FOUND error; callers treat that as the normal
// empty state.
func (c *Client) Comments(ctx context.Context, path string) ([]comment.Comment, error) {
	requestURL := fmt.Sprintf("%s/comments?uri=%s", c.baseURL, url.QueryEscape(path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFound(path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("comments request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var comments []comment.Comment
	if err := json.NewDecoder(resp.Body).Decode(&comments); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return comments, nil
}

// ClientConfig retrieves the deployment's client configuration.
func (c *Client) ClientConfig(ctx context.Context) (*ClientConfig, error) {
	requestURL := c.baseURL + "/client/config"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("config request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var cfg ClientConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &cfg, nil
}

// CreateComment creates a new comment server-side and returns the assigned
// identifier and the server-normalized body. It satisfies the engine's
// Submitter interface.
func (c *Client) CreateComment(ctx context.Context, path, body, author string, replyTo *comment.ID, email *string) (comment.ID, string, error) {
	payload, err := json.Marshal(createCommentBody{
		Path:    path,
		Body:    body,
		Author:  author,
		Email:   email,
		ReplyTo: replyTo,
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to encode request: %w", err)
	}

	requestURL := c.baseURL + "/comments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, "", fmt.Errorf("create comment failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var created createCommentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, "", fmt.Errorf("failed to decode response: %w", err)
	}

	return created.ID, created.Body, nil
}
