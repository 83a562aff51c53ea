package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"copydesk/internal/config"
	"copydesk/internal/logging"
)

const postsPath = "/wp-json/wp/v2/posts"

// Draft identifies a created review draft.
type Draft struct {
	ID   int64
	Link string
}

// Ref returns the draft identifier as stored on the queue row.
func (d Draft) Ref() string { return fmt.Sprintf("%d", d.ID) }

// Client is the CMS REST client. Authentication uses an application password
// over HTTP basic auth.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a client from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Publish.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.Publish.BaseURL, "/"),
		username:   cfg.Publish.Username,
		password:   cfg.Publish.AppPassword,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "publish"),
	}
}

type postResponse struct {
	ID      int64 `json:"id"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
	Link string `json:"link"`
}

// FetchCurrent returns the rendered content of a post. Published posts are
// usually publicly readable, so the first attempt goes out unauthenticated;
// a 403 (security plugins blocking anonymous REST reads) triggers one
// authenticated retry.
func (c *Client) FetchCurrent(ctx context.Context, remoteID string) (string, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return "", fmt.Errorf("remote post id is empty")
	}
	url := c.baseURL + postsPath + "/" + remoteID

	resp, err := c.get(ctx, url, false)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusForbidden {
		drain(resp)
		c.logger.Debug("unauthenticated fetch blocked, retrying with auth",
			logging.String("remote_id", remoteID))
		resp, err = c.get(ctx, url, true)
		if err != nil {
			return "", err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", httpError("fetch post", resp)
	}

	var post postResponse
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return "", fmt.Errorf("decode post %s: %w", remoteID, err)
	}
	c.logger.Info("fetched current content",
		logging.String("remote_id", remoteID),
		logging.Int("chars", len(post.Content.Rendered)))
	return post.Content.Rendered, nil
}

// CreateDraft creates a review draft with the given title and HTML content.
// The status is always draft.
func (c *Client) CreateDraft(ctx context.Context, title, html string) (Draft, error) {
	payload := map[string]string{
		"title":   title,
		"content": html,
		"status":  "draft",
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Draft{}, fmt.Errorf("encode draft: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+postsPath, bytes.NewReader(encoded))
	if err != nil {
		return Draft{}, fmt.Errorf("build draft request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Draft{}, fmt.Errorf("create draft: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Draft{}, httpError("create draft", resp)
	}

	var post postResponse
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return Draft{}, fmt.Errorf("decode draft response: %w", err)
	}
	draft := Draft{ID: post.ID, Link: post.Link}
	c.logger.Info("draft created",
		logging.String("draft_ref", draft.Ref()),
		logging.String("link", draft.Link))
	return draft, nil
}

func (c *Client) get(ctx context.Context, url string, authed bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if authed {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cms request: %w", err)
	}
	return resp, nil
}

func httpError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: http %d: %s", op, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
