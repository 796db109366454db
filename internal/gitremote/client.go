// Package gitremote is the client for the remote repository service. It
// covers the five operations the engine consumes: head commit lookup, file
// tree listing, file content fetch, commit comparison, and code search.
package gitremote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/draylor/repolens/pkg/types"
)

// DefaultBaseURL is the GitHub REST API root.
const DefaultBaseURL = "https://api.github.com"

// ErrCompareUnavailable is returned when the compare endpoint cannot diff
// the stored commit against head, typically after a history rewrite. The
// change detector degrades to a full run on this error.
var ErrCompareUnavailable = errors.New("commit comparison unavailable")

// SearchHit is one result from the code search endpoint.
type SearchHit struct {
	Path    string
	Content string
	Score   float64
}

// Client talks to the remote repository service for a single repository.
type Client struct {
	baseURL    string
	repo       string // owner/name
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger overrides the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client scoped to repo ("owner/name").
func NewClient(repo, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		repo:    repo,
		token:   token,
		httpClient: &http.Client{
			Timeout: 40 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repo returns the configured repository identifier.
func (c *Client) Repo() string {
	return c.repo
}

// HeadCommit returns the current commit SHA for branch. A branch of "HEAD"
// resolves the repository's default branch first. This is the single cheap
// call that makes a no-op run near-zero-cost.
func (c *Client) HeadCommit(ctx context.Context, branch string) (string, error) {
	if branch == "" || branch == "HEAD" {
		var repoInfo struct {
			DefaultBranch string `json:"default_branch"`
		}
		if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s", c.repo), nil, &repoInfo); err != nil {
			return "", fmt.Errorf("resolve default branch: %w", err)
		}
		branch = repoInfo.DefaultBranch
		if branch == "" {
			branch = "main"
		}
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/git/refs/heads/%s", c.repo, branch), nil, &ref); err != nil {
		return "", fmt.Errorf("fetch head commit: %w", err)
	}
	return ref.Object.SHA, nil
}

// ListFiles returns every blob path at ref whose name ends with ext.
func (c *Client) ListFiles(ctx context.Context, ref, ext string) ([]string, error) {
	var tree struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	params := url.Values{"recursive": {"1"}}
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/git/trees/%s", c.repo, ref), params, &tree); err != nil {
		return nil, fmt.Errorf("fetch file tree: %w", err)
	}
	if tree.Truncated {
		// The service capped the recursive listing; anything past the cap
		// is invisible to this run.
		c.logger.Warn("file tree listing truncated by the remote service",
			"repo", c.repo, "ref", ref, "listed", len(tree.Tree))
	}

	paths := make([]string, 0, len(tree.Tree))
	for _, item := range tree.Tree {
		if item.Type == "blob" && strings.HasSuffix(item.Path, ext) {
			paths = append(paths, item.Path)
		}
	}
	return paths, nil
}

// FileContent fetches the decoded content of path at the repository head.
func (c *Client) FileContent(ctx context.Context, path string) (string, error) {
	var contents struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/contents/%s", c.repo, path), nil, &contents); err != nil {
		return "", fmt.Errorf("fetch content of %s: %w", path, err)
	}
	if contents.Content == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(contents.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode content of %s: %w", path, err)
	}
	return string(decoded), nil
}

// Compare diffs base against head and partitions the files matching ext
// into changed (added, modified, or rename targets) and removed paths.
// Rename sources count as removed so their stale chunks get deleted.
func (c *Client) Compare(ctx context.Context, base, head, ext string) (changed, removed []string, err error) {
	var cmp struct {
		Files []struct {
			Filename         string `json:"filename"`
			Status           string `json:"status"`
			PreviousFilename string `json:"previous_filename"`
		} `json:"files"`
	}
	err = c.getJSON(ctx, fmt.Sprintf("/repos/%s/compare/%s...%s", c.repo, base, head), nil, &cmp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusUnprocessableEntity) {
			// Base commit no longer exists (force push, history rewrite).
			return nil, nil, fmt.Errorf("%w: %v", ErrCompareUnavailable, err)
		}
		return nil, nil, fmt.Errorf("compare %s...%s: %w", base, head, err)
	}

	for _, f := range cmp.Files {
		if !strings.HasSuffix(f.Filename, ext) {
			continue
		}
		switch f.Status {
		case "added", "modified", "renamed":
			changed = append(changed, f.Filename)
			if f.Status == "renamed" && f.PreviousFilename != "" {
				removed = append(removed, f.PreviousFilename)
			}
		case "removed":
			removed = append(removed, f.Filename)
		}
	}
	return changed, removed, nil
}

// CodeSearch runs an exact-match code search for query scoped to the
// repository and fetches the content of each hit. Natural-language queries
// routinely return zero hits; that is a successful empty result.
func (c *Client) CodeSearch(ctx context.Context, query string, maxHits int) ([]SearchHit, error) {
	terms := searchKeywords(query)
	if len(terms) == 0 {
		return nil, nil
	}

	params := url.Values{
		"q":        {fmt.Sprintf("%s repo:%s", strings.Join(terms, " "), c.repo)},
		"per_page": {fmt.Sprintf("%d", maxHits)},
	}
	var result struct {
		Items []struct {
			Path  string  `json:"path"`
			Score float64 `json:"score"`
		} `json:"items"`
	}
	if err := c.getJSON(ctx, "/search/code", params, &result); err != nil {
		return nil, fmt.Errorf("code search: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.Items))
	for _, item := range result.Items {
		if len(hits) >= maxHits {
			break
		}
		content, err := c.FileContent(ctx, item.Path)
		if err != nil || content == "" {
			continue
		}
		hits = append(hits, SearchHit{Path: item.Path, Content: content, Score: item.Score})
	}
	return hits, nil
}

// stopWords are low-signal query terms excluded from lexical search.
var stopWords = map[string]struct{}{
	"sending": {}, "simulate": {}, "decision": {}, "with": {}, "from": {},
	"what": {}, "when": {}, "does": {}, "this": {}, "that": {},
}

// searchKeywords keeps the first five query terms longer than three
// characters that are not stop words.
func searchKeywords(query string) []string {
	var keywords []string
	for _, w := range strings.Fields(query) {
		if len(w) <= 3 {
			continue
		}
		if _, skip := stopWords[strings.ToLower(w)]; skip {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}

// APIError is a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api error %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the status code into the engine error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return types.ErrTransientRemote
	case e.StatusCode == http.StatusForbidden:
		// GitHub signals exhausted search/API quota with 403.
		return types.ErrQuotaExhausted
	case e.StatusCode >= 500:
		return types.ErrTransientRemote
	default:
		return nil
	}
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failures and timeouts are retryable.
		return fmt.Errorf("%w: %v", types.ErrTransientRemote, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
