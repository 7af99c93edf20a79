package rbapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const userAgent = "rbclient"

// ErrNotAuthenticated is returned when the server rejects the request's
// credentials.
var ErrNotAuthenticated = errors.New("not logged in to the Review Board server")

// APIError is a failure reported by the server.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("review board returned status %d (error %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("review board returned status %d: %s", e.StatusCode, e.Message)
}

// Is matches ErrNotAuthenticated for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotAuthenticated && e.StatusCode == http.StatusUnauthorized
}

// Client talks to the Review Board web API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ API = (*Client)(nil)

// NewClient creates a client for the server at baseURL. token is an API
// token and may be empty for anonymous access.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CurrentUser returns the name of the logged-in user.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var resp sessionResponse
	if err := c.get(ctx, c.baseURL+"/api/session/", &resp); err != nil {
		return "", err
	}
	if !resp.Session.Authenticated {
		return "", ErrNotAuthenticated
	}
	return resp.Session.Links.User.Title, nil
}

// FindRepositoryID returns the ID of the repository whose path (or mirror
// path) is path, falling back to a repository called name. It returns 0
// when neither matches.
func (c *Client) FindRepositoryID(ctx context.Context, path, name string) (int, error) {
	if path != "" {
		repos, err := c.listRepositories(ctx, url.Values{"path": {path}})
		if err != nil {
			return 0, err
		}
		for _, repo := range repos {
			if repo.Path == path || repo.MirrorPath == path {
				return repo.ID, nil
			}
		}
	}
	if name != "" {
		repos, err := c.listRepositories(ctx, url.Values{"name": {name}})
		if err != nil {
			return 0, err
		}
		for _, repo := range repos {
			if repo.Name == name {
				return repo.ID, nil
			}
		}
	}
	return 0, nil
}

func (c *Client) listRepositories(ctx context.Context, query url.Values) ([]Repository, error) {
	var all []Repository
	next := c.baseURL + "/api/repositories/?" + query.Encode()
	for next != "" {
		var page repositoryList
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Repositories...)
		next = page.Links.Next.Href
	}
	return all, nil
}

// ListReviewRequests returns every review request matching query,
// following the server's pagination links.
func (c *Client) ListReviewRequests(ctx context.Context, query ReviewRequestQuery) ([]ReviewRequest, error) {
	var all []ReviewRequest
	next := c.baseURL + "/api/review-requests/?" + query.values().Encode()
	for next != "" {
		var page reviewRequestList
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		all = append(all, page.ReviewRequests...)
		next = page.Links.Next.Href
	}
	return all, nil
}

// GetReviewRequest fetches one review request.
func (c *Client) GetReviewRequest(ctx context.Context, id int) (*ReviewRequest, error) {
	var resp reviewRequestResponse
	if err := c.get(ctx, c.reviewRequestURL(id), &resp); err != nil {
		return nil, err
	}
	return &resp.ReviewRequest, nil
}

// CreateReviewRequest creates an empty review request against repository.
func (c *Client) CreateReviewRequest(ctx context.Context, repositoryID int, commitID string) (*ReviewRequest, error) {
	form := url.Values{"repository": {strconv.Itoa(repositoryID)}}
	if commitID != "" {
		form.Set("commit_id", commitID)
	}
	var resp reviewRequestResponse
	if err := c.sendForm(ctx, http.MethodPost, c.baseURL+"/api/review-requests/", form, &resp); err != nil {
		return nil, err
	}
	return &resp.ReviewRequest, nil
}

// UploadDiff attaches a new diff revision to a review request.
func (c *Client) UploadDiff(ctx context.Context, reviewRequestID int, upload DiffUpload) (*Diff, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writeFormFile(mw, "path", "diff", upload.Diff); err != nil {
		return nil, err
	}
	if len(upload.ParentDiff) > 0 {
		if err := writeFormFile(mw, "parent_diff_path", "parent_diff", upload.ParentDiff); err != nil {
			return nil, err
		}
	}
	fields := []struct{ name, value string }{
		{"basedir", upload.BaseDir},
		{"base_commit_id", upload.BaseCommitID},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", f.name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode diff upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.reviewRequestURL(reviewRequestID)+"diffs/", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp diffResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Diff, nil
}

// UpdateDraft changes the draft of a review request. Empty fields are left
// unchanged.
func (c *Client) UpdateDraft(ctx context.Context, reviewRequestID int, update DraftUpdate) (*Draft, error) {
	form := url.Values{}
	if update.Summary != "" {
		form.Set("summary", update.Summary)
	}
	if update.Description != "" {
		form.Set("description", update.Description)
	}
	if update.Branch != "" {
		form.Set("branch", update.Branch)
	}
	if update.Public {
		form.Set("public", "1")
	}

	var resp draftResponse
	if err := c.sendForm(ctx, http.MethodPut, c.reviewRequestURL(reviewRequestID)+"draft/", form, &resp); err != nil {
		return nil, err
	}
	return &resp.Draft, nil
}

// ReviewRequestURL is the web page for a review request.
func (c *Client) ReviewRequestURL(id int) string {
	return fmt.Sprintf("%s/r/%d/", c.baseURL, id)
}

func (c *Client) reviewRequestURL(id int) string {
	return fmt.Sprintf("%s/api/review-requests/%d/", c.baseURL, id)
}

func writeFormFile(mw *multipart.Writer, field, filename string, data []byte) error {
	w, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", field, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to encode %s: %w", field, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) sendForm(ctx context.Context, method, endpoint string, form url.Values, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to review board: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseError builds an APIError from a {"stat": "fail"} payload, falling
// back to the raw body.
func parseError(status int, body []byte) error {
	var payload struct {
		Stat string `json:"stat"`
		Err  struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		} `json:"err"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Stat == "fail" {
		apiErr.Code = payload.Err.Code
		apiErr.Message = payload.Err.Msg
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
