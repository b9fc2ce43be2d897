// Package client is a typed HTTP client for the resume API. It carries an
// explicit Session and refuses to send requests once the session has expired.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resumebuilder/internal/analysis"
	"resumebuilder/internal/resume"
)

const defaultTimeout = 90 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Msg)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Profile is the signed-in account.
type Profile struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Google    bool      `json:"google"`
	CreatedAt time.Time `json:"createdAt"`
}

// PDFLink is a presigned download link for an archived PDF.
type PDFLink struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	session    Session
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithSession(s Session) Option {
	return func(c *Client) { c.session = s }
}

// New returns a client for the API rooted at baseURL, e.g. http://localhost:5000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the current session.
func (c *Client) Session() Session {
	return c.session
}

// Register creates an account and adopts the returned session.
func (c *Client) Register(ctx context.Context, name, email, password string) (Session, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

// Login adopts the session returned for the credentials.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (Session, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, path, false, body, &out); err != nil {
		return Session{}, err
	}
	s, err := NewSession(out.Token)
	if err != nil {
		return Session{}, err
	}
	c.session = s
	return s, nil
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/api/auth/profile", true, nil, &p)
	return p, err
}

func (c *Client) ListResumes(ctx context.Context) ([]resume.Resume, error) {
	var items []resume.Resume
	err := c.do(ctx, http.MethodGet, "/api/resumes", true, nil, &items)
	return items, err
}

func (c *Client) GetResume(ctx context.Context, id uint) (resume.Resume, error) {
	var r resume.Resume
	err := c.do(ctx, http.MethodGet, resumePath(id), true, nil, &r)
	return r, err
}

// SaveResume sends body as the save payload. id 0 creates a new resume;
// otherwise the fields present in body are merged over the stored resume.
func (c *Client) SaveResume(ctx context.Context, id uint, body json.RawMessage) (resume.Resume, error) {
	path := "/api/resumes"
	if id != 0 {
		path = resumePath(id)
	}
	var r resume.Resume
	err := c.do(ctx, http.MethodPost, path, true, body, &r)
	return r, err
}

func (c *Client) DeleteResume(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, resumePath(id), true, nil, nil)
}

// DownloadPDF renders the resume and returns the document with the filename
// the server suggested.
func (c *Client) DownloadPDF(ctx context.Context, id uint) ([]byte, string, error) {
	resp, err := c.send(ctx, http.MethodPost, resumePath(id)+"/pdf", true, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read pdf: %w", err)
	}

	filename := "Resume.pdf"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return data, filename, nil
}

// ArchivePDF queues a background render and returns the task id.
func (c *Client) ArchivePDF(ctx context.Context, id uint) (string, error) {
	var out struct {
		TaskID string `json:"task_id"`
	}
	err := c.do(ctx, http.MethodPost, resumePath(id)+"/pdf/archive", true, nil, &out)
	return out.TaskID, err
}

func (c *Client) PDFLink(ctx context.Context, id uint) (PDFLink, error) {
	var link PDFLink
	err := c.do(ctx, http.MethodGet, resumePath(id)+"/pdf/link", true, nil, &link)
	return link, err
}

func (c *Client) Analyze(ctx context.Context, id uint) (resume.Analysis, error) {
	var a resume.Analysis
	err := c.do(ctx, http.MethodPost, aiPath(id, "analyze"), true, nil, &a)
	return a, err
}

func (c *Client) CoverLetter(ctx context.Context, id uint, job analysis.JobRequest) (string, error) {
	var out struct {
		CoverLetter string `json:"coverLetter"`
	}
	err := c.do(ctx, http.MethodPost, aiPath(id, "cover-letter"), true, job, &out)
	return out.CoverLetter, err
}

func (c *Client) Optimize(ctx context.Context, id uint, job analysis.JobRequest) ([]string, error) {
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	err := c.do(ctx, http.MethodPost, aiPath(id, "optimize"), true, job, &out)
	return out.Suggestions, err
}

func resumePath(id uint) string {
	return "/api/resumes/" + strconv.FormatUint(uint64(id), 10)
}

func aiPath(id uint, action string) string {
	return "/api/ai/" + strconv.FormatUint(uint64(id), 10) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out any) error {
	resp, err := c.send(ctx, method, path, authed, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and returns the response for 2xx statuses. Any
// other status is converted to *APIError and the body is closed.
func (c *Client) send(ctx context.Context, method, path string, authed bool, body any) (*http.Response, error) {
	if authed && !c.session.Valid(c.now()) {
		return nil, ErrSessionExpired
	}

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Msg != "" {
		apiErr.Msg = payload.Msg
	} else {
		apiErr.Msg = strings.TrimSpace(string(raw))
	}
	return nil, apiErr
}
