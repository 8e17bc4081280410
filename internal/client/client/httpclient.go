package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/common"
	"github.com/dmitrijs2005/cloudbox/internal/logging"
	"github.com/google/uuid"
)

const maxErrorBody = 64 << 10

// HTTPClient talks to the CloudBox REST backend. It is safe for concurrent
// use; the access token may be swapped at any time with SetAccessToken.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	log     logging.Logger
	now     func() time.Time

	mu          sync.RWMutex
	accessToken string
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

func WithAccessToken(token string) Option {
	return func(c *HTTPClient) { c.accessToken = token }
}

func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}

	c := &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *HTTPClient) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.String() + "/" + strings.Join(escaped, "/")
}

// do sends one request and decodes a 2xx JSON body into out (if non-nil).
func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	started := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug(ctx, "request failed", "method", method, "url", endpoint, "request_id", requestID, "err", err)
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.log.Debug(ctx, "request done",
		"method", method,
		"url", endpoint,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", c.now().Sub(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s response: %w", ErrTransport, method, req.URL.Path, err)
	}
	return nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	if in == nil {
		return c.do(ctx, method, endpoint, nil, "", out)
	}
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: encode request: %w", ErrTransport, err)
	}
	return c.do(ctx, method, endpoint, bytes.NewReader(b), "application/json", out)
}

// readErrorMessage extracts {"error": ...} or {"message": ...} from a
// failed response, falling back to the raw text.
func readErrorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var body struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err == nil {
		switch v := body.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			if raw, err := json.Marshal(v); err == nil {
				return string(raw)
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(b))
}

type filesEnvelope struct {
	Files []models.FileRecord `json:"files"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *HTTPClient) ListActive(ctx context.Context) ([]models.FileRecord, error) {
	var resp filesEnvelope
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("files"), nil, &resp); err != nil {
		return nil, err
	}
	// the list endpoint filters server-side; drop anything flagged anyway
	active := make([]models.FileRecord, 0, len(resp.Files))
	for _, f := range resp.Files {
		if !f.IsDeleted {
			active = append(active, f)
		}
	}
	return active, nil
}

func (c *HTTPClient) ListTrashed(ctx context.Context) ([]models.FileRecord, error) {
	var resp filesEnvelope
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("files", "trash"), nil, &resp); err != nil {
		return nil, err
	}
	trashed := make([]models.FileRecord, 0, len(resp.Files))
	for _, f := range resp.Files {
		if f.IsDeleted {
			trashed = append(trashed, f)
		}
	}
	return trashed, nil
}

func (c *HTTPClient) Upload(ctx context.Context, payload models.Payload, onProgress func(int)) (models.FileRecord, error) {
	if payload.Open == nil {
		return models.FileRecord{}, fmt.Errorf("%w: payload %q has no content", ErrValidation, payload.Name)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})

	go func() {
		defer close(done)
		pw.CloseWithError(writeMultipart(mw, payload, newProgressTracker(payload.Size, onProgress)))
	}()

	var raw json.RawMessage
	err := c.do(ctx, http.MethodPost, c.endpoint("files", "upload"), pr, mw.FormDataContentType(), &raw)

	// unblock the writer if the server answered before reading everything,
	// then wait so no progress callback outlives this call
	_ = pr.CloseWithError(io.ErrClosedPipe)
	<-done

	if err != nil {
		return models.FileRecord{}, err
	}
	return decodeUploadResponse(raw, payload, c.now())
}

func writeMultipart(mw *multipart.Writer, payload models.Payload, progress *progressTracker) error {
	rc, err := payload.Open()
	if err != nil {
		return fmt.Errorf("open payload: %w", err)
	}
	defer rc.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(payload.Name)))
	contentType := payload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, progress.Reader(rc)); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	progress.Finish()
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// decodeUploadResponse accepts the created record either bare or wrapped in
// {"file": ...}. A confirmation without a record yields a provisional one
// built from the payload; the next refresh replaces it.
func decodeUploadResponse(raw json.RawMessage, payload models.Payload, now time.Time) (models.FileRecord, error) {
	var wrapped struct {
		File *models.FileRecord `json:"file"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return models.FileRecord{}, fmt.Errorf("%w: decode upload response: %w", ErrTransport, err)
	}
	if wrapped.File != nil && wrapped.File.ID != "" {
		return *wrapped.File, nil
	}

	var bare models.FileRecord
	if err := json.Unmarshal(raw, &bare); err == nil && bare.ID != "" {
		return bare, nil
	}

	return models.FileRecord{
		Filename:  payload.Name,
		Size:      payload.Size,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

func (c *HTTPClient) Rename(ctx context.Context, id, newName string) (models.FileRecord, error) {
	name := strings.TrimSpace(newName)
	if name == "" {
		return models.FileRecord{}, fmt.Errorf("%w: new name must not be empty", ErrValidation)
	}

	var raw json.RawMessage
	body := map[string]string{"name": name}
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("files", "file", id, "rename"), body, &raw); err != nil {
		return models.FileRecord{}, err
	}

	var rec models.FileRecord
	if err := json.Unmarshal(raw, &rec); err == nil && rec.ID != "" {
		return rec, nil
	}
	return models.FileRecord{ID: id, Filename: name}, nil
}

func (c *HTTPClient) Share(ctx context.Context, id string) (string, error) {
	var resp struct {
		ShareLink string `json:"share_link"`
		ShareURL  string `json:"share_url"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("files", "share", id), nil, &resp); err != nil {
		return "", err
	}

	link := resp.ShareLink
	if link == "" {
		link = resp.ShareURL
	}
	if link == "" {
		return "", fmt.Errorf("%w: share response has no link", ErrTransport)
	}
	return link, nil
}

func (c *HTTPClient) Trash(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, c.endpoint("files", "trash", id), nil, &messageResponse{})
}

func (c *HTTPClient) Restore(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, c.endpoint("files", "trash", id, "restore"), nil, &messageResponse{})
}

func (c *HTTPClient) Purge(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, c.endpoint("files", "trash", id, "purge"), nil, &messageResponse{})
}

func (c *HTTPClient) PurgeExpired(ctx context.Context) (int, error) {
	var resp struct {
		Purged int `json:"purged"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("files", "trash", "purge_older_than_30d"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

func (c *HTTPClient) SignedURL(ctx context.Context, id string) (string, error) {
	var resp struct {
		SignedURL string `json:"signed_url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("files", "file", id, "signed-url"), nil, &resp); err != nil {
		return "", err
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("%w: signed url response is empty", ErrTransport)
	}
	return resp.SignedURL, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "login", email, password)
}

func (c *HTTPClient) Signup(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "signup", email, password)
}

func (c *HTTPClient) authenticate(ctx context.Context, action, email, password string) (*AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	var res AuthResult
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("auth", action), credentials{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s response has no access token", ErrTransport, action)
	}

	c.SetAccessToken(res.AccessToken)
	return &res, nil
}

func (c *HTTPClient) Profile(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("auth", "profile"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Ping probes the unauthenticated health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("health"), nil, &resp); err != nil {
		if errors.Is(err, ErrTransport) {
			return ErrUnavailable
		}
		return err
	}
	if !strings.EqualFold(resp.Status, "ok") {
		return ErrUnavailable
	}
	return nil
}
