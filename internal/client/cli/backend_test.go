package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudbox/internal/client/client"
	"github.com/dmitrijs2005/cloudbox/internal/client/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type wireFile struct {
	ID        string  `json:"id"`
	Filename  string  `json:"filename"`
	Size      int64   `json:"size"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	IsDeleted bool    `json:"is_deleted"`
	TrashedAt *string `json:"trashed_at"`
}

// backend is an in-memory stand-in for the CloudBox REST API.
type backend struct {
	mu       sync.Mutex
	files    []*wireFile
	nextID   int
	rejected map[string]bool
	calls    []string

	down  atomic.Bool
	token string
}

func newBackend(t *testing.T) *backend {
	return &backend{
		rejected: make(map[string]bool),
		token: signTestToken(t, jwt.MapClaims{
			"sub":   "42",
			"email": "ann@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		}),
	}
}

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

func (b *backend) add(id, name string, size int64, trashed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := "2025-03-01T10:00:00Z"
	f := &wireFile{ID: id, Filename: name, Size: size, CreatedAt: ts, UpdatedAt: ts}
	if trashed {
		at := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
		f.IsDeleted = true
		f.TrashedAt = &at
	}
	b.files = append(b.files, f)
}

func (b *backend) reject(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejected[key] = true
}

func (b *backend) allow(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rejected, key)
}

func (b *backend) find(id string) *wireFile {
	for _, f := range b.files {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func (b *backend) snapshot() map[string]wireFile {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]wireFile, len(b.files))
	for _, f := range b.files {
		out[f.ID] = *f
	}
	return out
}

func (b *backend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()

	list := func(trashed bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			out := make([]wireFile, 0, len(b.files))
			for _, f := range b.files {
				if f.IsDeleted == trashed {
					out = append(out, *f)
				}
			}
			reply(w, http.StatusOK, map[string]any{"files": out})
		}
	}
	mux.HandleFunc("GET /files", list(false))
	mux.HandleFunc("GET /files/trash", list(true))

	mux.HandleFunc("POST /files/upload", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			reply(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		defer file.Close()
		n, _ := io.Copy(io.Discard, file)

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.rejected["upload:"+hdr.Filename] {
			reply(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
			return
		}
		b.nextID++
		ts := time.Now().UTC().Format(time.RFC3339)
		f := &wireFile{ID: fmt.Sprintf("up-%d", b.nextID), Filename: hdr.Filename, Size: n, CreatedAt: ts, UpdatedAt: ts}
		b.files = append(b.files, f)
		reply(w, http.StatusCreated, map[string]any{"message": "uploaded", "file": f})
	})

	mux.HandleFunc("POST /files/file/{id}/rename", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		defer b.mu.Unlock()
		f := b.find(r.PathValue("id"))
		if f == nil || f.IsDeleted {
			reply(w, http.StatusNotFound, map[string]string{"error": "file not found"})
			return
		}
		f.Filename = body.Name
		reply(w, http.StatusOK, f)
	})

	mux.HandleFunc("POST /files/share/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]string{"share_link": "https://cb.example/s/" + r.PathValue("id")})
	})

	mux.HandleFunc("GET /files/file/{id}/signed-url", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]string{"signed_url": "https://cdn.example/" + r.PathValue("id") + "?sig=x"})
	})

	lifecycle := func(op string, apply func(f *wireFile) bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := r.PathValue("id")

			b.mu.Lock()
			defer b.mu.Unlock()
			b.calls = append(b.calls, op+":"+id)
			if b.rejected[op+":"+id] {
				reply(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
				return
			}
			f := b.find(id)
			if f == nil || !apply(f) {
				reply(w, http.StatusNotFound, map[string]string{"error": "file not found"})
				return
			}
			reply(w, http.StatusOK, map[string]string{"message": op + " ok"})
		}
	}
	mux.HandleFunc("POST /files/trash/{id}", lifecycle("trash", func(f *wireFile) bool {
		if f.IsDeleted {
			return false
		}
		at := time.Now().UTC().Format(time.RFC3339)
		f.IsDeleted, f.TrashedAt = true, &at
		return true
	}))
	mux.HandleFunc("POST /files/trash/{id}/restore", lifecycle("restore", func(f *wireFile) bool {
		if !f.IsDeleted {
			return false
		}
		f.IsDeleted, f.TrashedAt = false, nil
		return true
	}))
	mux.HandleFunc("DELETE /files/trash/{id}/purge", lifecycle("purge", func(f *wireFile) bool {
		if !f.IsDeleted {
			return false
		}
		for i, g := range b.files {
			if g == f {
				b.files = append(b.files[:i], b.files[i+1:]...)
				break
			}
		}
		return true
	}))
	mux.HandleFunc("POST /files/trash/purge_older_than_30d", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]int{"purged": 3})
	})

	auth := func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		reply(w, http.StatusOK, map[string]any{
			"access_token": b.token,
			"user":         map[string]string{"id": "42", "email": body.Email},
		})
	}
	mux.HandleFunc("POST /auth/login", auth)
	mux.HandleFunc("POST /auth/signup", auth)
	mux.HandleFunc("GET /auth/profile", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{"user": map[string]string{"id": "42", "email": "ann@example.com", "name": "Ann"}})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.down.Load() {
			reply(w, http.StatusServiceUnavailable, map[string]string{"error": "maintenance"})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/auth/") && r.URL.Path != "/health" &&
			r.Header.Get("Authorization") != "Bearer "+b.token {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

type testEnv struct {
	backend *backend
	server  *httptest.Server
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	be := newBackend(t)
	srv := httptest.NewServer(be.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ServerURL = srv.URL
	cfg.CachePath = ":memory:"
	cfg.RequestTimeout = 5 * time.Second

	return &testEnv{backend: be, server: srv, cfg: cfg}
}

// factory builds Apps on one shared in-memory database, so a second App
// sees what the first one saved.
func (e *testEnv) factory(t *testing.T) appFactory {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return func(_ context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
		api, err := client.NewHTTPClient(cfg.ServerURL,
			client.WithTimeout(cfg.RequestTimeout),
			client.WithAccessToken(cfg.AccessToken),
		)
		if err != nil {
			return nil, err
		}
		return newApp(cfg, api, db, in, out, nil), nil
	}
}

func (e *testEnv) newApp(t *testing.T, factory appFactory) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	app, err := factory(context.Background(), e.cfg, strings.NewReader(""), out)
	require.NoError(t, err)
	require.NoError(t, app.Bootstrap(context.Background()))
	return app, out
}

// loggedInApp returns an App holding the backend's token.
func (e *testEnv) loggedInApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	stubInputs(t, "ann@example.com", []byte("secret"))
	app, out := e.newApp(t, e.factory(t))
	require.NoError(t, app.Login(context.Background()))
	out.Reset()
	return app, out
}

func stubInputs(t *testing.T, email string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return email, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return append([]byte(nil), password...), nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}
