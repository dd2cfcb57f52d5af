package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotauth/internal/repositories"
	"github.com/desertthunder/spotauth/internal/shared"
	tu "github.com/desertthunder/spotauth/internal/testing"
	"github.com/prometheus/client_golang/prometheus"
)

// syncBuffer is written by server goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testServer struct {
	*httptest.Server
	service *tu.MockOAuthService
	repo    *repositories.CredentialRepository
	logs    *syncBuffer
}

func newTestServer(t *testing.T, configure func(*Options)) *testServer {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	config := shared.DefaultConfig().Server
	config.RateLimit = 0

	logs := &syncBuffer{}
	service := tu.NewMockOAuthService()
	repo := repositories.NewCredentialRepository(db)

	opts := Options{
		Config:   config,
		Service:  service,
		Store:    repo,
		DB:       db,
		Logger:   shared.NewLogger(logs),
		Registry: prometheus.NewRegistry(),
	}
	if configure != nil {
		configure(&opts)
	}

	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, service: service, repo: repo, logs: logs}
}

// client does not follow redirects so Location headers can be inspected.
func (s *testServer) client() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func (s *testServer) get(t *testing.T, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServerFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("Login Then Callback Persists One Credential", func(t *testing.T) {
		ts := newTestServer(t, nil)

		login := ts.get(t, "/login")
		if login.StatusCode != http.StatusFound {
			t.Fatalf("expected 302 from /login, got %d", login.StatusCode)
		}
		cookie := stateCookie(t, login)
		if cookie == nil {
			t.Fatal("expected state cookie from /login")
		}

		q := url.Values{"code": {"auth-code"}, "state": {cookie.Value}}
		callback := ts.get(t, "/callback?"+q.Encode(), cookie)
		if callback.StatusCode != http.StatusFound {
			t.Fatalf("expected 302 from /callback, got %d", callback.StatusCode)
		}

		values := fragment(t, callback.Header.Get("Location"))
		if values.Get("access_token") != "access-1" || values.Get("refresh_token") != "refresh-1" {
			t.Errorf("expected both tokens in fragment, got %v", values)
		}

		count, err := ts.repo.Count(ctx)
		if err != nil {
			t.Fatalf("failed to count credentials: %v", err)
		}
		if count != 1 {
			t.Errorf("expected exactly one credential, got %d", count)
		}

		stored, err := ts.repo.List(ctx, map[string]any{"spotify_id": "spotify-user"})
		if err != nil || len(stored) != 1 {
			t.Fatalf("expected credential for spotify-user, got %v (err %v)", len(stored), err)
		}
		if stored[0].RefreshToken() != "refresh-1" {
			t.Errorf("expected refresh-1, got %s", stored[0].RefreshToken())
		}
	})

	t.Run("Forged Callback", func(t *testing.T) {
		ts := newTestServer(t, nil)

		resp := ts.get(t, "/callback?code=auth-code&state=forged",
			&http.Cookie{Name: StateCookieName, Value: "legitimate"})

		if got := resp.Header.Get("Location"); got != "/#error=state_mismatch" {
			t.Errorf("expected /#error=state_mismatch, got %q", got)
		}
		if ts.service.ExchangeCalls() != 0 {
			t.Error("token endpoint must not be contacted")
		}
		if count, _ := ts.repo.Count(ctx); count != 0 {
			t.Errorf("expected no credentials, got %d", count)
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		ts := newTestServer(t, nil)

		resp := ts.get(t, "/refresh_token?refresh_token=refresh-1")
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if strings.TrimSpace(string(body)) != `{"access_token":"access-2"}` {
			t.Errorf("unexpected body %s", body)
		}
	})

	t.Run("Tokens Are Not Logged", func(t *testing.T) {
		ts := newTestServer(t, nil)

		ts.get(t, "/refresh_token?refresh_token=super-secret-refresh")
		q := url.Values{"code": {"secret-code"}, "state": {"s"}}
		ts.get(t, "/callback?"+q.Encode(), &http.Cookie{Name: StateCookieName, Value: "s"})

		logs := ts.logs.String()
		for _, secret := range []string{"super-secret-refresh", "secret-code", "access-1", "access-2"} {
			if strings.Contains(logs, secret) {
				t.Errorf("log output contains %q", secret)
			}
		}
		if !strings.Contains(logs, "/refresh_token") {
			t.Error("expected access log line for /refresh_token")
		}
	})
}

func TestServerRoutes(t *testing.T) {
	t.Run("Index", func(t *testing.T) {
		ts := newTestServer(t, nil)

		resp := ts.get(t, "/")
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			t.Errorf("expected text/html, got %s", resp.Header.Get("Content-Type"))
		}
		if !strings.Contains(string(body), `href="/login"`) {
			t.Error("expected index page to link to /login")
		}
	})

	t.Run("Healthz", func(t *testing.T) {
		ts := newTestServer(t, nil)

		if resp := ts.get(t, "/healthz"); resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("Healthz Database Down", func(t *testing.T) {
		ts := newTestServer(t, func(o *Options) {
			o.DB = &tu.MockPinger{Err: errors.New("connection refused")}
		})

		if resp := ts.get(t, "/healthz"); resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", resp.StatusCode)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		ts := newTestServer(t, nil)

		ts.get(t, "/login")
		ts.get(t, "/callback?state=x&code=y")

		resp := ts.get(t, "/metrics")
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		for _, want := range []string{
			"spotauth_logins_total 1",
			`spotauth_callbacks_total{outcome="state_mismatch"} 1`,
			`spotauth_http_request_duration_seconds_count{method="GET",route="/login",status="302"} 1`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("expected %q in metrics output", want)
			}
		}
	})

	t.Run("Metrics Disabled", func(t *testing.T) {
		ts := newTestServer(t, func(o *Options) { o.Config.Metrics = false })

		if resp := ts.get(t, "/metrics"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		ts := newTestServer(t, nil)

		resp, err := ts.client().Post(ts.URL+"/login", "text/plain", nil)
		if err != nil {
			t.Fatalf("POST /login failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})

	t.Run("Preflight", func(t *testing.T) {
		ts := newTestServer(t, nil)

		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/refresh_token", nil)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)

		resp, err := ts.client().Do(req)
		if err != nil {
			t.Fatalf("OPTIONS /refresh_token failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("expected 204, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
			t.Error("expected Access-Control-Allow-Origin on preflight")
		}
		if ts.service.RefreshCalls() != 0 {
			t.Error("preflight should not reach the refresh handler")
		}
	})

	t.Run("Not Found Passes Through Middleware", func(t *testing.T) {
		ts := newTestServer(t, nil)

		resp := ts.get(t, "/nope")
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") == "" {
			t.Error("expected CORS headers on 404")
		}
		if !strings.Contains(ts.logs.String(), "/nope") {
			t.Error("expected access log line for unmatched path")
		}

		metricsBody, _ := io.ReadAll(ts.get(t, "/metrics").Body)
		want := `spotauth_http_request_duration_seconds_count{method="GET",route="unmatched",status="404"} 1`
		if !strings.Contains(string(metricsBody), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	})

	t.Run("Request ID", func(t *testing.T) {
		ts := newTestServer(t, nil)

		ts.get(t, "/healthz")
		if !strings.Contains(ts.logs.String(), "request_id") {
			t.Error("expected request_id in access log")
		}
	})
}

func TestServerRun(t *testing.T) {
	t.Run("Stops On Context Cancel", func(t *testing.T) {
		config := shared.DefaultConfig().Server
		config.Host = "127.0.0.1"
		config.Port = 0

		srv := New(Options{
			Config:  config,
			Service: tu.NewMockOAuthService(),
			Store:   &tu.MockCredentialStore{},
			Logger:  shared.NewLogger(io.Discard),
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(shutdownTimeout + time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("Listen Error", func(t *testing.T) {
		ln := httptest.NewServer(http.NotFoundHandler())
		defer ln.Close()

		u, _ := url.Parse(ln.URL)
		config := shared.DefaultConfig().Server
		srv := New(Options{
			Config:  config,
			Service: tu.NewMockOAuthService(),
			Store:   &tu.MockCredentialStore{},
			Logger:  shared.NewLogger(io.Discard),
		})
		srv.http.Addr = u.Host

		if err := srv.Run(context.Background()); err == nil {
			t.Error("expected error when the address is in use")
		}
	})
}
