// Package integration provides a reusable test harness for end-to-end
// integration testing of the StaffDesk BFF server. It starts a full HTTP
// server in front of a mock REST backend, with in-memory (or miniredis)
// session storage and the real transport chain.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/staffdesk/internal/authz"
	"github.com/pitabwire/staffdesk/internal/backend"
	"github.com/pitabwire/staffdesk/internal/capability"
	"github.com/pitabwire/staffdesk/internal/config"
	"github.com/pitabwire/staffdesk/internal/feature"
	"github.com/pitabwire/staffdesk/internal/intercept"
	"github.com/pitabwire/staffdesk/internal/observability"
	"github.com/pitabwire/staffdesk/internal/query"
	"github.com/pitabwire/staffdesk/internal/session"
	"github.com/pitabwire/staffdesk/internal/transport"
)

// TestHarness encapsulates a fully wired BFF instance with a mock backend
// for integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	Backend  *MockBackend
	Store    session.Storage
	Sessions *session.Manager
	Client   *backend.Client
	Gate     *authz.Gate

	users map[string]testUser
	cfg   *config.Config
}

type testUser struct {
	id          string
	password    string
	displayName string
	roles       []string
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	retryAttempts  int
	breaker        config.CircuitBreakerConfig
	handlerTimeout time.Duration
	backendTimeout time.Duration
	redis          bool
}

// WithRetry sets the maximum number of backend attempts per call.
func WithRetry(attempts int) HarnessOption {
	return func(c *harnessConfig) {
		c.retryAttempts = attempts
	}
}

// WithCircuitBreaker sets the backend circuit breaker configuration.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *harnessConfig) {
		c.breaker = cb
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithBackendTimeout sets the backend HTTP client timeout.
func WithBackendTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.backendTimeout = d
	}
}

// WithRedisSessions stores sessions in an in-process miniredis instead of
// memory.
func WithRedisSessions() HarnessOption {
	return func(c *harnessConfig) {
		c.redis = true
	}
}

// NewTestHarness creates and starts a full BFF test instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		retryAttempts:  1,
		handlerTimeout: 10 * time.Second,
		backendTimeout: 5 * time.Second,
		breaker: config.CircuitBreakerConfig{
			FailureThreshold: 100,
			SuccessThreshold: 1,
			Timeout:          time.Minute,
		},
	}
	for _, opt := range opts {
		opt(hc)
	}

	dir := testdataDir()
	h := &TestHarness{
		t:      t,
		issuer: newTokenIssuer(t),
		users: map[string]testUser{
			"admin":  {id: "u-01", password: "admin123", displayName: "HR Admin", roles: []string{"hr_admin", "ADMIN"}},
			"viewer": {id: "u-02", password: "viewer123", displayName: "Read Only", roles: []string{"viewer"}},
		},
	}

	// Step 1: Start the mock backend with a login endpoint.
	h.Backend = newMockBackend(t)
	h.Backend.Handle(feature.LoginPath, h.handleBackendLogin)

	// Step 2: Build config pointing at the mock backend.
	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Backend.BaseURL = h.Backend.URL()
	cfg.Backend.Timeout = hc.backendTimeout
	cfg.Backend.CircuitBreaker = hc.breaker
	cfg.Backend.Retry = config.RetryConfig{
		MaxAttempts:       hc.retryAttempts,
		BackoffInitial:    time.Millisecond,
		BackoffMultiplier: 2,
		BackoffMax:        5 * time.Millisecond,
	}
	cfg.Authorization.RoutesFile = filepath.Join(dir, "routes.yaml")
	cfg.Capability.PolicyFile = filepath.Join(dir, "policies.yaml")
	cfg.Observability.Metrics.Enabled = false
	h.cfg = cfg

	// Step 3: Build the permission resolver.
	policy, err := capability.NewStaticPolicy(cfg.Capability.PolicyFile)
	if err != nil {
		t.Fatalf("load policy file: %v", err)
	}
	resolver := capability.NewResolver(policy, 0, 0)

	// Step 4: Build session storage.
	if hc.redis {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		h.Store = session.NewRedisStorage(rdb, cfg.Session.Store.KeyPrefix, cfg.Session.TTL)
	} else {
		h.Store = session.NewMemoryStorage(cfg.Session.TTL)
	}
	h.Sessions = session.NewManager(h.Store, resolver)

	cookie, err := transport.NewSessionCookie(cfg.Session, []byte(strings.Repeat("k", 32)), nil)
	if err != nil {
		t.Fatalf("session cookie: %v", err)
	}

	// Step 5: Load the route table and build the gate.
	routes, err := authz.LoadRouteTable(cfg.Authorization.RoutesFile)
	if err != nil {
		t.Fatalf("load route table: %v", err)
	}
	h.Gate = authz.NewGate(
		authz.WithRoutes(routes),
		authz.WithPaths(cfg.Authorization.LoginPath, cfg.Authorization.UnauthorizedPath),
		authz.WithLocale(cfg.Authorization.Locale),
	)

	// Step 6: Build the backend client with the real transport chain.
	rt := &intercept.AuthTransport{
		Base:  &intercept.CaseTransport{AllowList: cfg.Backend.CaseAllowList},
		Token: session.TokenFrom,
	}
	h.Client = backend.NewClient(cfg.Backend, rt)

	resources := feature.Build(h.Client, feature.Options{
		BulkLimit: cfg.Query.BulkConcurrency,
		Sequencer: query.NewSequencer(),
	})

	// Step 7: Build router with full middleware chain.
	router := transport.NewRouter(transport.Dependencies{
		Config:    cfg,
		Auth:      feature.NewBackendAuth(h.Client),
		Sessions:  h.Sessions,
		Cookie:    cookie,
		Gate:      h.Gate,
		Resources: resources,
		Readiness: observability.ReadinessChecks{
			RoutesLoaded: func() bool { return routes.Len() > 0 },
			PolicyLoaded: func() bool { return policy.Roles() > 0 },
			SessionStore: h.Store,
			Backend:      h.Client.Breaker(),
		},
	})

	// Step 8: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

// handleBackendLogin plays the backend's auth/login endpoint.
func (h *TestHarness) handleBackendLogin(req *RecordedRequest) (int, any) {
	username, _ := req.Body["username"].(string)
	password, _ := req.Body["password"].(string)
	u, ok := h.users[username]
	if !ok || u.password != password {
		return http.StatusUnauthorized, Fail(401, "bad credentials")
	}
	return http.StatusOK, OK(map[string]any{
		"token":         h.issuer.Token(h.t, username, time.Hour),
		"refresh_token": "refresh-" + username,
		"user": map[string]any{
			"id":           u.id,
			"username":     username,
			"display_name": u.displayName,
			"roles":        u.roles,
		},
	})
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Config returns the configuration the server was built with.
func (h *TestHarness) Config() *config.Config {
	return h.cfg
}

// --- HTTP client helpers ---

// Browser is a client with its own cookie jar, standing in for one browser
// tab talking to the BFF.
type Browser struct {
	h    *TestHarness
	http *http.Client
}

// NewBrowser returns a browser with an empty cookie jar.
func (h *TestHarness) NewBrowser() *Browser {
	h.t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		h.t.Fatalf("cookie jar: %v", err)
	}
	return &Browser{
		h: h,
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// LoginAs returns a browser already logged in as username.
func (h *TestHarness) LoginAs(username string) *Browser {
	h.t.Helper()
	b := h.NewBrowser()
	u, ok := h.users[username]
	if !ok {
		h.t.Fatalf("unknown test user %q", username)
	}
	resp := b.Login(username, u.password)
	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("login %s: status %d: %s", username, resp.StatusCode, h.ReadBody(resp))
	}
	resp.Body.Close()
	return b
}

// Login posts credentials to the BFF login endpoint.
func (b *Browser) Login(username, password string) *http.Response {
	b.h.t.Helper()
	return b.POST("/api/auth/login", map[string]string{"username": username, "password": password})
}

// GET performs a GET request.
func (b *Browser) GET(path string) *http.Response {
	b.h.t.Helper()
	return b.Do(http.MethodGet, path, nil, nil)
}

// POST performs a POST request with a JSON body.
func (b *Browser) POST(path string, body any) *http.Response {
	b.h.t.Helper()
	return b.Do(http.MethodPost, path, body, nil)
}

// Do performs a request with optional additional headers.
func (b *Browser) Do(method, path string, body any, headers map[string]string) *http.Response {
	b.h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			b.h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, b.h.server.URL+path, bodyReader)
	if err != nil {
		b.h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		b.h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// Cookie returns the value of the named cookie held for the BFF, or "".
func (b *Browser) Cookie(name string) string {
	u, _ := http.NewRequest(http.MethodGet, b.h.server.URL, nil)
	for _, c := range b.http.Jar.Cookies(u.URL) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// ErrorBody is the BFF's error response shape.
type ErrorBody struct {
	Error struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Redirect string `json:"redirect"`
	} `json:"error"`
}

// AssertError checks the status and error code of a failed response.
func (h *TestHarness) AssertError(t *testing.T, resp *http.Response, status int, code string) ErrorBody {
	t.Helper()
	var body ErrorBody
	h.AssertJSON(t, resp, status, &body)
	if body.Error.Code != code {
		t.Errorf("error code = %q, want %q", body.Error.Code, code)
	}
	return body
}

// --- Helpers ---

// testdataDir returns the absolute path to the testdata directory.
func testdataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
