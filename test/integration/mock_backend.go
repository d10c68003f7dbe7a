package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// SuccessCode is the envelope code the mock backend uses for success.
const SuccessCode = 1000

// MockBackend is a configurable HTTP test server that simulates the REST
// backend. Every endpoint is a POST that answers a {code, message, data}
// envelope in snake_case. It records all received requests for later
// assertion.
type MockBackend struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.RWMutex
	paths      map[string]*pathConfig
	handlers   map[string]HandlerFunc
	receivedBy map[string][]*RecordedRequest
}

// HandlerFunc computes a response for a recorded request.
type HandlerFunc func(req *RecordedRequest) (status int, body any)

// RecordedRequest captures the details of a request received by the mock backend.
type RecordedRequest struct {
	Method     string
	Path       string
	Headers    http.Header
	Body       map[string]any
	RawBody    []byte
	ReceivedAt time.Time
}

// pathConfig holds the queued responses for a single path.
type pathConfig struct {
	mu        sync.Mutex
	responses []*mockResponse
	current   int
}

type mockResponse struct {
	status    int
	body      any
	delay     time.Duration
	connError bool
}

// PathMock is a builder for configuring mock responses for a specific path.
type PathMock struct {
	backend *MockBackend
	path    string
}

// newMockBackend creates a new mock backend and starts the HTTP test server.
func newMockBackend(t *testing.T) *MockBackend {
	t.Helper()

	mb := &MockBackend{
		t:          t,
		paths:      make(map[string]*pathConfig),
		handlers:   make(map[string]HandlerFunc),
		receivedBy: make(map[string][]*RecordedRequest),
	}
	mb.server = httptest.NewServer(http.HandlerFunc(mb.serve))
	t.Cleanup(mb.server.Close)
	return mb
}

// URL returns the base URL of the mock backend server.
func (mb *MockBackend) URL() string {
	return mb.server.URL
}

// OnPath returns a builder for configuring responses for a backend path such
// as "employees/query".
func (mb *MockBackend) OnPath(path string) *PathMock {
	return &PathMock{backend: mb, path: normalize(path)}
}

// Handle installs a handler used for path once its queued responses are
// exhausted.
func (mb *MockBackend) Handle(path string, h HandlerFunc) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.handlers[normalize(path)] = h
}

// RespondWith queues a response with the given status and body.
func (pm *PathMock) RespondWith(status int, body any) *PathMock {
	pm.backend.addResponse(pm.path, &mockResponse{status: status, body: body})
	return pm
}

// RespondOK queues a 200 success envelope carrying data.
func (pm *PathMock) RespondOK(data any) *PathMock {
	return pm.RespondWith(http.StatusOK, OK(data))
}

// RespondWithFailure queues a 200 envelope whose code signals a business
// failure.
func (pm *PathMock) RespondWithFailure(code int, message string) *PathMock {
	return pm.RespondWith(http.StatusOK, Fail(code, message))
}

// RespondWithDelay queues a delayed response to simulate slow backends.
func (pm *PathMock) RespondWithDelay(delay time.Duration, status int, body any) *PathMock {
	pm.backend.addResponse(pm.path, &mockResponse{status: status, body: body, delay: delay})
	return pm
}

// RespondWithConnectionError queues a response that closes the connection.
func (pm *PathMock) RespondWithConnectionError() *PathMock {
	pm.backend.addResponse(pm.path, &mockResponse{connError: true})
	return pm
}

func (mb *MockBackend) addResponse(path string, resp *mockResponse) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	cfg, ok := mb.paths[path]
	if !ok {
		cfg = &pathConfig{}
		mb.paths[path] = cfg
	}
	cfg.responses = append(cfg.responses, resp)
}

func (mb *MockBackend) serve(w http.ResponseWriter, r *http.Request) {
	path := normalize(r.URL.Path)
	rec := &RecordedRequest{
		Method:     r.Method,
		Path:       path,
		Headers:    r.Header.Clone(),
		ReceivedAt: time.Now(),
	}
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		rec.RawBody = body
		if len(body) > 0 {
			var parsed map[string]any
			if err := json.Unmarshal(body, &parsed); err == nil {
				rec.Body = parsed
			}
		}
	}

	// Pop before recording so a caller that observes the request also
	// observes which queued response it consumed.
	resp := mb.nextResponse(path)

	mb.mu.Lock()
	mb.receivedBy[path] = append(mb.receivedBy[path], rec)
	handler := mb.handlers[path]
	mb.mu.Unlock()

	if resp == nil {
		status, body := http.StatusOK, any(map[string]any{"code": SuccessCode, "message": "success"})
		if handler != nil {
			status, body = handler(rec)
		}
		writeJSON(w, status, body)
		return
	}

	if resp.connError {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, _ := hj.Hijack(); conn != nil {
				conn.Close()
			}
		}
		return
	}
	if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, resp.status, resp.body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// nextResponse pops the next queued response. The last one repeats once the
// queue is exhausted only when no handler is installed.
func (mb *MockBackend) nextResponse(path string) *mockResponse {
	mb.mu.RLock()
	cfg, ok := mb.paths[path]
	_, hasHandler := mb.handlers[path]
	mb.mu.RUnlock()
	if !ok || cfg == nil {
		return nil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if len(cfg.responses) == 0 {
		return nil
	}
	idx := cfg.current
	if idx >= len(cfg.responses) {
		if hasHandler {
			return nil
		}
		idx = len(cfg.responses) - 1
	} else {
		cfg.current++
	}
	return cfg.responses[idx]
}

// AssertCalled verifies that the path was called the expected number of times.
func (mb *MockBackend) AssertCalled(t *testing.T, path string, expectedCount int) {
	t.Helper()
	if actual := len(mb.AllRequests(path)); actual != expectedCount {
		t.Errorf("mock backend: %q called %d times, want %d", path, actual, expectedCount)
	}
}

// AssertNotCalled verifies that the path was never called.
func (mb *MockBackend) AssertNotCalled(t *testing.T, path string) {
	t.Helper()
	mb.AssertCalled(t, path, 0)
}

// LastRequest returns the last request received for path, or nil.
func (mb *MockBackend) LastRequest(path string) *RecordedRequest {
	reqs := mb.AllRequests(path)
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// AllRequests returns all requests received for path.
func (mb *MockBackend) AllRequests(path string) []*RecordedRequest {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	reqs := mb.receivedBy[normalize(path)]
	copied := make([]*RecordedRequest, len(reqs))
	copy(copied, reqs)
	return copied
}

// Reset clears all recorded requests and queued responses. Handlers stay.
func (mb *MockBackend) Reset() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.paths = make(map[string]*pathConfig)
	mb.receivedBy = make(map[string][]*RecordedRequest)
}

func normalize(path string) string {
	return strings.Trim(path, "/")
}

// --- Envelope fixtures ---

// OK returns a success envelope carrying data.
func OK(data any) map[string]any {
	return map[string]any{"code": SuccessCode, "message": "success", "data": data}
}

// Fail returns an envelope with a failure code.
func Fail(code int, message string) map[string]any {
	return map[string]any{"code": code, "message": message}
}

// PageFixture returns a backend page envelope in snake_case.
func PageFixture(items []map[string]any, total, first int) map[string]any {
	last := first + len(items) - 1
	if len(items) == 0 {
		last = 0
	}
	return OK(map[string]any{
		"list":                items,
		"total_records":       total,
		"first_index_in_page": first,
		"last_index_in_page":  last,
		"pageable":            true,
	})
}

// EmployeeFixture returns an employee record as the backend sends it.
func EmployeeFixture(id, name, departmentID string) map[string]any {
	return map[string]any{
		"id":              id,
		"employee_no":     "EMP-" + id,
		"full_name":       name,
		"email":           strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		"department_id":   departmentID,
		"department_name": "Engineering",
		"job_role_id":     "r-01",
		"job_role_name":   "Software Engineer",
		"hire_date":       "2024-01-15",
		"is_active":       true,
	}
}
