package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Backend.BaseURL != "https://hr-api.internal" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.CircuitBreaker.FailureThreshold != 4 {
		t.Errorf("CircuitBreaker.FailureThreshold = %d, want 4", cfg.Backend.CircuitBreaker.FailureThreshold)
	}
	// Unset nested fields keep their defaults.
	if cfg.Backend.CircuitBreaker.SuccessThreshold != 2 {
		t.Errorf("CircuitBreaker.SuccessThreshold = %d, want default 2", cfg.Backend.CircuitBreaker.SuccessThreshold)
	}
	if cfg.Session.CookieName != "sd_session" || cfg.Session.TTL != 8*time.Hour {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Session.Store.Driver != "redis" || cfg.Session.Store.DB != 2 {
		t.Errorf("Session.Store = %+v", cfg.Session.Store)
	}
	if cfg.Query.DefaultPageSize != 20 {
		t.Errorf("Query.DefaultPageSize = %d, want 20", cfg.Query.DefaultPageSize)
	}
	if cfg.Authorization.LoginPath != "/login" {
		t.Errorf("Authorization.LoginPath = %q, want default /login", cfg.Authorization.LoginPath)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_missing_backend(t *testing.T) {
	_, err := Load("testdata/missing_backend.yaml")
	if err == nil {
		t.Fatal("Load() without backend.base_url should return error")
	}
	if !strings.Contains(err.Error(), "backend.base_url") {
		t.Errorf("error = %v, want mention of backend.base_url", err)
	}
}

func TestLoad_bad_driver(t *testing.T) {
	_, err := Load("testdata/bad_driver.yaml")
	if err == nil || !strings.Contains(err.Error(), "session.store.driver") {
		t.Fatalf("Load() error = %v, want session.store.driver error", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Backend.SuccessCodes, []int{1000}) {
		t.Errorf("default SuccessCodes = %v, want [1000]", cfg.Backend.SuccessCodes)
	}
	if cfg.Session.Store.Driver != "memory" {
		t.Errorf("default session driver = %q, want memory", cfg.Session.Store.Driver)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestValidate_joinsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.Backend.SuccessCodes = nil
	cfg.Session.CookieName = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{"server.port", "backend.base_url", "backend.success_codes", "session.cookie_name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidate_mockModeNeedsNoBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Query.Mock = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil in mock mode", err)
	}
}

func TestSuccessCodesFor(t *testing.T) {
	b := BackendConfig{
		SuccessCodes: []int{1000},
		SuccessCodesByPath: map[string][]int{
			"auth/":         {1000, 200},
			"auth/refresh":  {200},
			"/legacy/query": {0},
		},
	}

	cases := map[string][]int{
		"employees/query": {1000},
		"auth/login":      {1000, 200},
		"/auth/refresh":   {200},
		"legacy/query":    {0},
	}
	for path, want := range cases {
		if got := b.SuccessCodesFor(path); !reflect.DeepEqual(got, want) {
			t.Errorf("SuccessCodesFor(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRetryConfig_CanRetry(t *testing.T) {
	r := Defaults().Backend.Retry
	cases := map[string]bool{
		"employees/query":       true,
		"/course-events/detail": true,
		"employees/create":      false,
		"employees/update":      false,
		"employees/delete":      false,
		"auth/login":            false,
	}
	for path, want := range cases {
		if got := r.CanRetry(path); got != want {
			t.Errorf("CanRetry(%q) = %v, want %v", path, got, want)
		}
	}

	r.IdempotentOnly = false
	if !r.CanRetry("employees/create") {
		t.Error("CanRetry should allow writes when IdempotentOnly is off")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("STAFFDESK_SERVER_PORT", "7070")
	t.Setenv("STAFFDESK_BACKEND_BASE_URL", "http://backend:8000")
	t.Setenv("STAFFDESK_SESSION_STORE_DRIVER", "mongo")
	t.Setenv("STAFFDESK_QUERY_MOCK", "true")
	t.Setenv("STAFFDESK_OBSERVABILITY_LOG_LEVEL", "debug")

	cfg := Defaults()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Backend.BaseURL != "http://backend:8000" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Session.Store.Driver != "mongo" {
		t.Errorf("Session.Store.Driver = %q", cfg.Session.Store.Driver)
	}
	if !cfg.Query.Mock {
		t.Error("Query.Mock = false, want true")
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.Observability.LogLevel)
	}
}
