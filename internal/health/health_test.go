package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/DrTrintignant/Songbird/internal/resilience"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "cache", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "bindings", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Checks["cache"] != "ok" {
		t.Errorf("cache check = %q, want %q", body.Checks["cache"], "ok")
	}
	if body.Checks["bindings"] != "ok" {
		t.Errorf("bindings check = %q, want %q", body.Checks["bindings"], "ok")
	}
}

func TestReadyz_CheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "cache", Check: func(_ context.Context) error {
			return errors.New("permission denied")
		}},
		Checker{Name: "bindings", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["cache"] != "fail: permission denied" {
		t.Errorf("cache check = %q, want %q", body.Checks["cache"], "fail: permission denied")
	}
	if body.Checks["bindings"] != "ok" {
		t.Errorf("bindings check = %q, want %q", body.Checks["bindings"], "ok")
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_AllCheckersFail(t *testing.T) {
	h := New(
		Checker{Name: "cache", Check: func(_ context.Context) error {
			return errors.New("timeout")
		}},
		Checker{Name: "bindings", Check: func(_ context.Context) error {
			return errors.New("decode failed")
		}},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["cache"] != "fail: timeout" {
		t.Errorf("cache check = %q", body.Checks["cache"])
	}
	if body.Checks["bindings"] != "fail: decode failed" {
		t.Errorf("bindings check = %q", body.Checks["bindings"])
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New(
		Checker{Name: "test", Check: func(_ context.Context) error { return nil }},
	)

	mux := http.NewServeMux()
	h.Register(mux)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(
		Checker{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestReadyz_SoftFailureDegrades(t *testing.T) {
	h := New(
		Checker{Name: "cache", Check: func(_ context.Context) error { return nil }},
		Credential(staticToken{err: errors.New("no key")}),
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want %q", body.Status, "degraded")
	}
	if body.Checks["credential"] != "warn: no key" {
		t.Errorf("credential check = %q", body.Checks["credential"])
	}
}

func TestReadyz_HardFailureWinsOverSoft(t *testing.T) {
	h := New(
		Checker{Name: "bindings", Check: func(_ context.Context) error { return errors.New("corrupt") }},
		Credential(staticToken{err: errors.New("no key")}),
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// ─── Checkers ────────────────────────────────────────────────────────────────

type staticToken struct {
	token string
	err   error
}

func (s staticToken) Token() (string, error) { return s.token, s.err }

type storeCheck struct{ err error }

func (s storeCheck) Check(context.Context) error { return s.err }

func TestCacheDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.mp3")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing", dir, false},
		{"not yet created", filepath.Join(dir, "sounds"), false},
		{"regular file", file, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CacheDir(tc.path).Check(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("Check() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestBindingsAndCredential(t *testing.T) {
	broken := errors.New("decode failed")
	if err := Bindings(storeCheck{err: broken}).Check(context.Background()); !errors.Is(err, broken) {
		t.Errorf("Bindings check = %v", err)
	}
	if Bindings(storeCheck{}).Soft {
		t.Error("bindings check must be hard")
	}
	c := Credential(staticToken{token: "k"})
	if !c.Soft {
		t.Error("credential check must be soft")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Credential check = %v", err)
	}
}

type fixedState resilience.State

func (s fixedState) State() resilience.State { return resilience.State(s) }

func TestBreaker(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state   resilience.State
		wantErr bool
	}{
		{resilience.StateClosed, false},
		{resilience.StateHalfOpen, false},
		{resilience.StateOpen, true},
	}
	for _, tc := range tests {
		c := Breaker(fixedState(tc.state))
		if !c.Soft {
			t.Error("breaker check must be soft")
		}
		if err := c.Check(context.Background()); (err != nil) != tc.wantErr {
			t.Errorf("state %v: Check() = %v, wantErr %v", tc.state, err, tc.wantErr)
		}
	}
}
