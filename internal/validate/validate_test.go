package validate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func guardServer(t *testing.T, healthCode int, verdict string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(healthCode)
	})
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"verdict": verdict})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func resultFor(t *testing.T, report *Report, name string) CheckResult {
	t.Helper()
	for _, r := range report.Results {
		if r.CheckName == name {
			return r
		}
	}
	t.Fatalf("no %s result in %+v", name, report.Results)
	return CheckResult{}
}

func TestRun_AllChecksPass(t *testing.T) {
	srv := guardServer(t, http.StatusOK, "BLOCK")

	report, err := Run(context.Background(), Options{Endpoint: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("report failed: %+v", report.Results)
	}
	for _, name := range []string{"liveness", "health", "functional"} {
		if got := resultFor(t, report, name).Status; got != StatusPassed {
			t.Errorf("%s = %s, want passed", name, got)
		}
	}
	if err := report.Err(); err != nil {
		t.Errorf("Err() = %v on passing report", err)
	}
}

func TestRun_FunctionalSkippedWithoutKey(t *testing.T) {
	srv := guardServer(t, http.StatusOK, "BLOCK")

	report, err := Run(context.Background(), Options{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	fn := resultFor(t, report, "functional")
	if fn.Status != StatusSkipped {
		t.Errorf("functional = %s, want skipped", fn.Status)
	}
	// A skipped check never fails the run.
	if !report.Passed() {
		t.Errorf("report failed: %+v", report.Results)
	}
}

func TestRun_AllowedProbeFailsValidation(t *testing.T) {
	srv := guardServer(t, http.StatusOK, "ALLOW")

	report, err := Run(context.Background(), Options{Endpoint: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	fn := resultFor(t, report, "functional")
	if fn.Status != StatusFailed || fn.Severity != SeverityCritical {
		t.Errorf("functional = %+v, want critical failure", fn)
	}
	if report.Passed() {
		t.Error("report passed despite allowed probe")
	}
}

func TestRun_UnhealthyDoesNotShortCircuit(t *testing.T) {
	srv := guardServer(t, http.StatusServiceUnavailable, "BLOCK")

	report, err := Run(context.Background(), Options{Endpoint: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := resultFor(t, report, "health").Status; got != StatusFailed {
		t.Errorf("health = %s, want failed", got)
	}
	// The other checks still report despite the health failure.
	if got := resultFor(t, report, "liveness").Status; got != StatusPassed {
		t.Errorf("liveness = %s, want passed", got)
	}
	if got := resultFor(t, report, "functional").Status; got != StatusPassed {
		t.Errorf("functional = %s, want passed", got)
	}
}

func TestRun_DeadEndpoint(t *testing.T) {
	report, err := Run(context.Background(), Options{
		Endpoint:        "http://127.0.0.1:1",
		APIKey:          "test-key",
		LivenessTimeout: 500 * time.Millisecond,
		HealthTimeout:   500 * time.Millisecond,
		ProbeTimeout:    500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Passed() {
		t.Fatal("report passed against a dead endpoint")
	}
	if got := resultFor(t, report, "liveness"); got.Status != StatusFailed || got.Severity != SeverityCritical {
		t.Errorf("liveness = %+v, want critical failure", got)
	}
	var failure *Failure
	if err := report.Err(); !errors.As(err, &failure) {
		t.Fatalf("Err() = %v, want *Failure", err)
	}
	if len(failure.Results) == 0 {
		t.Error("failure carries no check results")
	}
}

func TestRun_InvalidEndpoint(t *testing.T) {
	if _, err := Run(context.Background(), Options{Endpoint: "not a url"}); err == nil {
		t.Fatal("expected error for malformed endpoint")
	}
}
