package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestResultLabels(t *testing.T) {
	errClosed := errors.New("closed")
	kinds := map[string]error{"service_closed": errClosed}

	if got := Result(nil, kinds); got != "ok" {
		t.Fatalf("nil error = %q", got)
	}
	if got := Result(fmt.Errorf("register: %w", errClosed), kinds); got != "service_closed" {
		t.Fatalf("wrapped error = %q", got)
	}
	if got := Result(errors.New("boom"), kinds); got != "error" {
		t.Fatalf("unknown error = %q", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveHTTP(http.MethodGet, http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "qms_http_requests_total") {
		t.Fatal("http counter not exported")
	}
}
