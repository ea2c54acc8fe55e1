package api_test

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestSystemHandlers(t *testing.T) {
	s := newTestServer(t)

	res, b := s.do(http.MethodGet, "/health", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200 got %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("health: expected json content-type, got %q", ct)
	}
	if !strings.Contains(string(b), `"status":"ok"`) {
		t.Fatalf("health: unexpected body %s", string(b))
	}
	if res.Header.Get("X-Request-ID") == "" {
		t.Fatalf("health: expected request id header")
	}

	res, b = s.do(http.MethodGet, "/version", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("version: expected 200 got %d", res.StatusCode)
	}
	if !strings.Contains(string(b), `"version":"test"`) || !strings.Contains(string(b), `"buildTime":"now"`) {
		t.Fatalf("version: unexpected body %s", string(b))
	}
}

func TestHealthReportsClosedDatabase(t *testing.T) {
	s := newTestServer(t)
	if err := s.db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	resp, err := http.Get(s.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", resp.StatusCode, b)
	}
}
