package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8099", "http://localhost:8099/api/health"},
		{"0.0.0.0:8099", "http://localhost:8099/api/health"},
		{"[::]:8099", "http://localhost:8099/api/health"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000/api/health"},
		{"[::1]:9000", "http://[::1]:9000/api/health"},
	}
	for _, tt := range tests {
		got, err := healthURL(tt.addr)
		if err != nil {
			t.Fatalf("healthURL(%q): %v", tt.addr, err)
		}
		if got != tt.want {
			t.Errorf("healthURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}

	if _, err := healthURL("8099"); err == nil {
		t.Error("expected error for address without a port separator")
	}
}

func TestRunHealthCheck(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	if err := runHealthCheck(context.Background(), addr); err != nil {
		t.Fatalf("healthy server: %v", err)
	}

	status.Store(http.StatusServiceUnavailable)
	if err := runHealthCheck(context.Background(), addr); err == nil {
		t.Fatal("expected error for degraded server")
	}
}

func TestHealthCheckFlagDefaultsToConfiguredAddr(t *testing.T) {
	t.Setenv("HTTP_ADDR", "0.0.0.0:9123")

	cmd := healthCheckCmd()
	if got := cmd.Flags().Lookup("addr").DefValue; got != "0.0.0.0:9123" {
		t.Fatalf("addr default = %q", got)
	}
}
