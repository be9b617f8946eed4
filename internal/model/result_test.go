package model

import (
	"testing"
	"time"
)

// TestNewCrawlResult tests result construction.
func TestNewCrawlResult(t *testing.T) {
	t.Parallel()

	r := NewCrawlResult("https://Example.com:8080/start")

	if r.Domain != "example.com:8080" {
		t.Errorf("expected domain example.com:8080, got %q", r.Domain)
	}
	if r.Pages == nil {
		t.Error("expected Pages to be initialized")
	}
	if r.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
	if r.Stats != nil {
		t.Error("expected Stats to be nil before analysis")
	}
	if r.Duration() != 0 {
		t.Errorf("expected zero duration while running, got %v", r.Duration())
	}
}

// TestCrawlResultDuration tests duration calculation.
func TestCrawlResultDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &CrawlResult{StartedAt: start, FinishedAt: start.Add(90 * time.Second)}

	if r.Duration() != 90*time.Second {
		t.Errorf("expected 90s, got %v", r.Duration())
	}
}

// TestRegistrableDomain tests eTLD+1 extraction.
func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "subdomain", host: "blog.example.com", want: "example.com"},
		{name: "multi-label suffix", host: "www.example.co.uk", want: "example.co.uk"},
		{name: "port is dropped", host: "docs.example.org:8443", want: "example.org"},
		{name: "ip address", host: "127.0.0.1:8080", want: "127.0.0.1"},
		{name: "localhost", host: "localhost", want: "localhost"},
		{name: "empty", host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RegistrableDomain(tt.host); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
