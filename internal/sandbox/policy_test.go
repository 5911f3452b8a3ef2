package sandbox

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxMemory != "256m" {
		t.Errorf("max memory = %q", p.MaxMemory)
	}
	if p.MaxTimeout != 30*time.Second {
		t.Errorf("timeout = %v", p.MaxTimeout)
	}
	if p.Network {
		t.Error("network must be disabled by default")
	}
	if !p.IsImageAllowed("python:3.12-slim") {
		t.Error("python image should be allowed by default")
	}
}

func TestIsImageAllowed(t *testing.T) {
	p := DefaultPolicy()
	if p.IsImageAllowed("alpine:latest") {
		t.Error("unlisted image must be rejected")
	}
	if p.IsImageAllowed("") {
		t.Error("empty image must be rejected")
	}
}

func TestWithImages(t *testing.T) {
	p := DefaultPolicy().WithImages([]string{"rust:1.80-slim"})
	if !p.IsImageAllowed("rust:1.80-slim") {
		t.Error("replaced allowlist missing new image")
	}
	if p.IsImageAllowed("python:3.12-slim") {
		t.Error("replaced allowlist should drop old images")
	}
}
