package services_test

import (
	"errors"
	"strings"
	"testing"

	"markercut/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "coarse", "extract frames", "ffmpeg failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"coarse", "extract frames", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "pipeline failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := map[string]error{
		"boundary_not_found": services.Wrap(services.ErrBoundaryNotFound, "refine", "end", "no transition", nil),
		"cache_corrupt":      services.Wrap(services.ErrCacheCorrupt, "cache", "list", "bad name", nil),
		"external_tool":      services.Wrap(services.ErrExternalTool, "extract", "", "", errors.New("x")),
		"io":                 services.Wrap(services.ErrIO, "write", "", "", nil),
		"transient":          errors.New("plain"),
	}
	for want, err := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
	if services.Kind(nil) != "" {
		t.Fatal("expected empty kind for nil")
	}
}

func TestRetryable(t *testing.T) {
	if services.Retryable(services.Wrap(services.ErrBoundaryNotFound, "refine", "", "", nil)) {
		t.Fatal("missing boundaries should not be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrCacheCorrupt, "cache", "", "", nil)) {
		t.Fatal("corrupt cache should not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrExternalTool, "extract", "", "", nil)) {
		t.Fatal("external tool failures should be retryable")
	}
}
