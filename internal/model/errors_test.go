package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Kind: "workflow", ID: "42"}

	expected := `workflow "42" not found`
	if err.Error() != expected {
		t.Errorf("NotFoundError.Error() = %q, want %q", err.Error(), expected)
	}

	wrapped := fmt.Errorf("lookup failed: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("errors.Is should match ErrNotFound through wrapping")
	}
}

func TestUpstreamError(t *testing.T) {
	err := &UpstreamError{Service: "scaffolder", StatusCode: 500, Body: "boom"}

	expected := "scaffolder returned 500: boom"
	if err.Error() != expected {
		t.Errorf("UpstreamError.Error() = %q, want %q", err.Error(), expected)
	}

	if errors.Is(err, ErrNotFound) {
		t.Error("a 500 should not match ErrNotFound")
	}

	notFound := &UpstreamError{Service: "orchestrator", StatusCode: 404}
	if !errors.Is(notFound, ErrNotFound) {
		t.Error("a 404 should match ErrNotFound")
	}
}

func TestUpstreamError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &UpstreamError{Service: "catalog", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the inner error")
	}

	expected := "catalog request failed: connection refused"
	if err.Error() != expected {
		t.Errorf("UpstreamError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrNotFound, true},
		{"typed", &NotFoundError{Kind: "repository", ID: "x"}, true},
		{"message with 404", errors.New("GET https://api.github.com/repos/a/b: 404"), true},
		{"message with Not Found", errors.New("Not Found"), true},
		{"github reason phrase", errors.New("GET https://api.github.com/repos/a/b/pulls: 404 Not Found []"), true},
		{"gitlab message", errors.New("GET https://gitlab.com/api/v4/projects/a%2Fb: 404 {message: 404 Project Not Found}"), true},
		{"wrapped upstream 404", fmt.Errorf("lookup: %w", &UpstreamError{Service: "catalog", StatusCode: 404}), true},
		{"404 in repository name", errors.New("could not find out if there is an import PR open on org/service-404: 500 Internal Server Error"), false},
		{"404 in path segment", errors.New("GET https://github.com/org/404/pulls: 502 Bad Gateway"), false},
		{"upstream 500", &UpstreamError{Service: "catalog", StatusCode: 500, Body: "repo-404 failed"}, false},
		{"other", errors.New("could not find out if there is an import PR open"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}
