package model

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is matched by every not-found error via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrEmptyRequest rejects an import batch with no entries.
	ErrEmptyRequest = errors.New("import request is empty")
)

// NotFoundError reports a missing repository, pull request, task or workflow.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) hold for any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UpstreamError wraps a failed call to a provider, catalog, task or workflow API.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	}

	if e.Body != "" {
		return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
	}

	return fmt.Sprintf("%s returned %d", e.Service, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is treats a 404 from upstream as ErrNotFound.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// notFoundStatus matches a 404 status token or the "Not Found" reason phrase.
// A 404 inside a path or repository name is not a status.
var notFoundStatus = regexp.MustCompile(`(?:^|[\s:])404(?:$|[\s:])|\bNot Found\b`)

// IsNotFound reports whether err is a not-found error, or carries a 404
// status in its message.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNotFound) {
		return true
	}

	return notFoundStatus.MatchString(err.Error())
}
