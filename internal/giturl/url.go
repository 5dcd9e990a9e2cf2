package giturl

import (
	"errors"
	"net/url"
	"strings"
)

var errInvalidPath = errors.New("invalid path: expected owner/repo")

func isPossibleProtocol(u string) bool {
	return strings.HasPrefix(u, "ssh:") ||
		strings.HasPrefix(u, "git+ssh:") ||
		strings.HasPrefix(u, "git:") ||
		strings.HasPrefix(u, "http:") ||
		strings.HasPrefix(u, "git+https:") ||
		strings.HasPrefix(u, "https:")
}

// Parse normalizes repository urls, including scp-like syntax
// (git@github.com:owner/repo) and bare host paths (github.com/owner/repo).
func Parse(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimPrefix(strings.TrimSpace(rawURL), "url:")

	switch {
	case isPossibleProtocol(rawURL):
	case strings.HasPrefix(rawURL, "git@") && strings.ContainsRune(rawURL, ':'):
		rawURL = "ssh://" + strings.Replace(rawURL, ":", "/", 1)
	default:
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "git+https":
		u.Scheme = "https"
	case "git+ssh":
		u.Scheme = "ssh"
	}

	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "ssh" {
		u.Host = strings.TrimSuffix(u.Host, ":"+u.Port())
	}

	return u, nil
}

// Host returns the lowercased host of rawURL, or "" when it cannot be parsed.
func Host(rawURL string) string {
	u, err := Parse(rawURL)
	if err != nil {
		return ""
	}

	return u.Hostname()
}

// ExtractOwnerRepo splits a repository path into its namespace and name.
// Nested namespaces (group/subgroup/repo) keep every group in owner.
func ExtractOwnerRepo(u *url.URL) (owner, repo string, err error) {
	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, "/-")

	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", &url.Error{Op: "parse", URL: u.String(), Err: errInvalidPath}
	}

	owner = path[:idx]
	repo = strings.TrimSuffix(path[idx+1:], ".git")

	return owner, repo, nil
}

// Redact drops user info from a repository url so it can be logged.
func Redact(rawURL string) string {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return rawURL
	}

	if at := strings.Index(rest, "@"); at != -1 && at < strings.IndexAny(rest+"/", "/") {
		return scheme + "://" + rest[at+1:]
	}

	return rawURL
}
