package giturl

import (
	"fmt"
	"strings"
)

const blobSeparator = "/blob/"

// Repository identifies a repository on a source-control host.
type Repository struct {
	Host  string
	Owner string
	Name  string
	URL   string
}

// FullName returns the "owner/repo" string.
func (r *Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// ParseRepository parses a repository url. Supported forms:
//   - "https://github.com/owner/repo"
//   - "https://gitlab.com/group/subgroup/repo"
//   - "github.com/owner/repo"
//   - "git@github.com:owner/repo.git"
func ParseRepository(rawURL string) (*Repository, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	owner, name, err := ExtractOwnerRepo(u)
	if err != nil {
		return nil, fmt.Errorf("invalid repository URL %q: %w", rawURL, err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")

	scheme := u.Scheme
	if scheme != "http" {
		scheme = "https"
	}

	return &Repository{
		Host:  host,
		Owner: owner,
		Name:  name,
		URL:   fmt.Sprintf("%s://%s/%s/%s", scheme, u.Host, owner, name),
	}, nil
}

// SplitLocation returns the repository url of a catalog location target, the
// part before "/blob/". GitLab's "/-/blob/" form is accepted too. ok is false
// when the target has no blob separator.
func SplitLocation(target string) (repoURL string, ok bool) {
	target = strings.TrimPrefix(target, "url:")

	before, _, found := strings.Cut(target, blobSeparator)
	if !found || before == "" {
		return "", false
	}

	return strings.TrimSuffix(before, "/-"), true
}

// CatalogFileURL builds the location target of filename at the root of repoURL
// on branch. GitLab urls use the "/-/blob/" form.
func CatalogFileURL(repoURL, branch, filename string, gitlab bool) string {
	repoURL = strings.TrimSuffix(repoURL, "/")

	sep := blobSeparator
	if gitlab {
		sep = "/-" + blobSeparator
	}

	return repoURL + sep + branch + "/" + filename
}
