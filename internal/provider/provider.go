// Package provider adapts source-control hosts (GitHub-like and GitLab-like)
// to the operations the import engine needs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
)

// ErrNoProvider is returned when no configured integration serves a url.
var ErrNoProvider = errors.New("no integration configured for repository host")

// RepoDetails is what a provider knows about a repository.
type RepoDetails struct {
	URL           string
	Name          string
	Organization  string
	ID            string
	DefaultBranch string
	UpdatedAt     *time.Time
	Empty         bool
}

// Info converts the details to the import record representation.
func (d *RepoDetails) Info() *model.RepositoryInfo {
	return &model.RepositoryInfo{
		URL:           d.URL,
		Name:          d.Name,
		Organization:  d.Organization,
		ID:            d.ID,
		DefaultBranch: d.DefaultBranch,
	}
}

// Credentials are handed to the workflow engine so it can act on the repository.
type Credentials struct {
	Host  string
	Token string
}

// SubmitRequest describes the import pull request to open.
type SubmitRequest struct {
	RepoURL       string
	BaseBranch    string
	Branch        string
	FilePath      string
	Content       string
	Title         string
	Body          string
	CommitMessage string
}

// SubmitResult is the outcome of SubmitPR.
type SubmitResult struct {
	PullRequest *model.PullRequest
	HasChanges  bool
	Errors      []string
}

// Provider is implemented once per provider family.
type Provider interface {
	ApprovalTool() model.ApprovalTool
	Host() string

	Repository(ctx context.Context, repoURL string) (*RepoDetails, error)
	DefaultBranch(ctx context.Context, repoURL string) (string, error)
	FileExists(ctx context.Context, repoURL, ref, path string) (bool, error)
	FileContent(ctx context.Context, repoURL, ref, path string) (string, error)
	IsEmpty(ctx context.Context, repoURL string) (bool, error)
	CodeOwnersPaths() []string

	// FindOpenImportPR returns the open pull request from branch, or nil.
	FindOpenImportPR(ctx context.Context, repoURL, branch string) (*model.PullRequest, error)
	GetPR(ctx context.Context, repoURL string, number int) (*model.PullRequest, error)
	ClosePR(ctx context.Context, repoURL string, number int, comment string) error
	UpdatePR(ctx context.Context, repoURL string, number int, title, body string) error
	// DeleteBranch removes branch. A missing branch is not an error.
	DeleteBranch(ctx context.Context, repoURL, branch string) error
	WriteFile(ctx context.Context, repoURL, branch, path, content, message string) error
	SubmitPR(ctx context.Context, req SubmitRequest) (*SubmitResult, error)

	// FilterReachable returns the urls visible with the configured credentials.
	FilterReachable(ctx context.Context, urls []string) ([]string, error)
	Credentials(ctx context.Context, repoURL string) (*Credentials, error)
}

// Selector picks the provider serving a repository.
type Selector struct {
	providers []Provider
}

// NewSelector returns a selector over providers. Earlier providers win on ties.
func NewSelector(providers ...Provider) *Selector {
	return &Selector{providers: providers}
}

// NewFromConfig builds one provider per configured integration.
func NewFromConfig(ctx context.Context, cfg config.IntegrationsConfig, logger *slog.Logger) (*Selector, error) {
	var providers []Provider

	for _, integration := range cfg.GitHub {
		p, err := NewGitHub(ctx, integration)
		if err != nil {
			return nil, fmt.Errorf("github integration %s: %w", integration.Host, err)
		}

		providers = append(providers, p.WithLogger(logger))
	}

	for _, integration := range cfg.GitLab {
		p, err := NewGitLab(ctx, integration)
		if err != nil {
			return nil, fmt.Errorf("gitlab integration %s: %w", integration.Host, err)
		}

		providers = append(providers, p.WithLogger(logger))
	}

	return NewSelector(providers...), nil
}

// Providers returns every configured provider.
func (s *Selector) Providers() []Provider {
	return s.providers
}

// ForURL returns the provider whose host serves repoURL.
func (s *Selector) ForURL(repoURL string) (Provider, error) {
	host := giturl.Host(repoURL)

	for _, p := range s.providers {
		if strings.EqualFold(p.Host(), host) {
			return p, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoProvider, host)
}

// ForRepo prefers a provider of the requested approval tool on repoURL's host.
func (s *Selector) ForRepo(repoURL string, tool model.ApprovalTool) (Provider, error) {
	if tool != "" {
		host := giturl.Host(repoURL)

		for _, p := range s.providers {
			if p.ApprovalTool() == tool && strings.EqualFold(p.Host(), host) {
				return p, nil
			}
		}
	}

	return s.ForURL(repoURL)
}

// ApprovalTool infers the approval tool of repoURL from its host.
func (s *Selector) ApprovalTool(repoURL string) model.ApprovalTool {
	if p, err := s.ForURL(repoURL); err == nil {
		return p.ApprovalTool()
	}

	if strings.Contains(giturl.Host(repoURL), "gitlab") {
		return model.ApprovalToolGitLab
	}

	return model.ApprovalToolGit
}

// ForTool returns the providers of one approval tool.
func (s *Selector) ForTool(tool model.ApprovalTool) []Provider {
	var out []Provider

	for _, p := range s.providers {
		if p.ApprovalTool() == tool {
			out = append(out, p)
		}
	}

	return out
}
