package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/google/go-github/v82/github"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const defaultGitHubHost = "github.com"

// reachabilityConcurrency bounds the per-repository probes of FilterReachable.
const reachabilityConcurrency = 8

// GitHub talks to github.com or a GitHub Enterprise host.
type GitHub struct {
	host   string
	token  string
	client *github.Client
	logger *slog.Logger
}

// NewGitHub creates a provider for one GitHub integration. Without a configured
// token the gh CLI credentials for the host are used.
func NewGitHub(ctx context.Context, cfg config.Integration) (*GitHub, error) {
	host := strings.ToLower(cfg.Host)
	if host == "" {
		host = defaultGitHubHost
	}

	token := cfg.Token
	if token == "" {
		token, _ = auth.TokenForHost(host)
	}

	httpClient := http.DefaultClient
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := github.NewClient(httpClient)

	if host != defaultGitHubHost || cfg.APIBaseURL != "" {
		base := cfg.APIBaseURL
		if base == "" {
			base = fmt.Sprintf("https://%s/api/v3/", host)
		}

		var err error

		client, err = client.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("invalid api base url %q: %w", base, err)
		}
	}

	return newGitHub(host, token, client), nil
}

func newGitHub(host, token string, client *github.Client) *GitHub {
	return &GitHub{host: host, token: token, client: client, logger: slog.Default()}
}

// WithLogger sets the logger for the provider
func (g *GitHub) WithLogger(logger *slog.Logger) *GitHub {
	if logger != nil {
		g.logger = logger
	}

	return g
}

func (g *GitHub) ApprovalTool() model.ApprovalTool { return model.ApprovalToolGit }

func (g *GitHub) Host() string { return g.host }

func (g *GitHub) CodeOwnersPaths() []string {
	return []string{".github/CODEOWNERS", "CODEOWNERS", "docs/CODEOWNERS"}
}

func (g *GitHub) Repository(ctx context.Context, repoURL string) (*RepoDetails, error) {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return nil, err
	}

	repo, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}

	details := &RepoDetails{
		URL:           repo.GetHTMLURL(),
		Name:          repo.GetName(),
		Organization:  repo.GetOwner().GetLogin(),
		ID:            strconv.FormatInt(repo.GetID(), 10),
		DefaultBranch: repo.GetDefaultBranch(),
	}

	if details.URL == "" {
		details.URL = strings.TrimSuffix(repoURL, "/")
	}

	if repo.UpdatedAt != nil {
		t := repo.UpdatedAt.Time
		details.UpdatedAt = &t
	}

	return details, nil
}

func (g *GitHub) DefaultBranch(ctx context.Context, repoURL string) (string, error) {
	details, err := g.Repository(ctx, repoURL)
	if err != nil {
		return "", err
	}

	if details.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s has no default branch", repoURL)
	}

	return details.DefaultBranch, nil
}

func (g *GitHub) FileExists(ctx context.Context, repoURL, ref, path string) (bool, error) {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return false, err
	}

	_, _, resp, err := g.client.Repositories.GetContents(ctx, owner, name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if isGitHubNotFound(resp, err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to check %s in %s/%s: %w", path, owner, name, err)
	}

	return true, nil
}

func (g *GitHub) FileContent(ctx context.Context, repoURL, ref, path string) (string, error) {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return "", err
	}

	file, _, resp, err := g.client.Repositories.GetContents(ctx, owner, name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if isGitHubNotFound(resp, err) {
		return "", &model.NotFoundError{Kind: "file", ID: path}
	}

	if err != nil {
		return "", fmt.Errorf("failed to read %s in %s/%s: %w", path, owner, name, err)
	}

	if file == nil {
		return "", fmt.Errorf("%s in %s/%s is not a file", path, owner, name)
	}

	return file.GetContent()
}

// IsEmpty reports whether the repository has no commits. GitHub answers 409
// when listing the commits of an empty repository.
func (g *GitHub) IsEmpty(ctx context.Context, repoURL string) (bool, error) {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return false, err
	}

	commits, resp, err := g.client.Repositories.ListCommits(ctx, owner, name,
		&github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 1}})
	if resp != nil && resp.StatusCode == http.StatusConflict {
		return true, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to list commits of %s/%s: %w", owner, name, err)
	}

	return len(commits) == 0, nil
}

func (g *GitHub) FindOpenImportPR(ctx context.Context, repoURL, branch string) (*model.PullRequest, error) {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return nil, err
	}

	prs, _, err := g.client.PullRequests.List(ctx, owner, name, &github.PullRequestListOptions{
		State:       "open",
		Head:        owner + ":" + branch,
		ListOptions: github.ListOptions{PerPage: 10},
	})
	if err != nil {
		return nil, fmt.Errorf("could not find out if there is an import PR open on %s/%s: %w", owner, name, err)
	}

	for _, pr := range prs {
		if pr.GetHead().GetRef() == branch {
			return convertGitHubPR(pr), nil
		}
	}

	return nil, nil
}

func (g *GitHub) GetPR(ctx context.Context, repoURL string, number int) (*model.PullRequest, error) {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return nil, err
	}

	pr, resp, err := g.client.PullRequests.Get(ctx, owner, name, number)
	if isGitHubNotFound(resp, err) {
		return nil, &model.NotFoundError{Kind: "pull request", ID: fmt.Sprintf("%s/%s#%d", owner, name, number)}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get pull request %s/%s#%d: %w", owner, name, number, err)
	}

	return convertGitHubPR(pr), nil
}

func (g *GitHub) ClosePR(ctx context.Context, repoURL string, number int, comment string) error {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return err
	}

	if comment != "" {
		if _, _, err := g.client.Issues.CreateComment(ctx, owner, name, number,
			&github.IssueComment{Body: github.Ptr(comment)}); err != nil {
			return fmt.Errorf("failed to comment on pull request %s/%s#%d: %w", owner, name, number, err)
		}
	}

	if _, _, err := g.client.PullRequests.Edit(ctx, owner, name, number,
		&github.PullRequest{State: github.Ptr("closed")}); err != nil {
		return fmt.Errorf("failed to close pull request %s/%s#%d: %w", owner, name, number, err)
	}

	return nil
}

func (g *GitHub) UpdatePR(ctx context.Context, repoURL string, number int, title, body string) error {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return err
	}

	update := &github.PullRequest{}
	if title != "" {
		update.Title = github.Ptr(title)
	}

	if body != "" {
		update.Body = github.Ptr(body)
	}

	if _, _, err := g.client.PullRequests.Edit(ctx, owner, name, number, update); err != nil {
		return fmt.Errorf("failed to update pull request %s/%s#%d: %w", owner, name, number, err)
	}

	return nil
}

func (g *GitHub) DeleteBranch(ctx context.Context, repoURL, branch string) error {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return err
	}

	resp, err := g.client.Git.DeleteRef(ctx, owner, name, "heads/"+branch)
	if isGitHubNotFound(resp, err) || (resp != nil && resp.StatusCode == http.StatusUnprocessableEntity) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete branch %s on %s/%s: %w", branch, owner, name, err)
	}

	return nil
}

func (g *GitHub) WriteFile(ctx context.Context, repoURL, branch, path, content, message string) error {
	owner, name, err := ownerRepo(repoURL)
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: []byte(content),
		Branch:  github.Ptr(branch),
	}

	existing, _, resp, err := g.client.Repositories.GetContents(ctx, owner, name, path,
		&github.RepositoryContentGetOptions{Ref: branch})

	switch {
	case isGitHubNotFound(resp, err):
		_, _, err = g.client.Repositories.CreateFile(ctx, owner, name, path, opts)
	case err != nil:
		return fmt.Errorf("failed to read %s on %s: %w", path, branch, err)
	default:
		if current, _ := existing.GetContent(); current == content {
			return nil
		}

		opts.SHA = github.Ptr(existing.GetSHA())
		_, _, err = g.client.Repositories.UpdateFile(ctx, owner, name, path, opts)
	}

	if err != nil {
		return fmt.Errorf("failed to write %s on %s/%s@%s: %w", path, owner, name, branch, err)
	}

	return nil
}

// SubmitPR opens, or refreshes, the import pull request adding the catalog
// file. HasChanges is false when the base branch already carries the file.
func (g *GitHub) SubmitPR(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	owner, name, err := ownerRepo(req.RepoURL)
	if err != nil {
		return nil, err
	}

	exists, err := g.FileExists(ctx, req.RepoURL, req.BaseBranch, req.FilePath)
	if err != nil {
		return &SubmitResult{Errors: []string{err.Error()}}, nil
	}

	if exists {
		return &SubmitResult{HasChanges: false}, nil
	}

	if err := g.ensureBranch(ctx, owner, name, req.BaseBranch, req.Branch); err != nil {
		return &SubmitResult{Errors: []string{err.Error()}}, nil
	}

	if err := g.WriteFile(ctx, req.RepoURL, req.Branch, req.FilePath, req.Content, req.CommitMessage); err != nil {
		return &SubmitResult{Errors: []string{err.Error()}}, nil
	}

	open, err := g.FindOpenImportPR(ctx, req.RepoURL, req.Branch)
	if err != nil {
		return &SubmitResult{Errors: []string{err.Error()}}, nil
	}

	if open != nil {
		if err := g.UpdatePR(ctx, req.RepoURL, open.Number, req.Title, req.Body); err != nil {
			return &SubmitResult{Errors: []string{err.Error()}}, nil
		}

		open.Title, open.Body = req.Title, req.Body

		return &SubmitResult{PullRequest: open, HasChanges: true}, nil
	}

	pr, _, err := g.client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.Ptr(req.Title),
		Head:  github.Ptr(req.Branch),
		Base:  github.Ptr(req.BaseBranch),
		Body:  github.Ptr(req.Body),
	})
	if err != nil {
		return &SubmitResult{Errors: []string{fmt.Sprintf("failed to create pull request: %v", err)}}, nil
	}

	g.logger.Info("opened import pull request", "repo", req.RepoURL, "number", pr.GetNumber())

	return &SubmitResult{PullRequest: convertGitHubPR(pr), HasChanges: true}, nil
}

func (g *GitHub) ensureBranch(ctx context.Context, owner, name, base, branch string) error {
	_, resp, err := g.client.Git.GetRef(ctx, owner, name, "heads/"+branch)
	if err == nil {
		return nil
	}

	if !isGitHubNotFound(resp, err) {
		return fmt.Errorf("failed to look up branch %s: %w", branch, err)
	}

	baseRef, _, err := g.client.Git.GetRef(ctx, owner, name, "heads/"+base)
	if err != nil {
		return fmt.Errorf("failed to look up base branch %s: %w", base, err)
	}

	_, _, err = g.client.Git.CreateRef(ctx, owner, name, github.CreateRef{
		Ref: "refs/heads/" + branch,
		SHA: baseRef.GetObject().GetSHA(),
	})
	if err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branch, err)
	}

	return nil
}

func (g *GitHub) FilterReachable(ctx context.Context, urls []string) ([]string, error) {
	reachable := make([]bool, len(urls))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(reachabilityConcurrency)

	for i, u := range urls {
		eg.Go(func() error {
			owner, name, err := ownerRepo(u)
			if err != nil {
				return nil
			}

			if _, _, err := g.client.Repositories.Get(egctx, owner, name); err != nil {
				g.logger.Debug("repository not reachable", "repo", u, "error", err)
				return nil
			}

			reachable[i] = true

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(urls))

	for i, u := range urls {
		if reachable[i] {
			out = append(out, u)
		}
	}

	return out, nil
}

func (g *GitHub) Credentials(_ context.Context, repoURL string) (*Credentials, error) {
	if g.token == "" {
		return nil, fmt.Errorf("no credentials configured for %s", giturl.Host(repoURL))
	}

	return &Credentials{Host: g.host, Token: g.token}, nil
}

func convertGitHubPR(pr *github.PullRequest) *model.PullRequest {
	out := &model.PullRequest{
		Number:  pr.GetNumber(),
		URL:     pr.GetHTMLURL(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		Branch:  pr.GetHead().GetRef(),
		HeadSHA: pr.GetHead().GetSHA(),
		Merged:  pr.GetMerged(),
		Open:    pr.GetState() == "open",
	}

	if pr.UpdatedAt != nil {
		t := pr.UpdatedAt.Time
		out.UpdatedAt = &t
	}

	return out
}

func isGitHubNotFound(resp *github.Response, err error) bool {
	if err == nil {
		return false
	}

	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}

	var ghErr *github.ErrorResponse

	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func ownerRepo(repoURL string) (string, string, error) {
	repo, err := giturl.ParseRepository(repoURL)
	if err != nil {
		return "", "", err
	}

	return repo.Owner, repo.Name, nil
}
