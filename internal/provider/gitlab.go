package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/sync/errgroup"
)

const defaultGitLabHost = "gitlab.com"

// GitLab talks to gitlab.com or a self-managed GitLab host.
type GitLab struct {
	host   string
	token  string
	client *gitlab.Client
	logger *slog.Logger
}

// NewGitLab creates a provider for one GitLab integration.
func NewGitLab(_ context.Context, cfg config.Integration) (*GitLab, error) {
	host := strings.ToLower(cfg.Host)
	if host == "" {
		host = defaultGitLabHost
	}

	base := cfg.APIBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s/api/v4", host)
	}

	client, err := gitlab.NewClient(cfg.Token, gitlab.WithBaseURL(base))
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	return newGitLab(host, cfg.Token, client), nil
}

func newGitLab(host, token string, client *gitlab.Client) *GitLab {
	return &GitLab{host: host, token: token, client: client, logger: slog.Default()}
}

// WithLogger sets the logger for the provider
func (g *GitLab) WithLogger(logger *slog.Logger) *GitLab {
	if logger != nil {
		g.logger = logger
	}

	return g
}

func (g *GitLab) ApprovalTool() model.ApprovalTool { return model.ApprovalToolGitLab }

func (g *GitLab) Host() string { return g.host }

func (g *GitLab) CodeOwnersPaths() []string {
	return []string{".gitlab/CODEOWNERS", "CODEOWNERS", "docs/CODEOWNERS"}
}

func (g *GitLab) Repository(ctx context.Context, repoURL string) (*RepoDetails, error) {
	pid, err := projectPath(repoURL)
	if err != nil {
		return nil, err
	}

	project, _, err := g.client.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", pid, err)
	}

	details := &RepoDetails{
		URL:           project.WebURL,
		Name:          project.Path,
		ID:            strconv.Itoa(project.ID),
		DefaultBranch: project.DefaultBranch,
		UpdatedAt:     project.LastActivityAt,
		Empty:         project.EmptyRepo,
	}

	if project.Namespace != nil {
		details.Organization = project.Namespace.FullPath
	}

	if details.URL == "" {
		details.URL = strings.TrimSuffix(repoURL, "/")
	}

	return details, nil
}

func (g *GitLab) DefaultBranch(ctx context.Context, repoURL string) (string, error) {
	details, err := g.Repository(ctx, repoURL)
	if err != nil {
		return "", err
	}

	if details.DefaultBranch == "" {
		return "", fmt.Errorf("project %s has no default branch", repoURL)
	}

	return details.DefaultBranch, nil
}

func (g *GitLab) FileExists(ctx context.Context, repoURL, ref, path string) (bool, error) {
	pid, err := projectPath(repoURL)
	if err != nil {
		return false, err
	}

	_, resp, err := g.client.RepositoryFiles.GetFileMetaData(pid, path,
		&gitlab.GetFileMetaDataOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
	if isGitLabNotFound(resp, err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to check %s in %s: %w", path, pid, err)
	}

	return true, nil
}

func (g *GitLab) FileContent(ctx context.Context, repoURL, ref, path string) (string, error) {
	pid, err := projectPath(repoURL)
	if err != nil {
		return "", err
	}

	raw, resp, err := g.client.RepositoryFiles.GetRawFile(pid, path,
		&gitlab.GetRawFileOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
	if isGitLabNotFound(resp, err) {
		return "", &model.NotFoundError{Kind: "file", ID: path}
	}

	if err != nil {
		return "", fmt.Errorf("failed to read %s in %s: %w", path, pid, err)
	}

	return string(raw), nil
}

func (g *GitLab) IsEmpty(ctx context.Context, repoURL string) (bool, error) {
	details, err := g.Repository(ctx, repoURL)
	if err != nil {
		return false, err
	}

	return details.Empty, nil
}

func (g *GitLab) FindOpenImportPR(ctx context.Context, repoURL, branch string) (*model.PullRequest, error) {
	pid, err := projectPath(repoURL)
	if err != nil {
		return nil, err
	}

	mrs, _, err := g.client.MergeRequests.ListProjectMergeRequests(pid, &gitlab.ListProjectMergeRequestsOptions{
		State:        gitlab.Ptr("opened"),
		SourceBranch: gitlab.Ptr(branch),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("could not find out if there is an import PR open on %s: %w", pid, err)
	}

	for _, mr := range mrs {
		if mr.SourceBranch == branch {
			return convertGitLabMR(mr), nil
		}
	}

	return nil, nil
}

func (g *GitLab) GetPR(ctx context.Context, repoURL string, number int) (*model.PullRequest, error) {
	pid, err := projectPath(repoURL)
	if err != nil {
		return nil, err
	}

	mr, resp, err := g.client.MergeRequests.GetMergeRequest(pid, number, nil, gitlab.WithContext(ctx))
	if isGitLabNotFound(resp, err) {
		return nil, &model.NotFoundError{Kind: "merge request", ID: fmt.Sprintf("%s!%d", pid, number)}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get merge request %s!%d: %w", pid, number, err)
	}

	return convertGitLabMR(mr), nil
}

func (g *GitLab) ClosePR(ctx context.Context, repoURL string, number int, comment string) error {
	pid, err := projectPath(repoURL)
	if err != nil {
		return err
	}

	if comment != "" {
		if _, _, err := g.client.Notes.CreateMergeRequestNote(pid, number,
			&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(comment)}, gitlab.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to comment on merge request %s!%d: %w", pid, number, err)
		}
	}

	if _, _, err := g.client.MergeRequests.UpdateMergeRequest(pid, number,
		&gitlab.UpdateMergeRequestOptions{StateEvent: gitlab.Ptr("close")}, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to close merge request %s!%d: %w", pid, number, err)
	}

	return nil
}

func (g *GitLab) UpdatePR(ctx context.Context, repoURL string, number int, title, body string) error {
	pid, err := projectPath(repoURL)
	if err != nil {
		return err
	}

	opts := &gitlab.UpdateMergeRequestOptions{}
	if title != "" {
		opts.Title = gitlab.Ptr(title)
	}

	if body != "" {
		opts.Description = gitlab.Ptr(body)
	}

	if _, _, err := g.client.MergeRequests.UpdateMergeRequest(pid, number, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to update merge request %s!%d: %w", pid, number, err)
	}

	return nil
}

func (g *GitLab) DeleteBranch(ctx context.Context, repoURL, branch string) error {
	pid, err := projectPath(repoURL)
	if err != nil {
		return err
	}

	resp, err := g.client.Branches.DeleteBranch(pid, branch, gitlab.WithContext(ctx))
	if isGitLabNotFound(resp, err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete branch %s on %s: %w", branch, pid, err)
	}

	return nil
}

func (g *GitLab) WriteFile(ctx context.Context, repoURL, branch, path, content, message string) error {
	pid, err := projectPath(repoURL)
	if err != nil {
		return err
	}

	exists, err := g.FileExists(ctx, repoURL, branch, path)
	if err != nil {
		return err
	}

	if exists {
		current, err := g.FileContent(ctx, repoURL, branch, path)
		if err == nil && current == content {
			return nil
		}

		_, _, err = g.client.RepositoryFiles.UpdateFile(pid, path, &gitlab.UpdateFileOptions{
			Branch:        gitlab.Ptr(branch),
			Content:       gitlab.Ptr(content),
			CommitMessage: gitlab.Ptr(message),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to update %s on %s@%s: %w", path, pid, branch, err)
		}

		return nil
	}

	_, _, err = g.client.RepositoryFiles.CreateFile(pid, path, &gitlab.CreateFileOptions{
		Branch:        gitlab.Ptr(branch),
		Content:       gitlab.Ptr(content),
		CommitMessage: gitlab.Ptr(message),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create %s on %s@%s: %w", path, pid, branch, err)
	}

	return nil
}

// SubmitPR opens, or refreshes, the import merge request adding the catalog
// file. HasChanges is false when the target branch already carries the file.
func (g *GitLab) SubmitPR(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	pid, err := projectPath(req.RepoURL)
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

	_, resp, err := g.client.Branches.GetBranch(pid, req.Branch, gitlab.WithContext(ctx))
	if isGitLabNotFound(resp, err) {
		_, _, err = g.client.Branches.CreateBranch(pid, &gitlab.CreateBranchOptions{
			Branch: gitlab.Ptr(req.Branch),
			Ref:    gitlab.Ptr(req.BaseBranch),
		}, gitlab.WithContext(ctx))
	}

	if err != nil {
		return &SubmitResult{Errors: []string{fmt.Sprintf("failed to prepare branch %s: %v", req.Branch, err)}}, nil
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

	mr, _, err := g.client.MergeRequests.CreateMergeRequest(pid, &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(req.Title),
		Description:  gitlab.Ptr(req.Body),
		SourceBranch: gitlab.Ptr(req.Branch),
		TargetBranch: gitlab.Ptr(req.BaseBranch),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return &SubmitResult{Errors: []string{fmt.Sprintf("failed to create merge request: %v", err)}}, nil
	}

	g.logger.Info("opened import merge request", "repo", req.RepoURL, "iid", mr.IID)

	return &SubmitResult{PullRequest: convertGitLabMR(mr), HasChanges: true}, nil
}

func (g *GitLab) FilterReachable(ctx context.Context, urls []string) ([]string, error) {
	reachable := make([]bool, len(urls))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(reachabilityConcurrency)

	for i, u := range urls {
		eg.Go(func() error {
			pid, err := projectPath(u)
			if err != nil {
				return nil
			}

			if _, _, err := g.client.Projects.GetProject(pid, nil, gitlab.WithContext(egctx)); err != nil {
				g.logger.Debug("project not reachable", "repo", u, "error", err)
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

func (g *GitLab) Credentials(_ context.Context, repoURL string) (*Credentials, error) {
	if g.token == "" {
		return nil, fmt.Errorf("no credentials configured for %s", giturl.Host(repoURL))
	}

	return &Credentials{Host: g.host, Token: g.token}, nil
}

func convertGitLabMR(mr *gitlab.MergeRequest) *model.PullRequest {
	return &model.PullRequest{
		Number:    mr.IID,
		URL:       mr.WebURL,
		Title:     mr.Title,
		Body:      mr.Description,
		Branch:    mr.SourceBranch,
		HeadSHA:   mr.SHA,
		Merged:    mr.State == "merged",
		Open:      mr.State == "opened",
		UpdatedAt: mr.UpdatedAt,
	}
}

func isGitLabNotFound(resp *gitlab.Response, err error) bool {
	if err == nil {
		return false
	}

	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}

	var glErr *gitlab.ErrorResponse

	return errors.As(err, &glErr) && glErr.Response != nil && glErr.Response.StatusCode == http.StatusNotFound
}

func projectPath(repoURL string) (string, error) {
	repo, err := giturl.ParseRepository(repoURL)
	if err != nil {
		return "", err
	}

	return repo.FullName(), nil
}
