package imports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/provider"
	"gopkg.in/yaml.v3"
)

// Dry-run failure codes.
const (
	CodeEntityConflict     = "CATALOG_ENTITY_CONFLICT"
	CodeRepoEmpty          = "REPO_EMPTY"
	CodeCatalogFileExists  = "CATALOG_INFO_FILE_EXISTS_IN_REPO"
	CodeCodeOwnersNotFound = "CODEOWNERS_FILE_NOT_FOUND_IN_REPO"
)

var errNoCatalogContent = errors.New("no catalog-info content provided")

// catalogEntity is the part of a catalog-info document the checks read.
type catalogEntity struct {
	Metadata struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
}

// entityName returns the entity name of a request, reading metadata.name of
// the first document in content when the request names none.
func entityName(req *model.ImportRequest, content string) string {
	if req.CatalogEntityName != "" {
		return req.CatalogEntityName
	}

	var doc catalogEntity
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return ""
	}

	return doc.Metadata.Name
}

func requestContent(req *model.ImportRequest) string {
	if req.CatalogInfoContent != "" {
		return req.CatalogInfoContent
	}

	if pr := req.PullRequest(); pr != nil {
		return pr.CatalogInfoContent
	}

	return ""
}

// CreateImportJobs opens an import pull request for every request. With
// dryRun only the pre-flight checks run and each record lists the failing
// check codes. Results follow the order of reqs.
func (s *Service) CreateImportJobs(ctx context.Context, reqs []model.ImportRequest, dryRun bool) ([]*model.Import, error) {
	if len(reqs) == 0 {
		return nil, model.ErrEmptyRequest
	}

	logger := s.batchLogger("create-pull-requests").With("dry_run", dryRun, "count", len(reqs))
	results := make([]*model.Import, len(reqs))

	s.fanOut(ctx, len(reqs), func(ctx context.Context, i int) {
		if dryRun {
			results[i] = s.dryRun(ctx, &reqs[i], logger)
		} else {
			results[i] = s.createPR(ctx, &reqs[i], logger)
		}
	})

	logger.Info("processed import requests")

	return results, nil
}

func (s *Service) requestImport(req *model.ImportRequest) *model.Import {
	tool := req.ApprovalTool
	if tool == "" {
		tool = s.providers.ApprovalTool(req.Repository.URL)
	}

	imp := newImport(req.Repository.URL, req.Repository.DefaultBranch, tool)
	imp.CatalogEntityName = req.CatalogEntityName

	if req.Repository.Name != "" {
		imp.Repository.Name = req.Repository.Name
	}

	if req.Repository.Organization != "" {
		imp.Repository.Organization = req.Repository.Organization
	}

	return imp
}

// dryRun runs the independent pre-flight checks of one request and records the
// sorted codes of those that fail. Checks that cannot run are reported as
// errors and mark the record PR_ERROR.
func (s *Service) dryRun(ctx context.Context, req *model.ImportRequest, logger *slog.Logger) *model.Import {
	imp := s.requestImport(req)
	repoURL := req.Repository.URL

	p, err := s.providers.ForRepo(repoURL, imp.ApprovalTool)
	if err != nil {
		imp.Status = model.StatusPRError
		imp.AddError(err)

		return imp
	}

	var (
		codes    []string
		problems []error
	)

	check := func(code string, failed bool, err error) {
		if err != nil {
			problems = append(problems, fmt.Errorf("%s check failed: %w", code, err))
			return
		}

		if failed {
			codes = append(codes, code)
		}
	}

	if name := entityName(req, requestContent(req)); name != "" {
		exists, err := s.catalog.EntityExists(ctx, name)
		check(CodeEntityConflict, exists, err)
	}

	empty, err := p.IsEmpty(ctx, repoURL)
	check(CodeRepoEmpty, empty, err)

	if !empty && err == nil {
		branch := req.Repository.DefaultBranch
		if branch == "" {
			branch, err = s.defaultBranch(ctx, repoURL)
		}

		if err == nil {
			var exists bool
			exists, err = p.FileExists(ctx, repoURL, branch, s.opts.CatalogFilename)
			check(CodeCatalogFileExists, exists, err)
		} else {
			check(CodeCatalogFileExists, false, err)
		}

		if req.CodeOwnersFileAsEntityOwner {
			found, err := s.codeOwnersExists(ctx, p, repoURL, branch)
			check(CodeCodeOwnersNotFound, !found, err)
		}
	}

	slices.Sort(codes)
	imp.Errors = codes

	if len(problems) > 0 {
		imp.Status = model.StatusPRError
		for _, problem := range problems {
			imp.AddError(problem)
		}

		logger.Warn("dry-run checks incomplete", "repo", repoURL, "error", errors.Join(problems...))
	}

	return imp
}

func (s *Service) codeOwnersExists(ctx context.Context, p provider.Provider, repoURL, branch string) (bool, error) {
	for _, path := range p.CodeOwnersPaths() {
		exists, err := p.FileExists(ctx, repoURL, branch, path)
		if err != nil {
			return false, err
		}

		if exists {
			return true, nil
		}
	}

	return false, nil
}

// createPR registers the catalog location of one repository and opens the
// import pull request that adds its catalog file.
func (s *Service) createPR(ctx context.Context, req *model.ImportRequest, logger *slog.Logger) *model.Import {
	imp := s.requestImport(req)
	repoURL := req.Repository.URL

	fail := func(err error) *model.Import {
		imp.Status = model.StatusPRError
		imp.AddError(err)
		logger.Warn("import pull request failed", "repo", repoURL, "error", err)

		return imp
	}

	p, err := s.providers.ForRepo(repoURL, imp.ApprovalTool)
	if err != nil {
		return fail(err)
	}

	imp.ApprovalTool = p.ApprovalTool()

	details, err := p.Repository(ctx, repoURL)
	if err != nil {
		return fail(err)
	}

	branch := req.Repository.DefaultBranch
	if branch == "" {
		branch = details.DefaultBranch
	}

	imp.Repository.DefaultBranch = branch
	imp.Repository.ID = details.ID
	imp.LastUpdate = details.UpdatedAt

	target := giturl.CatalogFileURL(repoURL, branch, s.opts.CatalogFilename, imp.ApprovalTool == model.ApprovalToolGitLab)

	registered, err := s.catalog.LocationExists(ctx, target)
	if err != nil {
		return fail(err)
	}

	if registered {
		present, err := p.FileExists(ctx, repoURL, branch, s.opts.CatalogFilename)
		if err != nil {
			return fail(err)
		}

		if present {
			imp.Status = model.StatusAdded
			s.refresh(ctx, target)

			return imp
		}
	}

	content := requestContent(req)
	if content == "" {
		return fail(errNoCatalogContent)
	}

	if _, err := s.ledger.Repositories.InsertOrGet(ctx, repoURL, imp.ApprovalTool); err != nil {
		return fail(err)
	}

	if !registered {
		if err := s.catalog.AddLocation(ctx, target); err != nil {
			return fail(err)
		}
	}

	title, body := s.opts.PRTitle, s.opts.PRBody
	if pr := req.PullRequest(); pr != nil {
		if pr.Title != "" {
			title = pr.Title
		}

		if pr.Body != "" {
			body = pr.Body
		}
	}

	result, err := p.SubmitPR(ctx, provider.SubmitRequest{
		RepoURL:       repoURL,
		BaseBranch:    branch,
		Branch:        s.opts.BranchName,
		FilePath:      s.opts.CatalogFilename,
		Content:       content,
		Title:         title,
		Body:          body,
		CommitMessage: "Add " + s.opts.CatalogFilename,
	})
	if err != nil {
		return fail(err)
	}

	switch {
	case len(result.Errors) > 0:
		imp.Status = model.StatusPRError
		imp.Errors = append(imp.Errors, result.Errors...)

		return imp

	case !result.HasChanges:
		imp.Status = model.StatusAdded

	default:
		imp.Status = model.StatusWaitPRApproval
		imp.SetPullRequest(result.PullRequest)

		if pr := result.PullRequest; pr != nil {
			if pr.UpdatedAt != nil {
				imp.LastUpdate = pr.UpdatedAt
			}

			logger.Info("import pull request open", "repo", repoURL, "url", pr.URL)
		}
	}

	s.refresh(ctx, target)

	return imp
}
