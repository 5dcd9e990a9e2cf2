package imports

import (
	"context"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
)

// Lookup is the resolved import of one repository. NotFound asks the caller to
// answer a single-import lookup with 404 while still returning Import.
type Lookup struct {
	Import   *model.Import
	NotFound bool
}

// newImport returns an import record prefilled from the repository url.
func newImport(repoURL, defaultBranch string, tool model.ApprovalTool) *model.Import {
	imp := &model.Import{
		ID:           repoURL,
		ApprovalTool: tool,
		Repository:   &model.RepositoryInfo{URL: repoURL, DefaultBranch: defaultBranch},
	}

	if repo, err := giturl.ParseRepository(repoURL); err == nil {
		imp.Repository.Name = repo.Name
		imp.Repository.Organization = repo.Owner
	}

	return imp
}

func failed(imp *model.Import, status model.Status, err error) Lookup {
	imp.Status = status
	imp.AddError(err)

	return Lookup{Import: imp, NotFound: model.IsNotFound(err)}
}

// resolvePR derives the status of a repository imported through pull requests.
// An open import pull request wins over an already registered catalog file.
func (s *Service) resolvePR(ctx context.Context, repoURL, defaultBranch string, tool model.ApprovalTool) Lookup {
	imp := newImport(repoURL, defaultBranch, tool)

	p, err := s.providers.ForRepo(repoURL, tool)
	if err != nil {
		return failed(imp, model.StatusPRError, err)
	}

	imp.ApprovalTool = p.ApprovalTool()

	details, err := p.Repository(ctx, repoURL)
	if err != nil {
		return failed(imp, model.StatusPRError, err)
	}

	imp.Repository = details.Info()
	imp.Repository.URL = repoURL
	imp.LastUpdate = details.UpdatedAt

	branch := defaultBranch
	if branch == "" {
		branch = details.DefaultBranch
	} else {
		imp.Repository.DefaultBranch = branch
	}

	pr, err := p.FindOpenImportPR(ctx, repoURL, s.opts.BranchName)
	if err != nil {
		return failed(imp, model.StatusPRError, err)
	}

	if pr != nil {
		imp.Status = model.StatusWaitPRApproval
		imp.SetPullRequest(pr)

		if pr.UpdatedAt != nil {
			imp.LastUpdate = pr.UpdatedAt
		}

		return Lookup{Import: imp}
	}

	target := giturl.CatalogFileURL(repoURL, branch, s.opts.CatalogFilename, imp.ApprovalTool == model.ApprovalToolGitLab)

	registered, err := s.catalog.LocationExists(ctx, target)
	if err != nil {
		return failed(imp, model.StatusPRError, err)
	}

	if !registered {
		return Lookup{Import: imp}
	}

	present, err := p.FileExists(ctx, repoURL, branch, s.opts.CatalogFilename)
	if err != nil {
		return failed(imp, model.StatusPRError, err)
	}

	if present {
		imp.Status = model.StatusAdded
		s.refresh(ctx, target)
	}

	return Lookup{Import: imp}
}

// refresh asks the catalog to reprocess target. Failures are only logged.
func (s *Service) refresh(ctx context.Context, target string) {
	if err := s.catalog.RefreshLocation(ctx, target); err != nil {
		s.logger.Warn("failed to refresh catalog location", "target", target, "error", err)
	}
}
