package imports

import (
	"context"
	"errors"
	"fmt"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/provider"
)

// DeleteImportByRepo undoes the import of a repository: it closes the open
// import pull request, deletes the import branch, unregisters the catalog
// location and removes the ledger row. Steps with nothing to undo are no-ops.
func (s *Service) DeleteImportByRepo(ctx context.Context, repoURL, defaultBranch string) error {
	logger := s.logger.With("op", "delete", "repo", giturl.Redact(repoURL))

	gitlab := s.providers.ApprovalTool(repoURL) == model.ApprovalToolGitLab

	p, err := s.providers.ForURL(repoURL)

	switch {
	case errors.Is(err, provider.ErrNoProvider):
		logger.Warn("no integration for repository, skipping pull request cleanup")
	case err != nil:
		return err
	default:
		gitlab = p.ApprovalTool() == model.ApprovalToolGitLab

		if err := s.closeImportPR(ctx, p, repoURL); err != nil {
			return err
		}

		if defaultBranch == "" {
			if defaultBranch, err = s.defaultBranch(ctx, repoURL); err != nil {
				logger.Warn("failed to resolve default branch", "error", err)
			}
		}
	}

	if defaultBranch != "" {
		target := giturl.CatalogFileURL(repoURL, defaultBranch, s.opts.CatalogFilename, gitlab)

		loc, err := s.catalog.FindLocation(ctx, target)
		if err != nil {
			return err
		}

		if loc != nil && loc.ID != "" {
			if err := s.catalog.DeleteLocationByID(ctx, loc.ID); err != nil {
				return err
			}

			logger.Info("deleted catalog location", "target", target)
		}
	}

	repos := s.ledger.Repositories
	if s.opts.Mode == config.ModeOrchestrator {
		repos = s.ledger.WorkflowRepositories
	}

	if err := repos.DeleteByURL(ctx, repoURL); err != nil {
		return err
	}

	logger.Info("deleted import")

	return nil
}

func (s *Service) closeImportPR(ctx context.Context, p provider.Provider, repoURL string) error {
	pr, err := p.FindOpenImportPR(ctx, repoURL, s.opts.BranchName)
	if err != nil {
		return err
	}

	if pr != nil {
		if err := p.ClosePR(ctx, repoURL, pr.Number, s.opts.CloseComment); err != nil {
			return fmt.Errorf("failed to close import pull request #%d: %w", pr.Number, err)
		}
	}

	if err := p.DeleteBranch(ctx, repoURL, s.opts.BranchName); err != nil {
		return fmt.Errorf("failed to delete import branch: %w", err)
	}

	return nil
}
