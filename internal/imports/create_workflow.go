package imports

import (
	"context"
	"log/slog"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/orchestrator"
)

// CreateWorkflowImportJobs launches the import workflow for every request with
// a repository url. Requests without one are skipped.
func (s *Service) CreateWorkflowImportJobs(ctx context.Context, reqs []model.ImportRequest) ([]*model.Import, error) {
	if len(reqs) == 0 {
		return nil, model.ErrEmptyRequest
	}

	logger := s.batchLogger("create-workflows").With("count", len(reqs))

	var pending []*model.ImportRequest

	for i := range reqs {
		if reqs[i].Repository.URL == "" {
			logger.Debug("skipping import request without repository url", "index", i)
			continue
		}

		pending = append(pending, &reqs[i])
	}

	results := make([]*model.Import, len(pending))

	s.fanOut(ctx, len(pending), func(ctx context.Context, i int) {
		results[i] = s.createWorkflow(ctx, pending[i], logger)
	})

	logger.Info("processed workflow import requests", "launched", len(pending))

	return results, nil
}

func (s *Service) createWorkflow(ctx context.Context, req *model.ImportRequest, logger *slog.Logger) *model.Import {
	imp := s.requestImport(req)
	repoURL := req.Repository.URL

	fail := func(err error) *model.Import {
		logger.Warn("failed to launch import workflow", "repo", repoURL, "error", err)

		imp.Status = model.StatusWorkflowFetchFailed
		imp.AddError(err)

		return imp
	}

	if s.workflows == nil {
		return fail(errNoWorkflowAPI)
	}

	repo, err := giturl.ParseRepository(repoURL)
	if err != nil {
		return fail(err)
	}

	p, err := s.providers.ForRepo(repoURL, imp.ApprovalTool)
	if err != nil {
		return fail(err)
	}

	imp.ApprovalTool = p.ApprovalTool()

	creds, err := p.Credentials(ctx, repoURL)
	if err != nil {
		return fail(err)
	}

	base := req.Repository.DefaultBranch
	if base == "" {
		if base, err = s.defaultBranch(ctx, repoURL); err != nil {
			return fail(err)
		}

		imp.Repository.DefaultBranch = base
	}

	instanceID, err := s.workflows.Execute(ctx, s.opts.WorkflowID, orchestrator.Inputs{
		Owner:        repo.Owner,
		Repo:         repo.Name,
		BaseBranch:   base,
		TargetBranch: s.opts.BranchName,
		ApprovalTool: string(imp.ApprovalTool),
	}, []orchestrator.AuthToken{{
		Provider: providerName(imp.ApprovalTool),
		Token:    creds.Token,
	}})
	if err != nil {
		return fail(err)
	}

	imp.Workflow = &model.WorkflowRef{WorkflowID: instanceID}

	repoID, err := s.ledger.WorkflowRepositories.InsertOrGet(ctx, repoURL, imp.ApprovalTool)
	if err != nil {
		return fail(err)
	}

	if _, err := s.ledger.Workflows.Insert(ctx, instanceID, repoID); err != nil {
		return fail(err)
	}

	now := time.Now().UTC()
	imp.LastUpdate = &now

	inst, err := s.workflows.GetInstance(ctx, instanceID)
	if err != nil {
		return fail(err)
	}

	imp.Status = model.WorkflowStatus(inst.State)

	logger.Info("launched import workflow", "repo", repoURL, "instance_id", instanceID, "status", imp.Status)

	return imp
}

func providerName(tool model.ApprovalTool) string {
	if tool == model.ApprovalToolGitLab {
		return "gitlab"
	}

	return "github"
}
