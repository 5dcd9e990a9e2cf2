package imports

import (
	"context"
	"errors"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
)

var errNoWorkflowAPI = errors.New("workflow engine API is not configured")

// resolveWorkflow derives the status of a repository imported through the
// workflow engine from its most recently launched instance. A missing
// repository or instance is reported as NotFound.
func (s *Service) resolveWorkflow(ctx context.Context, repoURL, defaultBranch string, tool model.ApprovalTool, withHistory bool) Lookup {
	imp := newImport(repoURL, defaultBranch, tool)

	fail := func(err error) Lookup {
		imp.Status = model.StatusWorkflowFetchFailed
		imp.AddError(err)

		return Lookup{Import: imp, NotFound: errors.Is(err, model.ErrNotFound)}
	}

	if s.workflows == nil {
		return fail(errNoWorkflowAPI)
	}

	repo, err := s.ledger.WorkflowRepositories.FindByURL(ctx, repoURL)
	if err != nil {
		return fail(err)
	}

	if repo == nil {
		return fail(&model.NotFoundError{Kind: "repository", ID: repoURL})
	}

	if imp.ApprovalTool == "" {
		imp.ApprovalTool = model.ApprovalTool(repo.ApprovalTool)
	}

	last, err := s.ledger.Workflows.LastExecutedByRepositoryID(ctx, repo.ID)
	if err != nil {
		return fail(err)
	}

	imp.Workflow = &model.WorkflowRef{WorkflowID: last.InstanceID}
	created := last.CreatedAt
	imp.LastUpdate = &created

	if withHistory {
		rows, err := s.ledger.Workflows.FindByRepositoryID(ctx, repo.ID)
		if err != nil {
			return fail(err)
		}

		for _, row := range rows {
			at := row.CreatedAt
			imp.Workflows = append(imp.Workflows, model.WorkflowRecord{WorkflowID: row.InstanceID, CreatedAt: &at})
		}
	}

	inst, err := s.workflows.GetInstance(ctx, last.InstanceID)
	if err != nil {
		return fail(err)
	}

	imp.Status = model.WorkflowStatus(inst.State)

	switch {
	case inst.End != nil:
		imp.LastUpdate = inst.End
	case inst.Start != nil:
		imp.LastUpdate = inst.Start
	}

	return Lookup{Import: imp}
}
