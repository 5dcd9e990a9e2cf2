package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"gorm.io/gorm"
)

// Workflows stores launched workflow instances.
type Workflows struct {
	db *gorm.DB
}

// Insert records a launched instance and returns the row id.
func (w *Workflows) Insert(ctx context.Context, instanceID string, repositoryID int64) (int64, error) {
	row := OrchestratorWorkflow{InstanceID: instanceID, RepositoryID: repositoryID}

	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to insert orchestrator workflow: %w", err)
	}

	return row.ID, nil
}

// LastExecutedByRepositoryID returns the most recently launched instance of a
// repository. It fails with a *model.NotFoundError when there is none.
func (w *Workflows) LastExecutedByRepositoryID(ctx context.Context, repositoryID int64) (*OrchestratorWorkflow, error) {
	var wf OrchestratorWorkflow

	err := w.db.WithContext(ctx).
		Where("repository_id = ?", repositoryID).
		Order("created_at DESC").
		Order("id DESC").
		Take(&wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "workflow for repository", ID: strconv.FormatInt(repositoryID, 10)}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find last orchestrator workflow: %w", err)
	}

	return &wf, nil
}

// FindByRepositoryID returns every instance of a repository, most recent first.
func (w *Workflows) FindByRepositoryID(ctx context.Context, repositoryID int64) ([]OrchestratorWorkflow, error) {
	var workflows []OrchestratorWorkflow

	err := w.db.WithContext(ctx).
		Where("repository_id = ?", repositoryID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&workflows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orchestrator workflows: %w", err)
	}

	return workflows, nil
}
