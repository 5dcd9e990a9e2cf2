package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Tasks stores scaffolder task rows.
type Tasks struct {
	db *gorm.DB
}

// Insert records a submitted task and returns its id.
func (t *Tasks) Insert(ctx context.Context, task *ScaffolderTask) (string, error) {
	if task.TaskID == "" {
		return "", errors.New("task id is required")
	}

	if err := t.db.WithContext(ctx).Create(task).Error; err != nil {
		return "", fmt.Errorf("failed to insert scaffolder task: %w", err)
	}

	return task.TaskID, nil
}

// FindAll returns every task.
func (t *Tasks) FindAll(ctx context.Context) ([]ScaffolderTask, error) {
	var tasks []ScaffolderTask

	if err := t.db.WithContext(ctx).Order("executed_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list scaffolder tasks: %w", err)
	}

	return tasks, nil
}

// FindByRepositoryID returns the tasks of a repository, most recent first.
func (t *Tasks) FindByRepositoryID(ctx context.Context, repositoryID int64) ([]ScaffolderTask, error) {
	var tasks []ScaffolderTask

	err := t.db.WithContext(ctx).
		Where("repository_id = ?", repositoryID).
		Order("executed_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scaffolder tasks: %w", err)
	}

	return tasks, nil
}

// LastExecutedByRepositoryID returns the most recently executed task of a
// repository, or nil when it has none.
func (t *Tasks) LastExecutedByRepositoryID(ctx context.Context, repositoryID int64) (*ScaffolderTask, error) {
	var task ScaffolderTask

	err := t.db.WithContext(ctx).
		Where("repository_id = ? AND executed_at IS NOT NULL", repositoryID).
		Order("executed_at DESC").
		Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find last scaffolder task: %w", err)
	}

	return &task, nil
}

// TaskLocations stores catalog locations reported by running tasks.
type TaskLocations struct {
	db *gorm.DB
}

// Add appends a location for taskID. An empty kind stores DefaultLocationType.
func (l *TaskLocations) Add(ctx context.Context, taskID, location, kind string) error {
	if kind == "" {
		kind = DefaultLocationType
	}

	row := TaskLocation{TaskID: taskID, Location: location, Type: kind}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to add task location: %w", err)
	}

	return nil
}

// FindByTaskID returns the locations of a task in insertion order.
func (l *TaskLocations) FindByTaskID(ctx context.Context, taskID string) ([]TaskLocation, error) {
	var locations []TaskLocation

	if err := l.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id ASC").Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("failed to list task locations: %w", err)
	}

	return locations, nil
}

// FindAll returns every task location.
func (l *TaskLocations) FindAll(ctx context.Context) ([]TaskLocation, error) {
	var locations []TaskLocation

	if err := l.db.WithContext(ctx).Order("id ASC").Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("failed to list task locations: %w", err)
	}

	return locations, nil
}
