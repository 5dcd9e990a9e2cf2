package ledger

import "time"

const (
	// TableRepositories holds repositories imported through pull requests or scaffolder tasks.
	TableRepositories = "repositories"

	// TableOrchestratorRepositories holds repositories imported through the workflow engine.
	TableOrchestratorRepositories = "orchestrator_repositories"

	// DefaultLocationType is stored when a task location carries no explicit kind.
	DefaultLocationType = "component"
)

// Repository is the identity row of an imported repository. The same shape is
// stored in both repository tables.
type Repository struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	URL          string    `gorm:"column:url" json:"url"`
	ApprovalTool string    `gorm:"column:approval_tool" json:"approvalTool"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
}

// ScaffolderTask records a task submitted to the task-execution API.
type ScaffolderTask struct {
	TaskID            string         `gorm:"column:task_id;primaryKey" json:"taskId"`
	RepositoryID      int64          `gorm:"column:repository_id" json:"repositoryId"`
	ScaffolderOptions map[string]any `gorm:"column:scaffolder_options;serializer:json" json:"scaffolderOptions,omitempty"`
	ExecutedAt        *time.Time     `gorm:"column:executed_at" json:"executedAt,omitempty"`
}

func (ScaffolderTask) TableName() string { return "scaffolder_tasks" }

// TaskLocation is a catalog location registered by a running scaffolder task.
type TaskLocation struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TaskID   string `gorm:"column:task_id" json:"taskId"`
	Location string `gorm:"column:location" json:"location"`
	Type     string `gorm:"column:type" json:"type"`
}

func (TaskLocation) TableName() string { return "task_locations" }

// OrchestratorWorkflow records a launched workflow instance.
type OrchestratorWorkflow struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	InstanceID   string    `gorm:"column:instance_id" json:"instanceId"`
	RepositoryID int64     `gorm:"column:repository_id" json:"repositoryId"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (OrchestratorWorkflow) TableName() string { return "orchestrator_workflows" }
