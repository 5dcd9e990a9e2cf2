package model

import "strings"

// Status is the derived import status shared by every resolver family.
type Status string

// StatusNone means no signal was found for the repository.
const StatusNone Status = ""

// Pull-request flow.
const (
	StatusAdded          Status = "ADDED"
	StatusWaitPRApproval Status = "WAIT_PR_APPROVAL"
	StatusPRError        Status = "PR_ERROR"
)

// Scaffolder task flow.
const (
	StatusTaskOpen        Status = "TASK_OPEN"
	StatusTaskProcessing  Status = "TASK_PROCESSING"
	StatusTaskCompleted   Status = "TASK_COMPLETED"
	StatusTaskFailed      Status = "TASK_FAILED"
	StatusTaskCancelled   Status = "TASK_CANCELLED"
	StatusTaskSkipped     Status = "TASK_SKIPPED"
	StatusTaskFetchFailed Status = "TASK_FETCH_FAILED"
	StatusTaskUnknown     Status = "TASK_UNKNOWN"
)

// Workflow engine flow.
const (
	StatusWorkflowActive      Status = "WORKFLOW_ACTIVE"
	StatusWorkflowCompleted   Status = "WORKFLOW_COMPLETED"
	StatusWorkflowAborted     Status = "WORKFLOW_ABORTED"
	StatusWorkflowSuspended   Status = "WORKFLOW_SUSPENDED"
	StatusWorkflowError       Status = "WORKFLOW_ERROR"
	StatusWorkflowPending     Status = "WORKFLOW_PENDING"
	StatusWorkflowFetchFailed Status = "WORKFLOW_FETCH_FAILED"
	StatusWorkflowUnknown     Status = "WORKFLOW_UNKNOWN"
)

var taskStatuses = map[string]Status{
	"open":       StatusTaskOpen,
	"processing": StatusTaskProcessing,
	"completed":  StatusTaskCompleted,
	"failed":     StatusTaskFailed,
	"cancelled":  StatusTaskCancelled,
	"skipped":    StatusTaskSkipped,
}

var workflowStatuses = map[string]Status{
	"active":    StatusWorkflowActive,
	"completed": StatusWorkflowCompleted,
	"aborted":   StatusWorkflowAborted,
	"suspended": StatusWorkflowSuspended,
	"error":     StatusWorkflowError,
	"pending":   StatusWorkflowPending,
}

// TaskStatus maps a task-execution API status onto the task family.
// Unrecognized values map to StatusTaskUnknown.
func TaskStatus(remote string) Status {
	if s, ok := taskStatuses[strings.ToLower(strings.TrimSpace(remote))]; ok {
		return s
	}

	return StatusTaskUnknown
}

// WorkflowStatus maps a workflow instance state onto the workflow family.
// Unrecognized values map to StatusWorkflowUnknown.
func WorkflowStatus(state string) Status {
	if s, ok := workflowStatuses[strings.ToLower(strings.TrimSpace(state))]; ok {
		return s
	}

	return StatusWorkflowUnknown
}

// IsTask reports whether s belongs to the scaffolder task family.
func (s Status) IsTask() bool {
	return strings.HasPrefix(string(s), "TASK_")
}

// IsWorkflow reports whether s belongs to the workflow family.
func (s Status) IsWorkflow() bool {
	return strings.HasPrefix(string(s), "WORKFLOW_")
}
