package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   Status
	}{
		{"completed", StatusTaskCompleted},
		{"processing", StatusTaskProcessing},
		{"OPEN", StatusTaskOpen},
		{" failed ", StatusTaskFailed},
		{"cancelled", StatusTaskCancelled},
		{"skipped", StatusTaskSkipped},
		{"exploded", StatusTaskUnknown},
		{"", StatusTaskUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.want, TaskStatus(tt.remote))
		})
	}
}

func TestWorkflowStatus(t *testing.T) {
	tests := []struct {
		state string
		want  Status
	}{
		{"ACTIVE", StatusWorkflowActive},
		{"COMPLETED", StatusWorkflowCompleted},
		{"ABORTED", StatusWorkflowAborted},
		{"SUSPENDED", StatusWorkflowSuspended},
		{"ERROR", StatusWorkflowError},
		{"PENDING", StatusWorkflowPending},
		{"RUNNING", StatusWorkflowUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, WorkflowStatus(tt.state))
		})
	}
}

func TestStatusFamilies(t *testing.T) {
	assert.True(t, StatusTaskFetchFailed.IsTask())
	assert.False(t, StatusTaskFetchFailed.IsWorkflow())
	assert.True(t, StatusWorkflowFetchFailed.IsWorkflow())
	assert.False(t, StatusAdded.IsTask())
}

func TestImport_SetPullRequest(t *testing.T) {
	pr := &PullRequest{Number: 7, URL: "https://example.com/pr/7"}

	gh := &Import{ApprovalTool: ApprovalToolGit}
	gh.SetPullRequest(pr)
	assert.NotNil(t, gh.GitHub)
	assert.Nil(t, gh.GitLab)
	assert.Equal(t, pr, gh.PullRequest())

	gl := &Import{ApprovalTool: ApprovalToolGitLab, GitHub: &PullRequestBlock{}}
	gl.SetPullRequest(pr)
	assert.Nil(t, gl.GitHub)
	assert.NotNil(t, gl.GitLab)
	assert.Equal(t, pr, gl.PullRequest())
}
