package model

import "time"

// ApprovalTool identifies which provider family owns a repository's import.
type ApprovalTool string

const (
	ApprovalToolGit    ApprovalTool = "GIT"
	ApprovalToolGitLab ApprovalTool = "GITLAB"
)

// Valid reports whether the tool is one of the known approval tools.
func (a ApprovalTool) Valid() bool {
	return a == ApprovalToolGit || a == ApprovalToolGitLab
}

// Source tags where a discovered import came from.
type Source string

const (
	SourceConfig      Source = "config"
	SourceLocation    Source = "location"
	SourceIntegration Source = "integration"
	SourceUnknown     Source = ""
)

// RepositoryInfo describes the repository an import targets.
type RepositoryInfo struct {
	URL           string `json:"url,omitempty"`
	Name          string `json:"name,omitempty"`
	Organization  string `json:"organization,omitempty"`
	ID            string `json:"id,omitempty"`
	DefaultBranch string `json:"defaultBranch,omitempty"`
}

// PullRequest is the provider-neutral view of an import pull/merge request.
type PullRequest struct {
	Number             int        `json:"number,omitempty"`
	URL                string     `json:"url,omitempty"`
	Title              string     `json:"title,omitempty"`
	Body               string     `json:"body,omitempty"`
	Branch             string     `json:"branch,omitempty"`
	HeadSHA            string     `json:"headSha,omitempty"`
	Merged             bool       `json:"merged,omitempty"`
	Open               bool       `json:"open,omitempty"`
	CatalogInfoContent string     `json:"catalogInfoContent,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// PullRequestBlock wraps a pull request under a provider-specific key.
type PullRequestBlock struct {
	PullRequest *PullRequest `json:"pullRequest,omitempty"`
}

// TaskRef points at the scaffolder task driving an import.
type TaskRef struct {
	TaskID string `json:"taskId"`
}

// TaskLocationInfo is a catalog location reported by a running task.
type TaskLocationInfo struct {
	Location string `json:"location"`
	Type     string `json:"type"`
}

// TaskRecord is a historical scaffolder task with the locations it registered.
type TaskRecord struct {
	TaskID     string             `json:"taskId"`
	ExecutedAt *time.Time         `json:"executedAt,omitempty"`
	Locations  []TaskLocationInfo `json:"locations,omitempty"`
}

// WorkflowRef points at the workflow instance driving an import.
type WorkflowRef struct {
	WorkflowID string `json:"workflowId"`
}

// WorkflowRecord is a historical workflow instance launched for a repository.
type WorkflowRecord struct {
	WorkflowID string     `json:"workflowId"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

// Import is the derived per-repository record of catalog registration progress.
type Import struct {
	ID                string            `json:"id"`
	Repository        *RepositoryInfo   `json:"repository,omitempty"`
	ApprovalTool      ApprovalTool      `json:"approvalTool,omitempty"`
	CatalogEntityName string            `json:"catalogEntityName,omitempty"`
	Status            Status            `json:"status,omitempty"`
	LastUpdate        *time.Time        `json:"lastUpdate,omitempty"`
	Errors            []string          `json:"errors,omitempty"`
	Task              *TaskRef          `json:"task,omitempty"`
	Tasks             []TaskRecord      `json:"tasks,omitempty"`
	Workflow          *WorkflowRef      `json:"workflow,omitempty"`
	Workflows         []WorkflowRecord  `json:"workflows,omitempty"`
	GitHub            *PullRequestBlock `json:"github,omitempty"`
	GitLab            *PullRequestBlock `json:"gitlab,omitempty"`
	Source            Source            `json:"source,omitempty"`
}

// SetPullRequest attaches pr under the block matching the import's approval tool
// and clears the other one.
func (i *Import) SetPullRequest(pr *PullRequest) {
	block := &PullRequestBlock{PullRequest: pr}

	switch i.ApprovalTool {
	case ApprovalToolGitLab:
		i.GitLab, i.GitHub = block, nil
	default:
		i.GitHub, i.GitLab = block, nil
	}
}

// PullRequest returns the pull request attached to the import, if any.
func (i *Import) PullRequest() *PullRequest {
	switch {
	case i.GitHub != nil:
		return i.GitHub.PullRequest
	case i.GitLab != nil:
		return i.GitLab.PullRequest
	}

	return nil
}

// AddError records a failure message on the import.
func (i *Import) AddError(err error) {
	if err != nil {
		i.Errors = append(i.Errors, err.Error())
	}
}

// ImportRequest is one entry of a bulk import submission.
type ImportRequest struct {
	ApprovalTool                ApprovalTool      `json:"approvalTool,omitempty"`
	CatalogEntityName           string            `json:"catalogEntityName,omitempty"`
	CodeOwnersFileAsEntityOwner bool              `json:"codeOwnersFileAsEntityOwner,omitempty"`
	Repository                  RepositoryInfo    `json:"repository"`
	CatalogInfoContent          string            `json:"catalogInfoContent,omitempty"`
	GitHub                      *PullRequestBlock `json:"github,omitempty"`
	GitLab                      *PullRequestBlock `json:"gitlab,omitempty"`
}

// PullRequest returns the pull request details carried by the request, if any.
func (r *ImportRequest) PullRequest() *PullRequest {
	switch {
	case r.GitLab != nil && r.GitLab.PullRequest != nil:
		return r.GitLab.PullRequest
	case r.GitHub != nil:
		return r.GitHub.PullRequest
	}

	return nil
}

// Location is a catalog location registered for import discovery.
type Location struct {
	ID     string `json:"id,omitempty"`
	Target string `json:"target"`
	Source Source `json:"source,omitempty"`
}

// ListOptions carries caller-selected search, sort and paging for a listing.
type ListOptions struct {
	Search     string
	Page       int
	Size       int
	SortColumn string
	SortOrder  string
}
