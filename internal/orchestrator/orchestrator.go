// Package orchestrator is a client for the workflow engine that performs
// imports in orchestrator mode.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/restclient"
)

// Instance is the current state of a workflow instance.
type Instance struct {
	ID         string         `json:"id"`
	ProcessID  string         `json:"processId,omitempty"`
	State      string         `json:"state"`
	Start      *time.Time     `json:"start,omitempty"`
	End        *time.Time     `json:"end,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
	BusinessID string         `json:"businessKey,omitempty"`
}

// AuthToken is a provider token forwarded to the workflow.
type AuthToken struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// Inputs are the parameters of an import workflow run.
type Inputs struct {
	Owner        string `json:"owner"`
	Repo         string `json:"repo"`
	BaseBranch   string `json:"baseBranch"`
	TargetBranch string `json:"targetBranch"`
	ApprovalTool string `json:"approvalTool"`
}

// Client talks to the workflow engine API.
type Client struct {
	rest *restclient.Client
}

// NewClient returns a workflow engine client rooted at baseURL.
func NewClient(ctx context.Context, baseURL, token string) *Client {
	return &Client{rest: restclient.New(ctx, "orchestrator", baseURL, token)}
}

// Execute starts workflowID and returns the new instance id.
func (c *Client) Execute(ctx context.Context, workflowID string, inputs Inputs, tokens []AuthToken) (string, error) {
	if workflowID == "" {
		return "", errors.New("no workflow id configured")
	}

	body := map[string]any{
		"inputData":  inputs,
		"authTokens": tokens,
	}

	var out struct {
		ID string `json:"id"`
	}

	path := "/v2/workflows/" + url.PathEscape(workflowID) + "/execute"
	if err := c.rest.Do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", fmt.Errorf("failed to execute workflow %s: %w", workflowID, err)
	}

	if out.ID == "" {
		return "", fmt.Errorf("workflow %s returned no instance id", workflowID)
	}

	return out.ID, nil
}

// GetInstance returns the current state of an instance.
func (c *Client) GetInstance(ctx context.Context, instanceID string) (*Instance, error) {
	var out struct {
		Instance Instance `json:"instance"`
	}

	path := "/v2/workflows/instances/" + url.PathEscape(instanceID)
	if err := c.rest.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch workflow instance %s: %w", instanceID, err)
	}

	if out.Instance.ID == "" {
		out.Instance.ID = instanceID
	}

	return &out.Instance, nil
}
