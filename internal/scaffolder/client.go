// Package scaffolder is a client for the task-execution API and a supervisor
// for the background consumers of task event streams.
package scaffolder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/restclient"
)

// Event types emitted on a task event stream.
const (
	EventLog        = "log"
	EventCompletion = "completion"
	EventCancelled  = "cancelled"
	EventError      = "error"
)

// Task is a snapshot of a scaffolder task.
type Task struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	LastHeartbeatAt *time.Time `json:"lastHeartbeatAt,omitempty"`
	State           *TaskState `json:"state,omitempty"`
}

// TaskState is the internal state a task persists between steps.
type TaskState struct {
	Checkpoints map[string]Checkpoint `json:"checkpoints,omitempty"`
}

// Checkpoint is one recorded step outcome.
type Checkpoint struct {
	Status string         `json:"status"`
	Reason string         `json:"reason,omitempty"`
	Value  map[string]any `json:"value,omitempty"`
}

// PublishedPR is the pull or merge request a task's publish step opened.
type PublishedPR struct {
	Number  int
	URL     string
	HeadSHA string
}

// PublishedPullRequest scans the checkpoints for a successful publish step that
// opened a pull or merge request.
func (t *Task) PublishedPullRequest() *PublishedPR {
	if t == nil || t.State == nil {
		return nil
	}

	for key, cp := range t.State.Checkpoints {
		k := strings.ToLower(key)
		if !strings.Contains(k, "publish") ||
			!(strings.Contains(k, "pull-request") || strings.Contains(k, "merge-request")) {
			continue
		}

		if cp.Status != "" && cp.Status != "success" {
			continue
		}

		pr := &PublishedPR{
			Number:  intValue(cp.Value, "pullRequestNumber", "mergeRequestIid", "prNumber", "number"),
			URL:     stringValue(cp.Value, "remoteUrl", "pullRequestUrl", "mergeRequestUrl", "url"),
			HeadSHA: stringValue(cp.Value, "headSha", "sha", "commitHash"),
		}

		if pr.Number > 0 || pr.URL != "" {
			return pr
		}
	}

	return nil
}

// Event is one entry of a task event stream.
type Event struct {
	ID     int64  `json:"id,omitempty"`
	TaskID string `json:"taskId,omitempty"`
	Type   string `json:"type"`
	Body   struct {
		Message string `json:"message,omitempty"`
		StepID  string `json:"stepId,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"body"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Terminal reports whether the stream ends after this event.
func (e Event) Terminal() bool {
	return e.Type == EventCompletion || e.Type == EventCancelled || e.Type == EventError
}

// Client talks to the scaffolder task API.
type Client struct {
	rest *restclient.Client
}

// NewClient returns a scaffolder client rooted at baseURL.
func NewClient(ctx context.Context, baseURL, token string) *Client {
	return &Client{rest: restclient.New(ctx, "scaffolder", baseURL, token)}
}

// CreateTask submits a task for templateRef and returns its id.
func (c *Client) CreateTask(ctx context.Context, templateRef string, values map[string]any) (string, error) {
	var out struct {
		ID string `json:"id"`
	}

	body := map[string]any{"templateRef": templateRef, "values": values}
	if err := c.rest.Do(ctx, http.MethodPost, "/v2/tasks", body, &out); err != nil {
		return "", fmt.Errorf("failed to create scaffolder task: %w", err)
	}

	if out.ID == "" {
		return "", fmt.Errorf("scaffolder returned no task id")
	}

	return out.ID, nil
}

// GetTask returns the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task

	if err := c.rest.Do(ctx, http.MethodGet, "/v2/tasks/"+url.PathEscape(taskID), nil, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

// StreamEvents reads the task's event stream and passes every event to fn
// until fn returns true, the stream ends or ctx is cancelled. A failed or
// interrupted stream is reported to fn as a synthetic error event.
func (c *Client) StreamEvents(ctx context.Context, taskID string, fn func(Event) bool) error {
	req, err := c.rest.NewRequest(ctx, http.MethodGet, "/v2/tasks/"+url.PathEscape(taskID)+"/eventstream", nil)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.rest.SendStream(req)
	if err != nil {
		fn(syntheticError(taskID, err))
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if err := readEvents(resp.Body, taskID, fn); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fn(syntheticError(taskID, err))

		return err
	}

	return nil
}

func readEvents(r io.Reader, taskID string, fn func(Event) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		eventType string
		data      strings.Builder
	)

	dispatch := func() bool {
		defer func() {
			eventType = ""
			data.Reset()
		}()

		if data.Len() == 0 {
			return false
		}

		var ev Event
		if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
			ev.Body.Message = data.String()
		}

		if eventType != "" {
			ev.Type = eventType
		}

		if ev.TaskID == "" {
			ev.TaskID = taskID
		}

		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if dispatch() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}

			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	if dispatch() {
		return nil
	}

	return fmt.Errorf("event stream of task %s ended before a terminal event", taskID)
}

func syntheticError(taskID string, err error) Event {
	ev := Event{TaskID: taskID, Type: EventError}
	ev.Body.Message = err.Error()

	return ev
}

func stringValue(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}

	return ""
}

func intValue(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}

	return 0
}
