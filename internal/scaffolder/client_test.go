package scaffolder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateAndGetTask(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v2/tasks", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "template:default/import", body["templateRef"])
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"task-1"}`))
	})

	mux.HandleFunc("GET /v2/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"id":%q,"status":"processing","state":{"checkpoints":{
			"v1.task.checkpoint.publish-pull-request":{"status":"success","value":{"remoteUrl":"https://github.com/o/r/pull/4","pullRequestNumber":4}}
		}}}`, r.PathValue("id"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(context.Background(), srv.URL, "secret")

	id, err := c.CreateTask(context.Background(), "template:default/import", map[string]any{"repoUrl": "x"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	task, err := c.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "processing", task.Status)

	pr := task.PublishedPullRequest()
	require.NotNil(t, pr)
	assert.Equal(t, 4, pr.Number)
	assert.Equal(t, "https://github.com/o/r/pull/4", pr.URL)
}

func TestClient_GetTaskNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewClient(context.Background(), srv.URL, "").GetTask(context.Background(), "missing")
	require.Error(t, err)
}

func TestTask_PublishedPullRequest(t *testing.T) {
	var nilTask *Task
	assert.Nil(t, nilTask.PublishedPullRequest())
	assert.Nil(t, (&Task{}).PublishedPullRequest())

	failed := &Task{State: &TaskState{Checkpoints: map[string]Checkpoint{
		"publish-merge-request": {Status: "failed", Value: map[string]any{"mergeRequestIid": "3"}},
	}}}
	assert.Nil(t, failed.PublishedPullRequest())

	gitlab := &Task{State: &TaskState{Checkpoints: map[string]Checkpoint{
		"fetch-base":            {Status: "success"},
		"publish-merge-request": {Status: "success", Value: map[string]any{"mergeRequestIid": "3"}},
	}}}
	pr := gitlab.PublishedPullRequest()
	require.NotNil(t, pr)
	assert.Equal(t, 3, pr.Number)
}

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"event: log",
		`data: {"id":1,"body":{"message":"Registering https://github.com/o/r/blob/main/catalog-info.yaml in the catalog"}}`,
		"",
		"event: log",
		`data: {"id":2,"body":{"message":"done"}}`,
		"",
		"event: completion",
		`data: {"id":3,"body":{"message":"Run completed"}}`,
		"",
		"event: log",
		`data: {"id":4,"body":{"message":"never read"}}`,
		"",
	}, "\n")

	var got []Event

	err := readEvents(strings.NewReader(stream), "t1", func(ev Event) bool {
		got = append(got, ev)
		return ev.Terminal()
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, EventLog, got[0].Type)
	assert.Equal(t, "t1", got[0].TaskID)
	assert.Equal(t, EventCompletion, got[2].Type)
}

func TestReadEvents_EndsWithoutTerminal(t *testing.T) {
	stream := "event: log\ndata: {\"body\":{\"message\":\"hi\"}}\n\n"

	err := readEvents(strings.NewReader(stream), "t1", func(Event) bool { return false })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended before a terminal event")
}

func TestClient_StreamEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/tasks/{id}/eventstream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "event: log\ndata: {\"body\":{\"message\":\"step one\"}}\n\n")
		_, _ = fmt.Fprint(w, "event: completion\ndata: {\"body\":{\"message\":\"ok\"}}\n\n")
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	var types []string

	err := NewClient(context.Background(), srv.URL, "").StreamEvents(context.Background(), "t9", func(ev Event) bool {
		types = append(types, ev.Type)
		return ev.Terminal()
	})
	require.NoError(t, err)
	assert.Equal(t, []string{EventLog, EventCompletion}, types)
}

func TestClient_StreamEventsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var got []Event

	err := NewClient(context.Background(), srv.URL, "").StreamEvents(context.Background(), "t9", func(ev Event) bool {
		got = append(got, ev)
		return true
	})
	require.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EventError, got[0].Type)
	assert.Equal(t, "t9", got[0].TaskID)
}
