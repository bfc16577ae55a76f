package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func fakeAPI(t *testing.T) (*client, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/actors", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		_ = json.NewEncoder(w).Encode(map[string]any{"actors": []map[string]any{
			{"id": "amazon", "name": "Amazon Product Scraper", "description": "Products", "required": []string{"searchKeywords"}},
		}})
	})
	mux.HandleFunc("POST /api/v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "amazon", body["actorId"])
		assert.Equal(t, map[string]any{"searchKeywords": []any{"shoes"}}, body["inputData"])
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"taskId": "r1", "status": "queued"})
	})
	mux.HandleFunc("GET /api/v1/task/r1", func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < 3 {
			_ = json.NewEncoder(w).Encode(map[string]any{"taskId": "r1", "state": "STARTED",
				"progress": map[string]any{"processed": 1, "total": 2, "message": "batch"}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"taskId": "r1", "state": "SUCCESS",
			"result": map[string]any{"status": "success", "data": []any{}}})
	})
	mux.HandleFunc("DELETE /api/v1/task/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "r1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"task not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"taskId":"r1","status":"cancelled"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newClient(srv.URL, "k")
	c.pollEvery = 5 * time.Millisecond
	return c, &polls
}

func TestListActors(t *testing.T) {
	c, _ := fakeAPI(t)
	res, err := handleListActors(c)(context.Background(), call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "- amazon: Amazon Product Scraper. Products (required: searchKeywords)")
}

func TestSubmitAcceptsObjectOrJSONText(t *testing.T) {
	c, _ := fakeAPI(t)
	h := handleSubmit(c)

	res, err := h(context.Background(), call(map[string]any{
		"actor_id": "amazon",
		"input":    map[string]any{"searchKeywords": []any{"shoes"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Task r1 queued. Use get_task to follow it.", text(t, res))

	res, err = h(context.Background(), call(map[string]any{
		"actor_id": "amazon",
		"input":    `{"searchKeywords": ["shoes"]}`,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = h(context.Background(), call(map[string]any{"actor_id": "amazon", "input": "{"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestGetTaskWaitsForTerminalState(t *testing.T) {
	c, polls := fakeAPI(t)

	res, err := handleGetTask(c)(context.Background(), call(map[string]any{"task_id": "r1"}))
	require.NoError(t, err)
	assert.Equal(t, "Task r1: STARTED (1/2 batch)", text(t, res))

	res, err = handleGetTask(c)(context.Background(), call(map[string]any{"task_id": "r1", "wait": true}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Task r1: SUCCESS")
	assert.Contains(t, text(t, res), `"status":"success"`)
	assert.Equal(t, int32(3), polls.Load())
}

func TestCancelTask(t *testing.T) {
	c, _ := fakeAPI(t)

	res, err := handleCancel(c)(context.Background(), call(map[string]any{"task_id": "r1"}))
	require.NoError(t, err)
	assert.Equal(t, "Task r1 cancelled.", text(t, res))

	res, err = handleCancel(c)(context.Background(), call(map[string]any{"task_id": "gone"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "[NOT_FOUND] task not found")
}
