// Command harvest-mcp exposes the harvest API as MCP tools over stdio.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("HARVEST_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	c := newClient(strings.TrimRight(apiURL, "/"), os.Getenv("HARVEST_API_KEY"))

	if err := server.ServeStdio(newServer(c)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *client) *server.MCPServer {
	s := server.NewMCPServer(
		"harvest",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("list_actors",
		mcp.WithDescription("List the scrapers (actors) this service can run, with their input fields."),
	), handleListActors(c))

	s.AddTool(mcp.NewTool("submit_scrape",
		mcp.WithDescription("Queue a scrape task for an actor. Returns the task id to poll with get_task."),
		mcp.WithString("actor_id",
			mcp.Required(),
			mcp.Description("Actor to run, e.g. 'google-maps', 'amazon', 'website'"),
		),
		mcp.WithObject("input",
			mcp.Description("Actor input, e.g. {\"searchTerms\": [\"plumbers\"], \"location\": \"Austin\"}"),
		),
		mcp.WithString("run_id",
			mcp.Description("Optional correlation id; becomes the task id"),
		),
	), handleSubmit(c))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a task's state, progress and result. With wait=true, blocks until the task finishes."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id returned by submit_scrape"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Poll until the task is SUCCESS or FAILURE (default: false)"),
		),
		mcp.WithNumber("timeout_seconds",
			mcp.Description("Maximum time to wait (default: 600)"),
		),
	), handleGetTask(c))

	s.AddTool(mcp.NewTool("cancel_task",
		mcp.WithDescription("Cancel a queued or running task."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id to cancel"),
		),
	), handleCancel(c))

	return s
}

func handleListActors(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp struct {
			Actors []struct {
				ID          string   `json:"id"`
				Name        string   `json:"name"`
				Description string   `json:"description"`
				Required    []string `json:"required"`
			} `json:"actors"`
		}
		if err := c.do(ctx, http.MethodGet, "/api/v1/actors", nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		for _, a := range resp.Actors {
			fmt.Fprintf(&sb, "- %s: %s. %s", a.ID, a.Name, a.Description)
			if len(a.Required) > 0 {
				fmt.Fprintf(&sb, " (required: %s)", strings.Join(a.Required, ", "))
			}
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleSubmit(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		actorID, err := request.RequireString("actor_id")
		if err != nil {
			return mcp.NewToolResultError("actor_id is required"), nil
		}
		input := map[string]any{}
		switch v := request.GetArguments()["input"].(type) {
		case map[string]any:
			input = v
		case string:
			// Some clients send objects as JSON text.
			if err := json.Unmarshal([]byte(v), &input); err != nil {
				return mcp.NewToolResultError("input must be a JSON object"), nil
			}
		}

		payload := map[string]any{
			"actorId":   actorID,
			"inputData": input,
			"runId":     request.GetString("run_id", ""),
		}
		var resp struct {
			TaskID string `json:"taskId"`
			Status string `json:"status"`
		}
		if err := c.do(ctx, http.MethodPost, "/api/v1/scrape", payload, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task %s %s. Use get_task to follow it.", resp.TaskID, resp.Status)), nil
	}
}

func handleGetTask(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError("task_id is required"), nil
		}

		var st taskStatus
		if request.GetBool("wait", false) {
			timeout := time.Duration(request.GetFloat("timeout_seconds", 600) * float64(time.Second))
			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			st, err = c.waitTask(waitCtx, id)
			if errors.Is(err, context.DeadlineExceeded) {
				return mcp.NewToolResultText(formatStatus(st) + "\n(still running after timeout)"), nil
			}
		} else {
			err = c.do(ctx, http.MethodGet, "/api/v1/task/"+id, nil, &st)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatStatus(st)), nil
	}
}

func handleCancel(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError("task_id is required"), nil
		}
		if err := c.do(ctx, http.MethodDelete, "/api/v1/task/"+id, nil, nil); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cancel failed: %v", err)), nil
		}
		return mcp.NewToolResultText("Task " + id + " cancelled."), nil
	}
}

func formatStatus(st taskStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %s: %s", st.TaskID, st.State)
	if st.Progress != nil {
		fmt.Fprintf(&sb, " (%d/%d %s)", st.Progress.Processed, st.Progress.Total, st.Progress.Message)
	}
	if st.Error != "" {
		fmt.Fprintf(&sb, "\nError: %s", st.Error)
	}
	if len(st.Result) > 0 {
		sb.WriteString("\n\n")
		sb.Write(st.Result)
	}
	return sb.String()
}
