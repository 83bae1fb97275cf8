// Package mcpserver exposes a session's applications as MCP tools, so an
// agent can provision, inspect and tear down test applications.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"integctl/internal/lifecycle"
	"integctl/internal/reporting"
	"integctl/internal/spec"
	"integctl/pkg/logging"
)

// Tools implements the application tools over one session.
type Tools struct {
	session *lifecycle.Session
	store   *reporting.StateStore
	// background outlives single tool calls; provisioning runs in it.
	background context.Context
	unique     bool
}

// NewTools creates the tools. store may be nil; status then only reports
// the live state. Provisioning runs in ctx.
func NewTools(ctx context.Context, session *lifecycle.Session, store *reporting.StateStore, unique bool) *Tools {
	return &Tools{session: session, store: store, background: ctx, unique: unique}
}

// ServerTools returns the tools with their handlers.
func (t *Tools) ServerTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool:    mcp.NewTool("app_list", mcp.WithDescription("List the applications of this session with their lifecycle state")),
			Handler: t.HandleList,
		},
		{
			Tool: mcp.NewTool("app_status",
				mcp.WithDescription("Get the lifecycle state, endpoint, failure reason and step durations of an application"),
				mcp.WithString("name", mcp.Required(), mcp.Description("Application name")),
			),
			Handler: t.HandleStatus,
		},
		{
			Tool: mcp.NewTool("app_logs",
				mcp.WithDescription("Get the accumulated build and run log of an application"),
				mcp.WithString("name", mcp.Required(), mcp.Description("Application name")),
				mcp.WithNumber("tail", mcp.Description("Only return the last N lines")),
			),
			Handler: t.HandleLogs,
		},
		{
			Tool: mcp.NewTool("app_endpoint",
				mcp.WithDescription("Resolve the reachable address of a deployed application"),
				mcp.WithString("name", mcp.Required(), mcp.Description("Application name")),
			),
			Handler: t.HandleEndpoint,
		},
		{
			Tool: mcp.NewTool("app_teardown",
				mcp.WithDescription("Save the logs of an application and delete everything it created"),
				mcp.WithString("name", mcp.Required(), mcp.Description("Application name")),
			),
			Handler: t.HandleTeardown,
		},
		{
			Tool: mcp.NewTool("app_provision",
				mcp.WithDescription("Generate, build, deploy and wait for an application described by a YAML spec. Returns immediately; poll app_status"),
				mcp.WithString("spec", mcp.Required(), mcp.Description("Application spec as YAML")),
			),
			Handler: t.HandleProvision,
		},
	}
}

type appSummary struct {
	Name    string `json:"name"`
	Runtime string `json:"runtime"`
	Target  string `json:"target"`
	State   string `json:"state"`
}

type appStatus struct {
	appSummary
	Endpoint      string            `json:"endpoint,omitempty"`
	ProjectDir    string            `json:"projectDir,omitempty"`
	FailureReason string            `json:"failureReason,omitempty"`
	Error         string            `json:"error,omitempty"`
	Durations     map[string]string `json:"durations,omitempty"`
}

func summarize(app *lifecycle.Application) appSummary {
	s := app.Spec()
	return appSummary{Name: s.Name, Runtime: string(s.Runtime), Target: string(s.Target), State: string(app.State())}
}

// HandleList handles the app_list tool call.
func (t *Tools) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	apps := t.session.List()
	summaries := make([]appSummary, 0, len(apps))
	for _, app := range apps {
		summaries = append(summaries, summarize(app))
	}
	return jsonResult(map[string]interface{}{
		"applications": summaries,
		"total":        len(summaries),
	})
}

// HandleStatus handles the app_status tool call.
func (t *Tools) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	app, errResult := t.lookup(req)
	if errResult != nil {
		return errResult, nil
	}

	status := appStatus{
		appSummary:    summarize(app),
		ProjectDir:    app.ProjectDir(),
		FailureReason: app.FailureReason(),
	}
	if err := app.Err(); err != nil {
		status.Error = err.Error()
	}
	if addr, err := app.Endpoint(ctx); err == nil {
		status.Endpoint = addr
	}
	if t.store != nil {
		if snapshot, ok := t.store.Get(app.Name()); ok {
			status.Durations = make(map[string]string, len(snapshot.Durations))
			for step, d := range snapshot.Durations {
				status.Durations[step] = d.Round(time.Millisecond).String()
			}
		}
	}
	return jsonResult(status)
}

// HandleLogs handles the app_logs tool call.
func (t *Tools) HandleLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	app, errResult := t.lookup(req)
	if errResult != nil {
		return errResult, nil
	}

	text := app.LogText(ctx)
	if tail, ok := req.GetArguments()["tail"].(float64); ok && tail > 0 {
		text = tailLines(text, int(tail))
	}
	if text == "" {
		return mcp.NewToolResultText(fmt.Sprintf("No logs captured for '%s' yet", app.Name())), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleEndpoint handles the app_endpoint tool call.
func (t *Tools) HandleEndpoint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	app, errResult := t.lookup(req)
	if errResult != nil {
		return errResult, nil
	}
	addr, err := app.Endpoint(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve endpoint of '%s': %v", app.Name(), err)), nil
	}
	return mcp.NewToolResultText(addr), nil
}

// HandleTeardown handles the app_teardown tool call.
func (t *Tools) HandleTeardown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	if err := t.session.Teardown(ctx, name); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to tear down application: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully tore down application '%s'", name)), nil
}

// HandleProvision handles the app_provision tool call.
func (t *Tools) HandleProvision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("spec")
	if err != nil {
		return mcp.NewToolResultError("spec is required"), nil
	}
	s, err := spec.Parse([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid spec: %v", err)), nil
	}
	if t.unique {
		s = s.WithUniqueName()
	}

	app, err := t.session.Create(s)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create application: %v", err)), nil
	}
	go func() {
		if err := app.Start(t.background); err != nil {
			logging.Error("MCP", err, "Provisioning %s failed", app.Name())
		}
	}()
	return mcp.NewToolResultText(fmt.Sprintf("Provisioning application '%s'", app.Name())), nil
}

func (t *Tools) lookup(req mcp.CallToolRequest) (*lifecycle.Application, *mcp.CallToolResult) {
	name, err := req.RequireString("name")
	if err != nil {
		return nil, mcp.NewToolResultError("name is required")
	}
	app, ok := t.session.Get(name)
	if !ok {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Application not found: %s", name))
	}
	return app, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func tailLines(text string, n int) string {
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "")
}
