package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(value string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(value)); f {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", value)
	}
}

// ExecutorOptions contains options for tool execution
type ExecutorOptions struct {
	Endpoint string
	Format   OutputFormat
	Out      io.Writer
}

// ToolExecutor calls the application tools of a running server and renders
// their results.
type ToolExecutor struct {
	client  *CLIClient
	options ExecutorOptions
}

// NewToolExecutor creates an executor; call Connect before executing tools.
func NewToolExecutor(options ExecutorOptions) *ToolExecutor {
	if options.Format == "" {
		options.Format = OutputFormatTable
	}
	return &ToolExecutor{
		client:  NewCLIClient(options.Endpoint),
		options: options,
	}
}

// Connect establishes the connection to the server.
func (e *ToolExecutor) Connect(ctx context.Context) error {
	if err := e.client.Connect(ctx); err != nil {
		return fmt.Errorf("cannot reach integctl server at %s (is 'integctl serve' running?): %w", e.client.Endpoint(), err)
	}
	return nil
}

// Close closes the connection
func (e *ToolExecutor) Close() error {
	return e.client.Close()
}

// List prints the applications of the server session.
func (e *ToolExecutor) List(ctx context.Context) error {
	text, err := e.client.CallToolText(ctx, "app_list", nil)
	if err != nil {
		return err
	}
	return e.render(text, RenderApplications)
}

// Status prints the detailed status of one application.
func (e *ToolExecutor) Status(ctx context.Context, name string) error {
	text, err := e.client.CallToolText(ctx, "app_status", map[string]interface{}{"name": name})
	if err != nil {
		return err
	}
	return e.render(text, RenderStatus)
}

// Logs prints the captured log of an application, limited to the last tail
// lines when tail is positive.
func (e *ToolExecutor) Logs(ctx context.Context, name string, tail int) error {
	args := map[string]interface{}{"name": name}
	if tail > 0 {
		args["tail"] = tail
	}
	return e.printText(ctx, "app_logs", args)
}

// Endpoint prints the address of a ready application.
func (e *ToolExecutor) Endpoint(ctx context.Context, name string) error {
	return e.printText(ctx, "app_endpoint", map[string]interface{}{"name": name})
}

// Teardown tears an application down.
func (e *ToolExecutor) Teardown(ctx context.Context, name string) error {
	return e.printText(ctx, "app_teardown", map[string]interface{}{"name": name})
}

// Provision starts provisioning the application described by specYAML.
func (e *ToolExecutor) Provision(ctx context.Context, specYAML string) error {
	return e.printText(ctx, "app_provision", map[string]interface{}{"spec": specYAML})
}

func (e *ToolExecutor) printText(ctx context.Context, tool string, args map[string]interface{}) error {
	text, err := e.client.CallToolText(ctx, tool, args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.options.Out, strings.TrimRight(text, "\n"))
	return err
}

func (e *ToolExecutor) render(jsonText string, asTable func(string) (string, error)) error {
	out, err := Format(jsonText, e.options.Format, asTable)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(e.options.Out, out)
	return err
}

// Format converts a JSON tool result into the requested format. asTable
// renders the table format.
func Format(jsonText string, format OutputFormat, asTable func(string) (string, error)) (string, error) {
	switch format {
	case OutputFormatJSON:
		return strings.TrimRight(jsonText, "\n") + "\n", nil
	case OutputFormatYAML:
		var data interface{}
		if err := json.Unmarshal([]byte(jsonText), &data); err != nil {
			return "", fmt.Errorf("failed to parse JSON: %w", err)
		}
		out, err := yaml.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("failed to convert to YAML: %w", err)
		}
		return string(out), nil
	case OutputFormatTable:
		return asTable(jsonText)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	stateColors = map[string]lipgloss.Color{
		"Ready":     lipgloss.Color("10"),
		"Failed":    lipgloss.Color("9"),
		"Deploying": lipgloss.Color("11"),
		"TornDown":  lipgloss.Color("8"),
	}
)

type applicationRow struct {
	Name    string `json:"name"`
	Runtime string `json:"runtime"`
	Target  string `json:"target"`
	State   string `json:"state"`
}

// RenderApplications renders an app_list result as a table.
func RenderApplications(jsonText string) (string, error) {
	var list struct {
		Applications []applicationRow `json:"applications"`
		Total        int              `json:"total"`
	}
	if err := json.Unmarshal([]byte(jsonText), &list); err != nil {
		return "", fmt.Errorf("failed to parse application list: %w", err)
	}
	if len(list.Applications) == 0 {
		return "No applications\n", nil
	}

	rows := make([][]string, 0, len(list.Applications))
	for _, a := range list.Applications {
		rows = append(rows, []string{a.Name, a.Runtime, a.Target, a.State})
	}
	t := newTable().
		Headers("NAME", "RUNTIME", "TARGET", "STATE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 3 {
				if c, ok := stateColors[rows[row][col]]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})
	return fmt.Sprintf("%s\nTotal: %d applications\n", t.String(), list.Total), nil
}

// RenderStatus renders an app_status result as a key/value table. Step
// durations are listed in step order.
func RenderStatus(jsonText string) (string, error) {
	var status map[string]interface{}
	if err := json.Unmarshal([]byte(jsonText), &status); err != nil {
		return "", fmt.Errorf("failed to parse application status: %w", err)
	}

	order := []string{"name", "runtime", "target", "state", "endpoint", "projectDir", "failureReason", "error"}
	var rows [][]string
	for _, key := range order {
		if v, ok := status[key]; ok && v != "" {
			rows = append(rows, []string{key, fmt.Sprintf("%v", v)})
		}
	}
	if durations, ok := status["durations"].(map[string]interface{}); ok {
		for _, step := range sortedSteps(durations) {
			rows = append(rows, []string{"duration." + step, fmt.Sprintf("%v", durations[step])})
		}
	}

	t := newTable().
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return headerStyle
			}
			if rows[row][0] == "state" {
				if c, ok := stateColors[rows[row][1]]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})
	return t.String() + "\n", nil
}

var stepOrder = map[string]int{"generate": 0, "build": 1, "deploy": 2, "wait": 3, "teardown": 4}

func sortedSteps(durations map[string]interface{}) []string {
	steps := make([]string, 0, len(durations))
	for step := range durations {
		steps = append(steps, step)
	}
	sort.Slice(steps, func(i, j int) bool {
		oi, iok := stepOrder[steps[i]]
		oj, jok := stepOrder[steps[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return steps[i] < steps[j]
	})
	return steps
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle)
}
