package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"integctl/pkg/logging"
)

var (
	appStyle      = lipgloss.NewStyle().Bold(true)
	readyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// ConsoleReporter prints one styled line per update and logs it via
// pkg/logging. Step outcomes without a transition are only printed when
// they carry an error.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// Report implements Reporter.
func (c *ConsoleReporter) Report(update Update) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	subsystem := "Lifecycle-" + update.App

	switch {
	case update.Err != nil:
		logging.Error(subsystem, update.Err, "%s failed in state %s", stepName(update), update.State)
	case update.Transition():
		logging.Info(subsystem, "State: %s -> %s (%s)", update.Previous, update.State, update.Duration.Round(time.Millisecond))
	default:
		logging.Debug(subsystem, "%s completed in state %s", stepName(update), update.State)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, FormatUpdate(update))
}

// FormatUpdate renders update as a single styled line.
func FormatUpdate(update Update) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render(update.Timestamp.Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(appStyle.Render(update.App))
	b.WriteString(" ")
	b.WriteString(stateStyle(update).Render(string(update.State)))
	if update.Duration > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf(" (%s)", update.Duration.Round(time.Millisecond))))
	}
	if update.Endpoint != "" {
		b.WriteString(" " + update.Endpoint)
	}
	if update.Message != "" {
		b.WriteString(" " + update.Message)
	}
	if update.Err != nil {
		b.WriteString(" " + failedStyle.Render(update.Err.Error()))
	}
	return b.String()
}

func stateStyle(update Update) lipgloss.Style {
	switch {
	case update.Err != nil, update.State == StateFailed:
		return failedStyle
	case update.State == StateReady:
		return readyStyle
	case update.State == StateTornDown:
		return mutedStyle
	default:
		return progressStyle
	}
}

func stepName(update Update) string {
	if update.Step == "" {
		return "step"
	}
	return update.Step
}
