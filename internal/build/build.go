// Package build runs build-tool invocations against generated projects.
//
// Every invocation captures stdout and stderr into a log file under the
// request's marker. A non-zero exit is reported as a BuildFailed error that
// carries the log location and is never retried.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"integctl/internal/apperrors"
	"integctl/internal/logs"
	"integctl/pkg/logging"
)

// Request is one build-tool invocation. Generation and packaging are
// separate requests.
type Request struct {
	WorkDir    string
	Goals      []string
	Properties map[string]string
	Profiles   []string
	// Args are passed verbatim after the goals.
	Args    []string
	LogFile string
	Marker  logs.Marker
	// Output receives a marked copy of the output besides the log file,
	// typically the application's log sink. May be nil.
	Output io.Writer
}

// Result describes a finished invocation.
type Result struct {
	LogFile  string
	Duration time.Duration
}

// Invoker executes build requests.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}

// SortedProperties renders properties as name=value pairs in name order.
func SortedProperties(props map[string]string) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+props[k])
	}
	return out
}

// runLogged starts program with args in dir, copies all output into the
// request's log file (and console and output, if set) and waits for it to exit.
func runLogged(ctx context.Context, program string, args []string, req Request, console io.Writer) (Result, error) {
	app := req.Marker.App
	start := time.Now()
	result := Result{LogFile: req.LogFile}

	if req.LogFile == "" {
		return result, apperrors.Newf(apperrors.KindBuild, app, "invoke", "no log file configured for %s", req.Marker)
	}
	if err := os.MkdirAll(filepath.Dir(req.LogFile), 0755); err != nil {
		return result, apperrors.New(apperrors.KindBuild, app, "invoke", fmt.Errorf("failed to create log directory: %w", err))
	}
	logFile, err := os.Create(req.LogFile)
	if err != nil {
		return result, apperrors.New(apperrors.KindBuild, app, "invoke", fmt.Errorf("failed to create log file: %w", err))
	}
	defer logFile.Close()

	writers := []io.Writer{logFile}
	if console != nil {
		writers = append(writers, console)
	}
	if req.Output != nil {
		writers = append(writers, req.Output)
	}
	marked := logs.NewMarkedWriter(io.MultiWriter(writers...), req.Marker)
	defer marked.Close()

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = req.WorkDir
	cmd.Stdout = marked
	cmd.Stderr = marked
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Build tools fork JVMs; take the whole group down.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	logging.Info("Build", "Running %s %v in %s (log: %s)", program, args, req.WorkDir, req.LogFile)
	err = cmd.Run()
	result.Duration = time.Since(start)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("%s exited with code %d", program, exitErr.ExitCode())
		}
		buildErr := apperrors.New(apperrors.KindBuild, app, string(req.Marker.Phase), err)
		buildErr.LogFile = req.LogFile
		return result, buildErr
	}

	logging.Info("Build", "%s finished in %s", req.Marker, result.Duration.Round(time.Millisecond))
	return result, nil
}
