// Package process launches and stops local application processes. Each
// process runs in its own process group so that stopping it also stops any
// children it forked.
package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"integctl/pkg/logging"
)

// Command describes a process to launch.
type Command struct {
	// Name labels the process in logs.
	Name string
	Path string
	Args []string
	Env  map[string]string
	Dir  string
	// Output receives stdout and stderr line by line. May be nil.
	Output io.Writer
}

// Launcher starts processes.
type Launcher interface {
	Start(cmd Command) (*Handle, error)
}

// ExecLauncher starts real operating system processes.
type ExecLauncher struct{}

// Start implements Launcher.
func (ExecLauncher) Start(cmd Command) (*Handle, error) {
	return Start(cmd)
}

// Handle is a running (or exited) managed process.
type Handle struct {
	name string
	pid  int
	done chan struct{}

	mu      sync.Mutex
	exitErr error
	stopped bool
}

// Start launches the command and returns once the process is running.
func Start(c Command) (*Handle, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %s: %w", c.Name, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdoutPipe.Close()
		return nil, fmt.Errorf("stderr pipe for %s: %w", c.Name, err)
	}

	if err := cmd.Start(); err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		return nil, fmt.Errorf("failed to start %s (%s %v): %w", c.Name, c.Path, c.Args, err)
	}

	h := &Handle{name: c.Name, pid: cmd.Process.Pid, done: make(chan struct{})}
	logging.Info("Process", "Started %s (PID %d)", c.Name, h.pid)

	var copiers sync.WaitGroup
	for _, pipe := range []io.Reader{stdoutPipe, stderrPipe} {
		copiers.Add(1)
		go func(r io.Reader) {
			defer copiers.Done()
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				if c.Output != nil {
					fmt.Fprintln(c.Output, scanner.Text())
				}
			}
		}(pipe)
	}

	go func() {
		// Pipes must be drained before Wait closes them.
		copiers.Wait()
		err := cmd.Wait()

		h.mu.Lock()
		h.exitErr = err
		stopped := h.stopped
		h.mu.Unlock()

		if err != nil && !stopped {
			logging.Warn("Process", "%s (PID %d) exited: %v", c.Name, h.pid, err)
		} else {
			logging.Debug("Process", "%s (PID %d) exited", c.Name, h.pid)
		}
		close(h.done)
	}()

	return h, nil
}

// PID returns the process id.
func (h *Handle) PID() int {
	return h.pid
}

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the result of waiting on the process. It is nil while the
// process runs or when it exited cleanly.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Stop sends SIGTERM to the process group and escalates to SIGKILL if it has
// not exited within timeout. Stopping an exited process is a no-op.
func (h *Handle) Stop(timeout time.Duration) error {
	if h == nil || h.Exited() {
		return nil
	}
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	if err := syscall.Kill(-h.pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to signal %s (PID %d): %w", h.name, h.pid, err)
	}
	select {
	case <-h.done:
		logging.Info("Process", "Stopped %s (PID %d)", h.name, h.pid)
		return nil
	case <-time.After(timeout):
	}

	logging.Warn("Process", "%s (PID %d) did not stop within %s, killing it", h.name, h.pid, timeout)
	if err := syscall.Kill(-h.pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to kill %s (PID %d): %w", h.name, h.pid, err)
	}
	<-h.done
	return nil
}
