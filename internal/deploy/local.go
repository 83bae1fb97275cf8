package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"integctl/internal/apperrors"
	"integctl/internal/health"
	"integctl/internal/logs"
	"integctl/internal/process"
	"integctl/internal/spec"
	"integctl/internal/wait"
	"integctl/pkg/logging"
)

// LocalConfig configures the local process target.
type LocalConfig struct {
	JavaCommand    string
	Port           int
	StopTimeout    time.Duration
	CleanArtifacts bool
	AppVersion     string
	Native         bool
	Policy         wait.Policy
}

// Startup lines the runtimes log once they accept work.
var startupLines = map[spec.Runtime]*regexp.Regexp{
	spec.RuntimeQuarkus:    regexp.MustCompile(`started in [0-9.]+s`),
	spec.RuntimeSpringBoot: regexp.MustCompile(`Started \S+ in [0-9.]+ seconds`),
}

// portProperties set the HTTP port per runtime.
var portProperties = map[spec.Runtime]string{
	spec.RuntimeQuarkus:    "quarkus.http.port",
	spec.RuntimeSpringBoot: "server.port",
}

// Local runs the application as a managed process on this machine.
type Local struct {
	cfg      LocalConfig
	launcher process.Launcher

	mu         sync.Mutex
	name       string
	runtime    spec.Runtime
	projectDir string
	handle     *process.Handle
	output     io.WriteCloser
	logs       *logs.Handle
	checker    health.Checker
}

var _ Target = (*Local)(nil)

// NewLocal creates a local target.
func NewLocal(cfg LocalConfig, launcher process.Launcher) *Local {
	if launcher == nil {
		launcher = process.ExecLauncher{}
	}
	return &Local{cfg: cfg, launcher: launcher}
}

// Kind implements Target.
func (l *Local) Kind() spec.Target {
	return spec.TargetLocal
}

// WaitPolicy implements Target.
func (l *Local) WaitPolicy() wait.Policy {
	return l.cfg.Policy
}

// ArtifactPath returns the runnable artifact the build produces for s.
func ArtifactPath(s spec.ApplicationSpec, projectDir, version string, native bool) string {
	if s.ExistingArtifact != "" {
		return s.ExistingArtifact
	}
	target := filepath.Join(projectDir, "target")
	switch {
	case s.Git != nil && s.Git.Artifact != "":
		return filepath.Join(projectDir, filepath.FromSlash(s.Git.Artifact))
	case s.Git != nil:
		// A cloned project names its jar after its own artifact id.
		if jar := builtJar(target); jar != "" {
			return jar
		}
		return filepath.Join(target, fmt.Sprintf("%s-%s.jar", s.Name, version))
	case s.Runtime == spec.RuntimeQuarkus && native:
		return filepath.Join(target, fmt.Sprintf("%s-%s-runner", s.Name, version))
	case s.Runtime == spec.RuntimeQuarkus:
		return filepath.Join(target, "quarkus-app", "quarkus-run.jar")
	default:
		return filepath.Join(target, fmt.Sprintf("%s-%s.jar", s.Name, version))
	}
}

// builtJar returns the first runnable jar in dir, skipping attached
// artifacts.
func builtJar(dir string) string {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.jar"))
	sort.Strings(matches)
	for _, m := range matches {
		base := filepath.Base(m)
		if strings.HasSuffix(base, "-sources.jar") || strings.HasSuffix(base, "-javadoc.jar") || strings.HasSuffix(base, "-tests.jar") {
			continue
		}
		return m
	}
	return ""
}

// defaultPort is where both runtimes listen when no port is set.
const defaultPort = 8080

// ListenPort returns the HTTP port the launched application listens on: the
// spec's port property wins over the configured port.
func ListenPort(cfg LocalConfig, s spec.ApplicationSpec) int {
	if key, ok := portProperties[s.Runtime]; ok {
		if v, set := s.Properties[key]; set {
			if port, err := strconv.Atoi(v); err == nil && port > 0 {
				return port
			}
		}
	}
	if cfg.Port > 0 {
		return cfg.Port
	}
	return defaultPort
}

// LaunchCommand assembles the command line that runs artifact. Every spec
// property becomes a -Dname=value argument; the HTTP port is added unless
// the spec sets it.
func LaunchCommand(cfg LocalConfig, s spec.ApplicationSpec, artifact string) (string, []string) {
	props := make(map[string]string, len(s.Properties)+1)
	for k, v := range s.Properties {
		props[k] = v
	}
	if key, ok := portProperties[s.Runtime]; ok && cfg.Port > 0 {
		if _, set := props[key]; !set {
			props[key] = strconv.Itoa(cfg.Port)
		}
	}

	var args []string
	for _, k := range sortedKeys(props) {
		args = append(args, "-D"+k+"="+props[k])
	}
	if s.Runtime == spec.RuntimeQuarkus && cfg.Native && s.ExistingArtifact == "" {
		return artifact, args
	}
	java := cfg.JavaCommand
	if java == "" {
		java = "java"
	}
	return java, append(args, "-jar", artifact)
}

// Deploy launches the built artifact.
func (l *Local) Deploy(ctx context.Context, req Request) (Endpoint, error) {
	s := req.Spec
	artifact := ArtifactPath(s, req.ProjectDir, l.cfg.AppVersion, l.cfg.Native)
	if _, err := os.Stat(artifact); err != nil {
		return Unresolved(), apperrors.New(apperrors.KindDeploy, s.Name, "locate artifact", err)
	}

	path, args := LaunchCommand(l.cfg, s, artifact)
	var output io.WriteCloser
	if req.Logs != nil {
		output = req.Logs.Writer(logs.PhaseRun)
	}

	cmd := process.Command{Name: s.Name, Path: path, Args: args, Dir: req.ProjectDir}
	if output != nil {
		cmd.Output = output
	}
	logging.Info("Deploy", "Starting %s locally: %s %v", s.Name, path, args)
	handle, err := l.launcher.Start(cmd)
	if err != nil {
		return Unresolved(), apperrors.New(apperrors.KindDeploy, s.Name, "start process", err)
	}

	address := fmt.Sprintf("http://localhost:%d", ListenPort(l.cfg, s))
	l.mu.Lock()
	l.name = s.Name
	l.runtime = s.Runtime
	l.projectDir = ""
	if s.ExistingArtifact == "" {
		l.projectDir = req.ProjectDir
	}
	l.handle = handle
	l.output = output
	l.logs = req.Logs
	l.checker = health.NewHTTPChecker(address)
	l.mu.Unlock()

	return Fixed(address), nil
}

// Ready reports whether the process is running and either answers on its
// endpoint or has logged its startup line.
func (l *Local) Ready(ctx context.Context) bool {
	l.mu.Lock()
	handle, checker, logHandle, runtime := l.handle, l.checker, l.logs, l.runtime
	l.mu.Unlock()

	if handle == nil || handle.Exited() {
		return false
	}
	if health.Responds(ctx, checker) {
		return true
	}
	if logHandle == nil {
		return false
	}
	if line, ok := startupLines[runtime]; ok {
		return line.MatchString(logHandle.Sink().String())
	}
	return false
}

// Failed reports whether the process exited on its own.
func (l *Local) Failed(context.Context) (bool, string) {
	l.mu.Lock()
	handle := l.handle
	l.mu.Unlock()

	if handle == nil || !handle.Exited() {
		return false, ""
	}
	if err := handle.ExitErr(); err != nil {
		return true, fmt.Sprintf("process exited: %v", err)
	}
	return true, "process exited"
}

// Teardown stops the process and removes the build output.
func (l *Local) Teardown(context.Context) {
	l.mu.Lock()
	handle, output, name, projectDir := l.handle, l.output, l.name, l.projectDir
	l.handle = nil
	l.output = nil
	l.mu.Unlock()

	if handle != nil {
		timeout := l.cfg.StopTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		if err := handle.Stop(timeout); err != nil {
			logging.Error("Teardown", apperrors.New(apperrors.KindTeardown, name, "stop process", err), "Failed to stop %s", name)
		}
	}
	if output != nil {
		_ = output.Close()
	}

	if l.cfg.CleanArtifacts && projectDir != "" {
		target := filepath.Join(projectDir, "target")
		if err := os.RemoveAll(target); err != nil {
			logging.Error("Teardown", apperrors.New(apperrors.KindTeardown, name, "clean artifacts", err), "Failed to remove %s", target)
		} else {
			logging.Debug("Teardown", "Removed %s", target)
		}
	}
}
