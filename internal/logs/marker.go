// Package logs correlates build-time and run-time output of an application
// under per-application markers, keeps it for later inspection, follows
// remote workload output in the background and persists it before teardown.
package logs

import (
	"bytes"
	"io"
	"path/filepath"
	"sync"
)

// Phase is the lifecycle stage that produced a piece of output.
type Phase string

const (
	PhaseGenerate Phase = "generate"
	PhaseBuild    Phase = "build"
	PhaseDeploy   Phase = "deploy"
	PhaseRun      Phase = "run"
)

// Marker tags output so that interleaved logs of concurrent applications can
// be told apart after the fact.
type Marker struct {
	App   string
	Phase Phase
}

// NewMarker returns the marker for an application phase. An empty phase
// marks the application as a whole.
func NewMarker(app string, phase Phase) Marker {
	return Marker{App: app, Phase: phase}
}

func (m Marker) String() string {
	if m.Phase == "" {
		return m.App
	}
	return m.App + "-" + string(m.Phase)
}

// Prefix is prepended to every line written under the marker.
func (m Marker) Prefix() string {
	return "[" + m.String() + "] "
}

// PhaseLogPath is where output of one phase is captured.
func PhaseLogPath(appLocation, app string, phase Phase) string {
	return filepath.Join(appLocation, NewMarker(app, phase).String()+".log")
}

// SavedLogPath is where the accumulated application log is flushed at teardown.
func SavedLogPath(appLocation, app string) string {
	return filepath.Join(appLocation, app+".log")
}

// markedWriter prefixes every complete line with the marker. A trailing
// partial line is held back until the next write or Close.
type markedWriter struct {
	mu     sync.Mutex
	out    io.Writer
	prefix []byte
	buf    bytes.Buffer
}

// NewMarkedWriter wraps out so that each line written is tagged with m.
func NewMarkedWriter(out io.Writer, m Marker) io.WriteCloser {
	return &markedWriter{out: out, prefix: []byte(m.Prefix())}
}

func (w *markedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := w.buf.Next(idx + 1)
		if err := w.emit(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

func (w *markedWriter) emit(line []byte) error {
	out := make([]byte, 0, len(w.prefix)+len(line))
	out = append(out, w.prefix...)
	out = append(out, line...)
	_, err := w.out.Write(out)
	return err
}

// Close flushes a pending partial line.
func (w *markedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	line := append(w.buf.Bytes(), '\n')
	w.buf.Reset()
	return w.emit(line)
}
