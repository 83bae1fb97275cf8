package logs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"integctl/pkg/logging"
)

// FetchFunc returns the complete output of a remote application, if any.
type FetchFunc func(ctx context.Context) (string, error)

// Handle is the log handle owned by one application. Local output is written
// into its sink through phase writers; remote output is either followed into
// the sink or fetched on demand.
type Handle struct {
	app  string
	sink *Sink

	mu     sync.Mutex
	fetch  FetchFunc
	stream *Stream
}

// NewHandle creates the handle for app. console receives a live copy of
// everything written and may be nil.
func NewHandle(app string, console io.Writer) *Handle {
	return &Handle{app: app, sink: NewSink(console)}
}

// App returns the application name.
func (h *Handle) App() string {
	return h.app
}

// Writer returns a writer that tags output with the phase marker.
func (h *Handle) Writer(phase Phase) io.WriteCloser {
	return NewMarkedWriter(h.sink, NewMarker(h.app, phase))
}

// Sink returns the underlying buffer.
func (h *Handle) Sink() *Sink {
	return h.sink
}

// SetSource registers where the complete remote log can be fetched from.
func (h *Handle) SetSource(fetch FetchFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetch = fetch
}

// Follow starts a background stream into the sink. An already running stream
// is stopped first.
func (h *Handle) Follow(follow FollowFunc) {
	h.mu.Lock()
	previous := h.stream
	h.stream = StartStream(follow, h.sink, NewMarker(h.app, ""))
	h.mu.Unlock()
	previous.Stop()
}

// StopStream stops the background stream. A handle that never followed
// anything is fine.
func (h *Handle) StopStream() {
	h.mu.Lock()
	s := h.stream
	h.stream = nil
	h.mu.Unlock()
	s.Stop()
}

// Text returns the application log. A registered remote source wins when it
// answers; otherwise the accumulated sink content is returned.
func (h *Handle) Text(ctx context.Context) string {
	h.mu.Lock()
	fetch := h.fetch
	h.mu.Unlock()

	if fetch != nil {
		text, err := fetch(ctx)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			logging.Debug("Logs", "Falling back to buffered log for %s: %v", h.app, err)
		}
	}
	return h.sink.String()
}

// Save writes the application log to path. Nothing is written when there is
// no output. It reports whether a file was written.
func (h *Handle) Save(ctx context.Context, path string) (bool, error) {
	text := h.Text(ctx)
	if text == "" {
		logging.Debug("Logs", "No log output for %s, nothing to save", h.app)
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create log directory for %s: %w", h.app, err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return false, fmt.Errorf("failed to save log of %s: %w", h.app, err)
	}
	logging.Info("Logs", "Saved log of %s to %s", h.app, path)
	return true, nil
}
