package logs

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Sink is an append-only, concurrency-safe log buffer. Everything written is
// kept and optionally mirrored to a console writer.
type Sink struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	console io.Writer
}

// NewSink creates a sink. console may be nil.
func NewSink(console io.Writer) *Sink {
	return &Sink{console: console}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Write(p)
	if s.console != nil {
		// Console output is best effort; the buffer is the record.
		_, _ = s.console.Write(p)
	}
	return len(p), nil
}

// String returns the accumulated text.
func (s *Sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Lines returns the accumulated text split into lines.
func (s *Sink) Lines() []string {
	text := strings.TrimRight(s.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Len returns the number of buffered bytes.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}
