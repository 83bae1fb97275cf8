package logs

import (
	"context"
	"errors"
	"io"
	"sync"

	"integctl/pkg/logging"
)

// FollowFunc copies live output into w until ctx is cancelled or the source
// ends.
type FollowFunc func(ctx context.Context, w io.Writer) error

// Stream is a long-lived background log listener. The zero value is a stream
// that was never started; stopping it is a no-op.
type Stream struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	marker Marker
}

// StartStream runs follow in the background, writing into w under marker m.
func StartStream(follow FollowFunc, w io.Writer, m Marker) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{cancel: cancel, done: make(chan struct{}), marker: m}

	go func() {
		defer close(s.done)
		mw := NewMarkedWriter(w, m)
		defer mw.Close()

		logging.Debug("Logs", "Log stream %s started", m)
		if err := follow(ctx, mw); err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn("Logs", "Log stream %s ended: %v", m, err)
			return
		}
		logging.Debug("Logs", "Log stream %s ended", m)
	}()
	return s
}

// Stop cancels the listener and waits for it to exit. Safe to call on a nil
// or never-started stream and more than once.
func (s *Stream) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the listener is still active.
func (s *Stream) Running() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
