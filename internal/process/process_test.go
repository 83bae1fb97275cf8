package process

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartCapturesOutputAndExit(t *testing.T) {
	var out syncBuffer
	h, err := ExecLauncher{}.Start(Command{
		Name:   "echo",
		Path:   "/bin/sh",
		Args:   []string{"-c", `echo "out $GREETING"; echo err 1>&2; exit 2`},
		Env:    map[string]string{"GREETING": "hello"},
		Output: &out,
	})
	require.NoError(t, err)
	assert.Greater(t, h.PID(), 0)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.True(t, h.Exited())
	assert.Error(t, h.ExitErr())
	assert.Contains(t, out.String(), "out hello\n")
	assert.Contains(t, out.String(), "err\n")

	// Stopping an exited process is fine.
	assert.NoError(t, h.Stop(time.Second))
}

func TestStopRunningProcess(t *testing.T) {
	h, err := Start(Command{Name: "sleeper", Path: "/bin/sh", Args: []string{"-c", "sleep 30"}})
	require.NoError(t, err)
	assert.False(t, h.Exited())
	assert.NoError(t, h.ExitErr())

	require.NoError(t, h.Stop(2*time.Second))
	assert.True(t, h.Exited())
}

func TestStopEscalatesToKill(t *testing.T) {
	h, err := Start(Command{Name: "stubborn", Path: "/bin/sh", Args: []string{"-c", `trap "" TERM; while true; do sleep 0.1; done`}})
	require.NoError(t, err)
	// Give the shell time to install the trap.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, h.Stop(200*time.Millisecond))
	assert.True(t, h.Exited())
}

func TestStartMissingExecutable(t *testing.T) {
	_, err := Start(Command{Name: "missing", Path: "/does/not/exist"})
	assert.Error(t, err)
}

func TestStopNilHandle(t *testing.T) {
	var h *Handle
	assert.NoError(t, h.Stop(time.Second))
}
