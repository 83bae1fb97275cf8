package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := New(KindBuild, "demo", "clean package", errors.New("exit status 1"))
	err.LogFile = "/tmp/demo-build.log"

	wrapped := fmt.Errorf("lifecycle: %w", err)

	assert.True(t, errors.Is(wrapped, ErrBuild))
	assert.False(t, errors.Is(wrapped, ErrDeploy))
	assert.False(t, errors.Is(wrapped, ErrWaitTimeout))
	assert.Equal(t, KindBuild, KindOf(wrapped))
	assert.Equal(t, "/tmp/demo-build.log", LogFileOf(wrapped))
}

func TestError_Message(t *testing.T) {
	err := Newf(KindDeploy, "demo", "start", "port %d busy", 8080)
	err.LogFile = "demo.log"
	assert.Equal(t, "DeployFailed [demo] start: port 8080 busy (log: demo.log)", err.Error())
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := New(KindGeneration, "demo", "customize", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "", LogFileOf(errors.New("plain")))
}
