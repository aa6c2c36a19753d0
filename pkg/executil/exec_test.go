package executil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_Run(t *testing.T) {
	exec := &RealExecutor{}
	ctx := context.Background()

	t.Run("successful command", func(t *testing.T) {
		out, err := exec.Run(ctx, "echo", "hello")
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(out))
	})

	t.Run("command not found", func(t *testing.T) {
		_, err := exec.Run(ctx, "nonexistent-command-12345")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exec nonexistent-command-12345")
	})

	t.Run("command fails", func(t *testing.T) {
		_, err := exec.Run(ctx, "false")
		require.Error(t, err)
	})
}

func TestAvailable(t *testing.T) {
	assert.True(t, Available("sh"))
	assert.False(t, Available("nonexistent-command-12345"))
}

func TestRecordingExecutor_Run(t *testing.T) {
	t.Run("records commands", func(t *testing.T) {
		exec := &RecordingExecutor{}
		ctx := context.Background()

		_, _ = exec.Run(ctx, "notify-send", "--app-name=duetoday", "Due soon")
		_, _ = exec.Run(ctx, "xdg-open", "https://example.com")

		require.Len(t, exec.Commands, 2)
		assert.Equal(t, "notify-send", exec.Commands[0].Cmd)
		assert.Equal(t, []string{"--app-name=duetoday", "Due soon"}, exec.Commands[0].Args)
		assert.Equal(t, "xdg-open", exec.Commands[1].Cmd)
	})

	t.Run("returns configured output", func(t *testing.T) {
		exec := &RecordingExecutor{
			Outputs: map[string][]byte{
				"xprintidle": []byte("120000\n"),
			},
		}
		ctx := context.Background()

		out, err := exec.Run(ctx, "xprintidle")
		require.NoError(t, err)
		assert.Equal(t, []byte("120000\n"), out)
	})

	t.Run("returns configured error", func(t *testing.T) {
		expectedErr := errors.New("command failed")
		exec := &RecordingExecutor{
			Errors: map[string]error{
				"notify-send": expectedErr,
			},
		}
		ctx := context.Background()

		_, err := exec.Run(ctx, "notify-send", "title")
		assert.Equal(t, expectedErr, err)
	})

	t.Run("reset clears commands", func(t *testing.T) {
		exec := &RecordingExecutor{}
		ctx := context.Background()

		_, _ = exec.Run(ctx, "echo", "hello")
		require.Len(t, exec.Commands, 1)

		exec.Reset()
		assert.Empty(t, exec.Commands)
	})
}
