package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/notify"
)

func TestLogSender_Send(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sender := NewLogSender("dev", logger)

	msg := notify.NewMessage("alice", "Phase change", "Trial moved to phase 3", change.SignificanceCritical)
	require.NoError(t, sender.Send(context.Background(), msg))

	out := buf.String()
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "Phase change")
	assert.Contains(t, out, "critical")
}

func TestLogSender_Name(t *testing.T) {
	sender := NewLogSender("dev", slog.Default())
	assert.Equal(t, "dev", sender.Name())
}
