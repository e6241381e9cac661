package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceHandler_OnlyListedLevels(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		wantSource bool
	}{
		{"info skipped", slog.LevelInfo, false},
		{"debug skipped", slog.LevelDebug, false},
		{"warn annotated", slog.LevelWarn, true},
		{"error annotated", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			l := slog.New(NewSourceHandler(base, slog.LevelWarn, slog.LevelError))

			l.Log(context.Background(), tt.level, "checkout created", "order_id", 42)

			out := buf.String()
			assert.Contains(t, out, "order_id=42")
			assert.Equal(t, tt.wantSource, strings.Contains(out, "source="), out)
		})
	}
}

func TestSourceHandler_KeepsAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	l := slog.New(NewSourceHandler(base, slog.LevelError)).With("component", "webhook").WithGroup("evt")

	l.Error("rejected", "outcome", "rejected_signature")

	out := buf.String()
	assert.Contains(t, out, "component=webhook")
	assert.Contains(t, out, "evt.outcome=rejected_signature")
	assert.Contains(t, out, "source=")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNopLogger(t *testing.T) {
	l := NewNop().Named("x").With("k", "v")
	assert.NotPanics(t, func() {
		l.Infow("ignored", "a", 1)
		l.Fatal("ignored")
	})
}
