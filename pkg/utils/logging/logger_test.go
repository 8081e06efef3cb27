package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

func TestNewWithDifferentLevels(t *testing.T) {
	testCases := []struct {
		level       string
		expectDebug bool
		expectInfo  bool
		expectWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"warning", false, false, true},
		{"error", false, false, false},
		{"DEBUG", true, true, true},    // Case-insensitive
		{"invalid", false, true, true}, // Defaults to info
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)
			gt.V(t, logger).NotNil()

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			output := buf.String()
			gt.Equal(t, bytes.Contains([]byte(output), []byte("debug message")), tc.expectDebug)
			gt.Equal(t, bytes.Contains([]byte(output), []byte("info message")), tc.expectInfo)
			gt.Equal(t, bytes.Contains([]byte(output), []byte("warn message")), tc.expectWarn)
			gt.S(t, output).Contains("error message")
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, ok := logging.ParseLevel("Warning")
	gt.True(t, ok)
	gt.Equal(t, lvl, slog.LevelWarn)

	lvl, ok = logging.ParseLevel("verbose")
	gt.False(t, ok)
	gt.Equal(t, lvl, slog.LevelInfo)
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf, logging.WithJSON())
	logger.Info("indexed", "files", 3)

	var record map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	gt.Equal(t, record["msg"], any("indexed"))
	gt.Equal(t, record["files"], any(float64(3)))
}

func TestWithAndFrom(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf).With("component", "vector")

	ctx = logging.With(ctx, logger)
	retrieved := logging.From(ctx)
	gt.Equal(t, retrieved, logger)

	retrieved.Info("context message")
	gt.S(t, buf.String()).Contains("context message")
	gt.S(t, buf.String()).Contains("vector")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	customDefault := logging.New("warn", buf)
	logging.SetDefault(customDefault)

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, customDefault)

	retrieved.Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}

func TestDiscard(t *testing.T) {
	logger := logging.Discard()
	gt.V(t, logger).NotNil()
	logger.Error("dropped")
}
