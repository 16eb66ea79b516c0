package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/audiolink/internal/infrastructure/config"
)

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newLogger returned error: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
	logger.WithField("sentence_id", 42).Info("flagged")
	if !strings.Contains(buf.String(), `"sentence_id":42`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}

	buf.Reset()
	logger, err = newLogger(config.LogConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("newLogger returned error: %v", err)
	}
	logger.WithField("sentence_id", 42).Info("flagged")
	if !strings.Contains(buf.String(), "sentence_id=42") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestNewLoggerRejectsBadConfig(t *testing.T) {
	if _, err := newLogger(config.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := newLogger(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
