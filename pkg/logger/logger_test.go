package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	opts := Options{
		Level:  "debug",
		Output: "console",
	}

	if err := Init(opts); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Debug("debug message", "key", "value")
	Info("info message", "key", "value")
	Warn("warn message", "key", "value")
	Error("error message", "key", "value")
}

func TestSetLevel(t *testing.T) {
	if err := Init(Options{Level: "info", Output: "console"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := SetLevel("error"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}

	if err := SetLevel("bogus"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	opts := Options{
		Level:    "debug",
		Output:   "file",
		Format:   "text",
		FilePath: logPath,
	}

	if err := Init(opts); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Info("test message", "key", "value")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "test message") {
		t.Fatalf("Log content does not contain expected message")
	}
}

func TestJSONOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.json")

	opts := Options{
		Level:    "info",
		Output:   "file",
		Format:   "json",
		FilePath: logPath,
	}

	if err := Init(opts); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Info("test message", "key", "value")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), `"msg":"test message"`) {
		t.Fatalf("JSON log does not contain expected message")
	}

	if !strings.Contains(string(content), `"key":"value"`) {
		t.Fatalf("JSON log does not contain expected key-value pair")
	}
}

func TestSensitiveArgsMasked(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	if err := Init(Options{Level: "info", Output: "file", FilePath: logPath}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Info("auth ok", "access_token", "1234567890abcdef")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if strings.Contains(string(content), "1234567890abcdef") {
		t.Fatal("raw token leaked into log output")
	}
	if !strings.Contains(string(content), "1234********cdef") {
		t.Fatal("masked token missing from log output")
	}
}

func TestInitDefault(t *testing.T) {
	defaultLogger = nil
	Info("test default init")

	if defaultLogger == nil {
		t.Fatal("Default logger was not initialized")
	}
}
