package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestCombineOutputsCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zai.log")

	writer, err := combineOutputs([]string{path})
	if err != nil {
		t.Fatalf("combine outputs: %v", err)
	}
	if _, err := writer.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("unexpected log content: %q", data)
	}
}

func TestCombineOutputsDefaultsToStdout(t *testing.T) {
	writer, err := combineOutputs(nil)
	if err != nil {
		t.Fatalf("combine outputs: %v", err)
	}
	if writer != os.Stdout {
		t.Fatal("expected stdout writer when no outputs configured")
	}
}
