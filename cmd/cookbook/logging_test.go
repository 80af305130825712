package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitLogging(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)

	var stderr bytes.Buffer
	logger, closer, err := initLogging(slog.LevelInfo, true, &stderr)
	if err != nil {
		t.Fatalf("initLogging: %v", err)
	}
	logger.Debug("hidden")
	logger.With("collection", "recipes").Info("saved", "id", "rec-royal")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(stderr.String(), "collection=recipes") || strings.Contains(stderr.String(), "hidden") {
		t.Errorf("unexpected stderr output:\n%s", stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(cache, "cookbook", "cookbook.log"))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record in the log file, got %d:\n%s", len(lines), data)
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log record is not JSON: %v", err)
	}
	if rec["msg"] != "saved" || rec["collection"] != "recipes" || rec["id"] != "rec-royal" {
		t.Errorf("unexpected record %v", rec)
	}
	if _, ok := rec["source"]; !ok {
		t.Error("records should carry their source")
	}
}

func TestMultiHandlerLevels(t *testing.T) {
	var debug, warn bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	logger := slog.New(h).WithGroup("odm")
	logger.Info("cache hit", "collection", "recipes")
	logger.Warn("stale draft", "id", "rec-tatin")

	if !strings.Contains(debug.String(), "cache hit") || !strings.Contains(debug.String(), "stale draft") {
		t.Errorf("debug handler missed records:\n%s", debug.String())
	}
	if strings.Contains(warn.String(), "cache hit") || !strings.Contains(warn.String(), "odm.id=rec-tatin") {
		t.Errorf("warn handler output unexpected:\n%s", warn.String())
	}
}
