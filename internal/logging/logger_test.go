package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
	stateMu.Lock()
	debugMode = false
	logsDir = ""
	logLevel = LevelInfo
	stateMu.Unlock()
}

func TestDisabledLoggingIsNoOp(t *testing.T) {
	resetState()
	if err := Initialize(t.TempDir(), false, "info"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	l := Get(CategoryGC)
	if l.logger != nil {
		t.Fatal("disabled mode handed out a live logger")
	}
	// Must not panic.
	l.Info("ignored %d", 1)
	l.Error("ignored")
}

func TestEnabledLoggingWritesCategoryFile(t *testing.T) {
	resetState()
	ws := t.TempDir()
	if err := Initialize(ws, true, "debug"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer CloseAll()

	Get(CategoryGC).Info("collection %d finished", 7)

	entries, err := os.ReadDir(filepath.Join(ws, ".starling", "logs"))
	if err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	var gcLog string
	for _, e := range entries {
		if strings.Contains(e.Name(), "_gc.log") {
			gcLog = filepath.Join(ws, ".starling", "logs", e.Name())
		}
	}
	if gcLog == "" {
		t.Fatalf("no gc category file among %v", entries)
	}
	data, err := os.ReadFile(gcLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "collection 7 finished") {
		t.Fatalf("log line missing, got: %s", data)
	}
}

func TestLevelFiltering(t *testing.T) {
	resetState()
	ws := t.TempDir()
	if err := Initialize(ws, true, "error"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer CloseAll()

	l := Get(CategoryHeap)
	l.Debug("suppressed")
	l.Info("suppressed")
	l.Warn("suppressed")
	l.Error("kept")

	entries, _ := os.ReadDir(filepath.Join(ws, ".starling", "logs"))
	for _, e := range entries {
		if !strings.Contains(e.Name(), "_heap.log") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ws, ".starling", "logs", e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), "suppressed") {
			t.Fatalf("suppressed levels written: %s", data)
		}
		if !strings.Contains(string(data), "kept") {
			t.Fatalf("error line missing: %s", data)
		}
		return
	}
	t.Fatal("heap category file missing")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Debug("no panic")
	l.Info("no panic")
	l.Warn("no panic")
	l.Error("no panic")
}
