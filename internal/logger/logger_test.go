package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAsyncHandlerWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	handler := NewAsyncHandler(dir, 30, slog.LevelInfo)
	log := slog.New(handler).With("conn", "abc")

	log.Debug("hidden")
	log.Info("position accepted", "device", 7)

	if err := handler.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "position accepted") {
		t.Errorf("expected message in log file, got %q", out)
	}
	if !strings.Contains(out, "conn=abc") || !strings.Contains(out, "device=7") {
		t.Errorf("expected attributes in log file, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
}

func TestAsyncHandlerRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "2000-01-01.log")
	if err := os.WriteFile(old, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-40 * 24 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	handler := NewAsyncHandler(dir, 30, slog.LevelInfo)
	_ = handler.Close()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("expected expired log file to be removed, stat err = %v", err)
	}
}

func TestShutdownCallbackIsIdempotent(t *testing.T) {
	handler := NewAsyncHandler(t.TempDir(), 30, slog.LevelInfo)
	cb := &ShutdownCallback{handler: handler}
	if err := cb.Invoke(context.Background()); err != nil {
		t.Fatalf("first invoke: %v", err)
	}
	if err := cb.Invoke(context.Background()); err != nil {
		t.Fatalf("second invoke: %v", err)
	}
	// writes after close are dropped
	handler.Write([]byte("late\n"))
}

type countingHandler struct {
	level   slog.Level
	records []string
}

func (h *countingHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }
func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r.Message)
	return nil
}
func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

type expensive struct{ formatted *bool }

func (e expensive) String() string {
	*e.formatted = true
	return "expensive"
}

func TestFormattedHelpersSkipDisabledLevels(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	h := &countingHandler{level: slog.LevelInfo}
	slog.SetDefault(slog.New(h))

	formatted := false
	DebugF("position %v", expensive{&formatted})
	if formatted {
		t.Error("disabled debug line was formatted")
	}
	InfoF("device %d", 7)
	FatalF("stopping %s", "now")
	if len(h.records) != 2 || h.records[0] != "device 7" || h.records[1] != "stopping now" {
		t.Errorf("unexpected records %v", h.records)
	}
}

func TestLevelLabel(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "DEBUG"},
		{slog.LevelWarn, "WARN"},
		{LevelFatal, "FATAL"},
		{slog.Level(2), "INFO+2"},
	}
	for _, tt := range tests {
		if got := levelLabel(tt.level); !strings.Contains(got, tt.want) {
			t.Errorf("levelLabel(%v) = %q, want it to contain %q", tt.level, got, tt.want)
		}
	}
}
