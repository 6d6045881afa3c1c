package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(ReplaceGlobal(zap.NewNop()))

	if err := Init("debug"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	logger := Logger()
	if logger == nil {
		t.Fatal("expected Logger to return non-nil logger")
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

func TestConfigureFallsBackToInfo(t *testing.T) {
	t.Cleanup(ReplaceGlobal(zap.NewNop()))

	if err := Configure(Options{Level: "chatty", Format: "console"}); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}

	core := Logger().Core()
	if core.Enabled(zap.DebugLevel) {
		t.Fatal("expected debug to be disabled for unknown level")
	}
	if !core.Enabled(zap.InfoLevel) {
		t.Fatal("expected info level to be enabled")
	}
}

func TestReplaceGlobalRestoresPrevious(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	restore := ReplaceGlobal(zap.New(core))

	Logger().Debug("captured", zap.String("k", "v"))
	restore()
	Logger().Info("not captured")

	if recorded.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", recorded.Len())
	}
	if field := recorded.All()[0].ContextMap()["k"]; field != "v" {
		t.Fatalf("expected field \"k\" to equal \"v\", got %v", field)
	}
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(ReplaceGlobal(zap.New(core)))

	logger := WithModule("workflow")
	logger.Info("module test")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if module := entries[0].ContextMap()["module"]; module != "workflow" {
		t.Fatalf("expected module field to be \"workflow\", got %v", module)
	}
}
