package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestZerologAdapterFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	logger.Info("Training started",
		ModelNameKey, "LinReg",
		SamplesKey, 100,
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["message"] != "Training started" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ModelNameKey] != "LinReg" {
		t.Errorf("%s = %v, want LinReg", ModelNameKey, entry[ModelNameKey])
	}
	if entry[SamplesKey] != float64(100) {
		t.Errorf("%s = %v, want 100", SamplesKey, entry[SamplesKey])
	}
}

func TestZerologAdapterWith(t *testing.T) {
	var buf bytes.Buffer
	base := NewZerologLogger(zerolog.New(&buf))
	scoped := base.With(ComponentKey, "impute")

	scoped.Info("Round complete", RoundKey, 2)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry[ComponentKey] != "impute" {
		t.Errorf("%s = %v, want impute", ComponentKey, entry[ComponentKey])
	}
	if entry[RoundKey] != float64(2) {
		t.Errorf("%s = %v, want 2", RoundKey, entry[RoundKey])
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestTestLoggerCapture(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)

	logger.Info("Imputed column", ColumnKey, 2, MissingRowsKey, 10)
	logger.Debug("Split", OperationKey, OperationSplit)

	entries, err := logger.GetLogEntries()
	if err != nil {
		t.Fatalf("GetLogEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("captured %d entries, want 2", len(entries))
	}
	if !logger.ContainsMessage("Imputed column") {
		t.Error("ContainsMessage should find the info entry")
	}
	if !logger.ContainsField(ColumnKey, float64(2)) {
		t.Error("ContainsField should find the column attribute")
	}

	logger.Clear()
	if logger.ContainsMessage("Imputed column") {
		t.Error("Clear should drop captured entries")
	}
}

func TestTestLoggerLevelFiltering(t *testing.T) {
	logger, buf := NewTestLogger(LevelWarn)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	if logger.ContainsMessage("dropped") {
		t.Error("entries below the minimum level should be dropped")
	}
	if !logger.ContainsMessage("kept") {
		t.Errorf("warn entry missing; captured: %s", buf.String())
	}
}

func TestTestLoggerWithInheritsFields(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	scoped := logger.With(ModelNameKey, "MICE").(*TestLogger)

	scoped.Info("Starting chained imputation")

	if !scoped.ContainsField(ModelNameKey, "MICE") {
		t.Error("With fields should appear on every entry")
	}
}
