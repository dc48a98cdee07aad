package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	defer om.Close()

	if err := om.WriteTelemetry(TelemetryRecord{Step: 0, Time: 0}); err != nil {
		t.Fatalf("WriteTelemetry: %v", err)
	}
	if err := om.WriteTelemetry(TelemetryRecord{Step: 1, Time: 0.1}); err != nil {
		t.Fatalf("WriteTelemetry: %v", err)
	}
	om.Close()

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatalf("reading telemetry.csv: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 3 {
		t.Errorf("expected header + 2 data rows (3 lines) after two WriteTelemetry calls, got %d lines", lines)
	}
}

func TestNilOutputManagerIsNoOp(t *testing.T) {
	var om *OutputManager
	if err := om.WriteTelemetry(TelemetryRecord{}); err != nil {
		t.Errorf("nil OutputManager.WriteTelemetry should be a no-op, got %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil OutputManager.Close should be a no-op, got %v", err)
	}
}
