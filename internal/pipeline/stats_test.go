package pipeline

import (
	"testing"
	"time"
)

func TestStats_RecordRun(t *testing.T) {
	s := NewStats(time.Hour)

	s.RecordRun(10, 3, 2, 100*time.Millisecond, true)
	s.RecordRun(5, 0, 0, 300*time.Millisecond, true)
	s.RecordRun(0, 0, 0, 50*time.Millisecond, false)

	snap := s.Snapshot()
	if snap.ExportsCompleted != 2 || snap.ExportsFailed != 1 {
		t.Errorf("unexpected run counts: %+v", snap)
	}
	if snap.DocumentsExported != 15 {
		t.Errorf("expected 15 documents, got %d", snap.DocumentsExported)
	}
	if snap.ResourcesEmbedded != 3 {
		t.Errorf("expected 3 resources, got %d", snap.ResourcesEmbedded)
	}
	if snap.RefErrors != 2 {
		t.Errorf("expected 2 ref errors, got %d", snap.RefErrors)
	}
	if snap.Count != 3 {
		t.Errorf("expected 3 samples, got %d", snap.Count)
	}
	if snap.MinMs != 50 || snap.MaxMs != 300 {
		t.Errorf("unexpected latency bounds: min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestStats_EmptySnapshot(t *testing.T) {
	s := NewStats(time.Hour)
	snap := s.Snapshot()
	if snap.Count != 0 || snap.AvgMs != 0 {
		t.Errorf("expected zeroed latency stats, got %+v", snap)
	}
}
