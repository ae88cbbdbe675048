package metrics

import (
	"testing"
	"time"
)

func TestTimingMetric_RecordAndStats(t *testing.T) {
	ResetAll()
	defer ResetAll()

	FetchIssue.Record(10 * time.Millisecond)
	FetchIssue.Record(30 * time.Millisecond)

	stats := FetchIssue.Stats()
	if stats.Count != 2 {
		t.Errorf("count = %d, want 2", stats.Count)
	}
	if stats.TotalMs < 39 || stats.TotalMs > 41 {
		t.Errorf("total = %vms, want ~40ms", stats.TotalMs)
	}
	if stats.AvgMs < 19 || stats.AvgMs > 21 {
		t.Errorf("avg = %vms, want ~20ms", stats.AvgMs)
	}
	if stats.MaxMs < 29 || stats.MaxMs > 31 {
		t.Errorf("max = %vms, want ~30ms", stats.MaxMs)
	}
}

func TestTimer_RecordsElapsed(t *testing.T) {
	ResetAll()
	defer ResetAll()

	done := Timer(CreateTimeEntry)
	time.Sleep(5 * time.Millisecond)
	done()

	if CreateTimeEntry.Count() != 1 {
		t.Fatalf("count = %d, want 1", CreateTimeEntry.Count())
	}
	if CreateTimeEntry.Stats().MaxMs < 4 {
		t.Errorf("recorded %vms, expected at least ~5ms", CreateTimeEntry.Stats().MaxMs)
	}
}

func TestSetEnabled_StopsCollection(t *testing.T) {
	ResetAll()
	defer func() {
		SetEnabled(true)
		ResetAll()
	}()

	SetEnabled(false)
	UpdateStatus.Record(time.Second)
	Timer(UpdateStatus)()

	if UpdateStatus.Count() != 0 {
		t.Errorf("disabled metrics still recorded %d measurements", UpdateStatus.Count())
	}
}

func TestAllTimingStats_SkipsEmpty(t *testing.T) {
	ResetAll()
	defer ResetAll()

	RefreshCaches.Record(time.Millisecond)

	stats := AllTimingStats()
	if len(stats) != 1 {
		t.Fatalf("expected 1 metric with data, got %d", len(stats))
	}
	if stats[0].Name != "refresh_caches" {
		t.Errorf("unexpected metric %q", stats[0].Name)
	}
}
