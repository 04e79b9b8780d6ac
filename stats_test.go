package metacache

import (
	"testing"
)

func TestStatsCollector_RecordOperation(t *testing.T) {
	sc := newStatsCollector()

	stats := sc.snapshot()
	if stats.Operations != 0 {
		t.Errorf("Initial operations = %d, want 0", stats.Operations)
	}

	sc.recordOperation()
	sc.recordOperation()
	sc.recordOperation()
	stats = sc.snapshot()
	if stats.Operations != 3 {
		t.Errorf("Operations = %d, want 3", stats.Operations)
	}
}

func TestStatsCollector_RecordRead(t *testing.T) {
	sc := newStatsCollector()

	sc.recordRead(100)
	sc.recordRead(50)
	stats := sc.snapshot()
	if stats.BytesRead != 150 {
		t.Errorf("BytesRead = %d, want 150", stats.BytesRead)
	}
}

func TestStatsCollector_RecordError(t *testing.T) {
	sc := newStatsCollector()

	sc.recordError()
	sc.recordError()
	stats := sc.snapshot()
	if stats.Errors != 2 {
		t.Errorf("Errors = %d, want 2", stats.Errors)
	}
}

func TestStatsCollector_Concurrent(t *testing.T) {
	sc := newStatsCollector()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				sc.recordOperation()
				sc.recordRead(10)
				sc.recordError()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	stats := sc.snapshot()
	if stats.Operations != 1000 {
		t.Errorf("Operations = %d, want 1000", stats.Operations)
	}
	if stats.BytesRead != 10000 {
		t.Errorf("BytesRead = %d, want 10000", stats.BytesRead)
	}
	if stats.Errors != 1000 {
		t.Errorf("Errors = %d, want 1000", stats.Errors)
	}
}
