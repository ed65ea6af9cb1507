package search

import (
	"sync"
	"testing"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(0)

	m.RecordLocal("u1")
	m.RecordLocal("u1")
	m.RecordLocal("")
	m.RecordExternal("u2")
	m.RecordFallback()

	snap := m.Snapshot()
	if snap.Local.Global != 3 {
		t.Errorf("expected 3 local resolutions, got %d", snap.Local.Global)
	}
	if snap.Local.PerUser["u1"] != 2 {
		t.Errorf("expected 2 local resolutions for u1, got %d", snap.Local.PerUser["u1"])
	}
	if _, ok := snap.Local.PerUser[""]; ok {
		t.Error("anonymous searches must not create a per-user bucket")
	}
	if snap.External.Global != 1 || snap.External.PerUser["u2"] != 1 {
		t.Errorf("unexpected external counts: %+v", snap.External)
	}
	if snap.Fallbacks != 1 {
		t.Errorf("expected 1 fallback, got %d", snap.Fallbacks)
	}
}

func TestMetricsProviderRequests(t *testing.T) {
	m := NewMetrics(0)

	for i := 0; i < 3; i++ {
		m.RecordProviderRequest("spotify")
	}
	m.RecordProviderRequest("lastfm")

	snap := m.Snapshot()
	if snap.Providers["spotify"] != 3 {
		t.Errorf("expected 3 spotify requests, got %d", snap.Providers["spotify"])
	}
	if snap.Providers["lastfm"] != 1 {
		t.Errorf("expected 1 lastfm request, got %d", snap.Providers["lastfm"])
	}
	if _, ok := snap.Providers["youtube"]; ok {
		t.Error("unused providers must not appear in the snapshot")
	}
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics(0)
	m.RecordLocal("u1")

	snap := m.Snapshot()
	snap.Local.PerUser["u1"] = 99
	snap.Providers["spotify"] = 99

	if fresh := m.Snapshot(); fresh.Local.PerUser["u1"] != 1 {
		t.Errorf("snapshot mutation leaked into the registry: %d", fresh.Local.PerUser["u1"])
	}
	if fresh := m.Snapshot(); fresh.Providers["spotify"] != 0 {
		t.Errorf("snapshot mutation leaked into provider counts: %d", fresh.Providers["spotify"])
	}
}

func TestMetricsConcurrentRecording(t *testing.T) {
	m := NewMetrics(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.RecordLocal("u1")
				m.RecordProviderRequest("spotify")
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.Local.Global != 400 {
		t.Errorf("expected 400 local resolutions, got %d", snap.Local.Global)
	}
	if snap.Providers["spotify"] != 400 {
		t.Errorf("expected 400 spotify requests, got %d", snap.Providers["spotify"])
	}
}
