package services

import (
	"testing"
	"time"
)

func TestDayQuota(t *testing.T) {
	t.Run("counts within window", func(t *testing.T) {
		q := NewDayQuota(4, 3)
		q.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

		for i := 0; i < 3; i++ {
			if !q.TryAcquire() {
				t.Fatalf("acquire %d refused", i)
			}
		}
		if q.TryAcquire() {
			t.Error("expected limit to refuse fourth acquire")
		}
		if q.Remaining() != 0 {
			t.Errorf("expected 0 remaining, got %d", q.Remaining())
		}
	})

	t.Run("rolls over at anchor", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 3, 30, 0, 0, time.UTC)
		q := NewDayQuota(4, 1)
		q.now = func() time.Time { return now }

		if !q.TryAcquire() {
			t.Fatal("first acquire refused")
		}
		if q.TryAcquire() {
			t.Error("expected exhaustion before anchor")
		}

		// 03:30 belongs to the previous day's window; 04:01 starts a new one.
		now = time.Date(2025, 6, 1, 4, 1, 0, 0, time.UTC)
		if !q.TryAcquire() {
			t.Error("expected fresh quota after anchor rollover")
		}
	})

	t.Run("explicit exhaustion clears on rollover", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		q := NewDayQuota(4, 0)
		q.now = func() time.Time { return now }

		q.MarkExhausted()
		if q.Available() {
			t.Error("expected unavailable after mark")
		}

		now = now.Add(24 * time.Hour)
		if !q.Available() {
			t.Error("expected available after next anchor")
		}
	})

	t.Run("uncounted quota tracks usage", func(t *testing.T) {
		q := NewDayQuota(4, 0)
		q.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

		for i := 0; i < 10; i++ {
			if !q.TryAcquire() {
				t.Fatalf("acquire %d refused", i)
			}
		}
		if q.Used() != 10 {
			t.Errorf("expected 10 used, got %d", q.Used())
		}
		if q.Remaining() != -1 {
			t.Errorf("expected uncounted remaining, got %d", q.Remaining())
		}
	})
}
