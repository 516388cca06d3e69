package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"newsbot/internal/ledger"
	"newsbot/internal/model"
	"newsbot/internal/storage"
)

type mockPurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (m *mockPurger) Purge(_ context.Context, olderThan time.Time, _ *int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, olderThan)
	return 0, m.err
}

func (m *mockPurger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cutoffs)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPurgeOnceDeletesExpiredEntries(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l := ledger.New(db, discard())

	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	l.Record(ctx, model.SentRecord{RecipientID: 1, Title: "old", SentAt: now.Add(-31 * 24 * time.Hour)})
	l.Record(ctx, model.SentRecord{RecipientID: 1, Title: "fresh", SentAt: now.Add(-time.Hour)})

	j := New(l, 30*24*time.Hour, discard())
	j.now = func() time.Time { return now }

	if n := j.PurgeOnce(ctx); n != 1 {
		t.Fatalf("purged %d entries, want 1", n)
	}
	if l.WasSent(ctx, 1, "old") {
		t.Error("expired entry still present")
	}
	if !l.WasSent(ctx, 1, "fresh") {
		t.Error("fresh entry was purged")
	}
}

func TestPurgeOnceCutoff(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	p := &mockPurger{}
	j := New(p, 48*time.Hour, discard())
	j.now = func() time.Time { return now }

	j.PurgeOnce(context.Background())
	if want := now.Add(-48 * time.Hour); !p.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", p.cutoffs[0], want)
	}
}

func TestPurgeOnceError(t *testing.T) {
	p := &mockPurger{err: errors.New("database is locked")}
	j := New(p, time.Hour, discard())
	if n := j.PurgeOnce(context.Background()); n != 0 {
		t.Errorf("PurgeOnce = %d, want 0", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := &mockPurger{}
	j := New(p, time.Hour, discard())
	j.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := p.count(); n < 2 {
		t.Errorf("purge ran %d times, want at least 2", n)
	}
}
