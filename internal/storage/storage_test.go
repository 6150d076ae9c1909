package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datastore.json")
	s, err := New(context.Background(), path)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStatsRoundtrip(t *testing.T) {
	s := newTestStorage(t)

	rec, err := s.LoadStats()
	if err != nil {
		t.Fatalf("load from empty store: %v", err)
	}
	if rec.TotalPlays != 0 || rec.TotalUsers != 0 {
		t.Errorf("empty store stats = %+v, want zero record", rec)
	}

	if err := s.SaveStats(StatsRecord{TotalPlays: 42, TotalUsers: 7}); err != nil {
		t.Fatalf("save stats: %v", err)
	}

	rec, err = s.LoadStats()
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if rec.TotalPlays != 42 || rec.TotalUsers != 7 {
		t.Errorf("stats = %+v, want plays 42 users 7", rec)
	}
	if rec.LastUpdated.IsZero() {
		t.Error("LastUpdated not stamped on save")
	}
}

func TestStatsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datastore.json")

	s, err := New(context.Background(), path)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	if err := s.SaveStats(StatsRecord{TotalPlays: 5, TotalUsers: 2}); err != nil {
		t.Fatalf("save stats: %v", err)
	}
	// Close performs the final write.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := New(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen storage: %v", err)
	}
	defer reopened.Close()

	rec, err := reopened.LoadStats()
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if rec.TotalPlays != 5 || rec.TotalUsers != 2 {
		t.Errorf("reloaded stats = %+v, want plays 5 users 2", rec)
	}
}

func TestQueueSnapshotRoundtrip(t *testing.T) {
	s := newTestStorage(t)

	b, err := s.LoadQueueSnapshot()
	if err != nil {
		t.Fatalf("load from empty store: %v", err)
	}
	if b != nil {
		t.Errorf("empty store snapshot = %q, want nil", b)
	}

	payload := []byte(`{"queues":{"1":[]},"history":{}}`)
	if err := s.SaveQueueSnapshot(payload); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	b, err = s.LoadQueueSnapshot()
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if string(b) != string(payload) {
		t.Errorf("snapshot = %s, want %s", b, payload)
	}
}

func TestQueueSnapshotRejectsInvalidJSON(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SaveQueueSnapshot([]byte("{broken")); err == nil {
		t.Fatal("invalid JSON accepted")
	}
}
