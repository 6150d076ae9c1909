package queue

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"tunepilot/internal/music/sources"
)

func track(id string) sources.Track {
	return sources.Track{ID: id, Title: "Track " + id, Source: sources.SourceYouTube}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	s := NewStore(0, 0)

	for i := 0; i < 3; i++ {
		if err := s.Enqueue(1, track(fmt.Sprint(i)), 10); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		entry := s.DequeueNext(1)
		if entry == nil {
			t.Fatalf("dequeue %d: got nil", i)
		}
		if entry.Track.ID != fmt.Sprint(i) {
			t.Errorf("dequeue %d: got track %q, want %q", i, entry.Track.ID, fmt.Sprint(i))
		}
		if !entry.Played {
			t.Errorf("dequeue %d: entry not marked played", i)
		}
	}

	if entry := s.DequeueNext(1); entry != nil {
		t.Errorf("dequeue on empty queue: got %+v, want nil", entry)
	}
}

func TestEmptyDequeueLeavesHistoryAlone(t *testing.T) {
	s := NewStore(0, 0)

	if entry := s.DequeueNext(7); entry != nil {
		t.Fatalf("got %+v, want nil", entry)
	}
	if h := s.History(7, 10); len(h) != 0 {
		t.Errorf("history after empty dequeue: got %d entries, want 0", len(h))
	}
}

func TestChatsAreIsolated(t *testing.T) {
	s := NewStore(0, 0)

	s.Enqueue(1, track("a"), 10)
	s.Enqueue(2, track("b"), 20)

	if got := s.Size(1); got != 1 {
		t.Errorf("chat 1 size = %d, want 1", got)
	}
	if got := s.Size(2); got != 1 {
		t.Errorf("chat 2 size = %d, want 1", got)
	}

	entry := s.DequeueNext(1)
	if entry == nil || entry.Track.ID != "a" {
		t.Fatalf("chat 1 dequeue = %+v, want track a", entry)
	}
	if got := s.Size(2); got != 1 {
		t.Errorf("chat 2 size after chat 1 dequeue = %d, want 1", got)
	}
}

func TestQueueFull(t *testing.T) {
	s := NewStore(2, 0)

	s.Enqueue(1, track("a"), 10)
	s.Enqueue(1, track("b"), 10)

	err := s.Enqueue(1, track("c"), 10)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third enqueue: got %v, want ErrQueueFull", err)
	}
	if got := s.Size(1); got != 2 {
		t.Errorf("size after rejected enqueue = %d, want 2", got)
	}
}

func TestHistoryOrderAndTrim(t *testing.T) {
	s := NewStore(0, 3)

	for i := 0; i < 5; i++ {
		s.AddToHistory(1, track(fmt.Sprint(i)), 10)
	}

	h := s.History(1, 10)
	if len(h) != 3 {
		t.Fatalf("history length = %d, want 3 (trimmed)", len(h))
	}
	// Most recent first, oldest entries dropped.
	for i, wantID := range []string{"4", "3", "2"} {
		if h[i].Track.ID != wantID {
			t.Errorf("history[%d] = %q, want %q", i, h[i].Track.ID, wantID)
		}
	}
}

func TestHistoryLimit(t *testing.T) {
	s := NewStore(0, 0)
	for i := 0; i < 5; i++ {
		s.AddToHistory(1, track(fmt.Sprint(i)), 10)
	}

	h := s.History(1, 2)
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	if h[0].Track.ID != "4" || h[1].Track.ID != "3" {
		t.Errorf("history = [%s %s], want [4 3]", h[0].Track.ID, h[1].Track.ID)
	}
}

func TestPaginate(t *testing.T) {
	s := NewStore(0, 0)
	for i := 0; i < 5; i++ {
		s.Enqueue(1, track(fmt.Sprint(i)), 10)
	}

	tests := []struct {
		name      string
		page      int
		perPage   int
		wantPage  int
		wantIDs   []string
		wantPages int
	}{
		{"first page", 1, 2, 1, []string{"0", "1"}, 3},
		{"middle page", 2, 2, 2, []string{"2", "3"}, 3},
		{"short last page", 3, 2, 3, []string{"4"}, 3},
		{"page zero clamps to first", 0, 2, 1, []string{"0", "1"}, 3},
		{"page beyond end clamps to last", 99, 2, 3, []string{"4"}, 3},
		{"single page holds all", 1, 10, 1, []string{"0", "1", "2", "3", "4"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := s.Paginate(1, tt.page, tt.perPage)
			if p.Total != 5 {
				t.Errorf("total = %d, want 5", p.Total)
			}
			if p.Page != tt.wantPage {
				t.Errorf("page = %d, want %d", p.Page, tt.wantPage)
			}
			if p.Pages != tt.wantPages {
				t.Errorf("pages = %d, want %d", p.Pages, tt.wantPages)
			}
			if len(p.Items) != len(tt.wantIDs) {
				t.Fatalf("items = %d, want %d", len(p.Items), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if p.Items[i].Track.ID != id {
					t.Errorf("items[%d] = %q, want %q", i, p.Items[i].Track.ID, id)
				}
			}
		})
	}
}

func TestPaginateEmpty(t *testing.T) {
	s := NewStore(0, 0)

	p := s.Paginate(1, 3, 10)
	if p.Total != 0 || p.Pages != 0 {
		t.Errorf("total/pages = %d/%d, want 0/0", p.Total, p.Pages)
	}
	if p.Page != 1 {
		t.Errorf("page = %d, want 1", p.Page)
	}
	if p.Items == nil || len(p.Items) != 0 {
		t.Errorf("items = %v, want empty non-nil slice", p.Items)
	}
}

func TestRemoveAt(t *testing.T) {
	s := NewStore(0, 0)
	for i := 0; i < 3; i++ {
		s.Enqueue(1, track(fmt.Sprint(i)), 10)
	}

	entry := s.RemoveAt(1, 1)
	if entry == nil || entry.Track.ID != "1" {
		t.Fatalf("remove = %+v, want track 1", entry)
	}
	if got := s.Size(1); got != 2 {
		t.Errorf("size after remove = %d, want 2", got)
	}

	if entry := s.RemoveAt(1, 5); entry != nil {
		t.Errorf("remove out of range = %+v, want nil", entry)
	}
	if entry := s.RemoveAt(1, -1); entry != nil {
		t.Errorf("remove negative = %+v, want nil", entry)
	}
	if got := s.Size(1); got != 2 {
		t.Errorf("size after failed removes = %d, want 2", got)
	}
}

func TestMove(t *testing.T) {
	s := NewStore(0, 0)
	for i := 0; i < 4; i++ {
		s.Enqueue(1, track(fmt.Sprint(i)), 10)
	}

	if !s.Move(1, 0, 2) {
		t.Fatal("move 0->2 failed")
	}
	p := s.Paginate(1, 1, 10)
	got := make([]string, len(p.Items))
	for i, e := range p.Items {
		got[i] = e.Track.ID
	}
	want := []string{"1", "2", "0", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after move, queue = %v, want %v", got, want)
		}
	}

	if !s.Move(1, 3, 0) {
		t.Fatal("move 3->0 failed")
	}
	p = s.Paginate(1, 1, 10)
	if p.Items[0].Track.ID != "3" {
		t.Errorf("after move to front, head = %q, want 3", p.Items[0].Track.ID)
	}

	if s.Move(1, 0, 9) {
		t.Error("move to out-of-range position succeeded")
	}
	if s.Move(1, -1, 0) {
		t.Error("move from negative position succeeded")
	}
	if !s.Move(1, 2, 2) {
		t.Error("move to same position should be a no-op success")
	}
}

func TestShuffle(t *testing.T) {
	s := NewStore(0, 0)

	if s.Shuffle(1) {
		t.Error("shuffle of empty queue reported true")
	}
	s.Enqueue(1, track("a"), 10)
	if s.Shuffle(1) {
		t.Error("shuffle of single-entry queue reported true")
	}

	for i := 0; i < 9; i++ {
		s.Enqueue(1, track(fmt.Sprint(i)), 10)
	}
	if !s.Shuffle(1) {
		t.Error("shuffle of populated queue reported false")
	}
	if got := s.Size(1); got != 10 {
		t.Errorf("size after shuffle = %d, want 10", got)
	}
}

func TestClear(t *testing.T) {
	s := NewStore(0, 0)

	if s.Clear(1) {
		t.Error("clear of empty queue reported true")
	}

	s.Enqueue(1, track("a"), 10)
	s.AddToHistory(1, track("h"), 10)

	if !s.Clear(1) {
		t.Error("clear of populated queue reported false")
	}
	if got := s.Size(1); got != 0 {
		t.Errorf("size after clear = %d, want 0", got)
	}
	if h := s.History(1, 10); len(h) != 1 {
		t.Errorf("history after clear = %d entries, want 1", len(h))
	}
}

func TestSnapshotRestoreRoundtrip(t *testing.T) {
	s := NewStore(0, 0)
	s.Enqueue(1, track("a"), 10)
	s.Enqueue(1, track("b"), 11)
	s.Enqueue(2, track("c"), 12)
	s.AddToHistory(1, track("old"), 10)

	snap := s.Snapshot()

	restored := NewStore(0, 0)
	restored.Restore(snap)

	if got := restored.Size(1); got != 2 {
		t.Errorf("restored chat 1 size = %d, want 2", got)
	}
	if got := restored.Size(2); got != 1 {
		t.Errorf("restored chat 2 size = %d, want 1", got)
	}
	entry := restored.DequeueNext(1)
	if entry == nil || entry.Track.ID != "a" {
		t.Errorf("restored head = %+v, want track a", entry)
	}
	h := restored.History(1, 10)
	// The dequeue above appended to the restored history.
	if len(h) != 2 || h[1].Track.ID != "old" {
		t.Errorf("restored history = %+v, want old entry preserved", h)
	}
}

func TestRestoreTrimsToBounds(t *testing.T) {
	big := NewStore(0, 0)
	for i := 0; i < 10; i++ {
		big.Enqueue(1, track(fmt.Sprint(i)), 10)
		big.AddToHistory(1, track(fmt.Sprint(i)), 10)
	}
	snap := big.Snapshot()

	small := NewStore(3, 2)
	small.Restore(snap)

	if got := small.Size(1); got != 3 {
		t.Errorf("restored size = %d, want 3", got)
	}
	if got := len(small.History(1, 10)); got != 2 {
		t.Errorf("restored history = %d entries, want 2", got)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewStore(0, 0)
	s.Enqueue(1, track("a"), 10)

	snap := s.Snapshot()
	snap.Queues[1][0].Track.ID = "mutated"

	entry := s.PeekNext(1)
	if entry == nil || entry.Track.ID != "a" {
		t.Errorf("store head = %+v, snapshot mutation leaked in", entry)
	}
}

func TestTotalSize(t *testing.T) {
	s := NewStore(0, 0)
	s.Enqueue(1, track("a"), 10)
	s.Enqueue(1, track("b"), 10)
	s.Enqueue(2, track("c"), 10)

	if got := s.TotalSize(); got != 3 {
		t.Errorf("total size = %d, want 3", got)
	}
}

func TestConcurrentChats(t *testing.T) {
	s := NewStore(0, 0)

	var wg sync.WaitGroup
	for chat := int64(0); chat < 10; chat++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Enqueue(chatID, track(fmt.Sprint(i)), chatID)
			}
			for i := 0; i < 20; i++ {
				s.DequeueNext(chatID)
			}
			s.Paginate(chatID, 1, 10)
			s.History(chatID, 10)
		}(chat)
	}
	wg.Wait()

	for chat := int64(0); chat < 10; chat++ {
		if got := s.Size(chat); got != 30 {
			t.Errorf("chat %d size = %d, want 30", chat, got)
		}
	}
	if got := s.TotalSize(); got != 300 {
		t.Errorf("total size = %d, want 300", got)
	}
}
