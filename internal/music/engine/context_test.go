package engine

import (
	"sync"
	"testing"

	"tunepilot/internal/music/sources"
	"tunepilot/internal/storage"
)

func TestContextTransitions(t *testing.T) {
	c := newContext(1)

	if !c.idle() {
		t.Error("fresh context is not idle")
	}
	if c.Volume != 100 {
		t.Errorf("default volume = %d, want 100", c.Volume)
	}
	if c.RepeatMode != RepeatOff {
		t.Errorf("default repeat mode = %s, want off", c.RepeatMode)
	}

	// pause/resume from idle are rejected.
	if c.pause() {
		t.Error("pause succeeded from idle")
	}
	if c.resume() {
		t.Error("resume succeeded from idle")
	}

	c.startPlaying(sources.Track{ID: "a"})
	if !c.IsPlaying || c.IsPaused || c.Current == nil {
		t.Fatalf("after start: playing=%v paused=%v current=%v", c.IsPlaying, c.IsPaused, c.Current)
	}

	if c.resume() {
		t.Error("resume succeeded while playing unpaused")
	}
	if !c.pause() {
		t.Error("pause failed while playing")
	}
	if c.pause() {
		t.Error("second pause succeeded")
	}
	if !c.resume() {
		t.Error("resume failed while paused")
	}

	// startPlaying from paused clears the pause flag.
	c.pause()
	c.startPlaying(sources.Track{ID: "b"})
	if c.IsPaused {
		t.Error("paused flag survived a new track")
	}
	if c.Current.ID != "b" {
		t.Errorf("current = %q, want b", c.Current.ID)
	}

	c.stop()
	if !c.idle() || c.Current != nil {
		t.Errorf("after stop: idle=%v current=%v", c.idle(), c.Current)
	}
}

func TestStartPlayingCopiesTrack(t *testing.T) {
	c := newContext(1)
	track := sources.Track{ID: "a"}
	c.startPlaying(track)

	track.ID = "mutated"
	if c.Current.ID != "a" {
		t.Errorf("current = %q, caller mutation leaked in", c.Current.ID)
	}
}

func TestValidRepeatMode(t *testing.T) {
	for _, mode := range []RepeatMode{RepeatOff, RepeatOne, RepeatAll} {
		if !ValidRepeatMode(mode) {
			t.Errorf("%s reported invalid", mode)
		}
	}
	for _, mode := range []RepeatMode{"", "loop", "ON"} {
		if ValidRepeatMode(mode) {
			t.Errorf("%q reported valid", mode)
		}
	}
}

func TestStatsCounters(t *testing.T) {
	s := NewStats()

	s.RecordPlay()
	s.RecordPlay()
	if got := s.TotalPlays(); got != 2 {
		t.Errorf("total plays = %d, want 2", got)
	}

	s.RecordUser(1)
	s.RecordUser(2)
	s.RecordUser(1) // duplicate
	if got := s.TotalUsers(); got != 2 {
		t.Errorf("total users = %d, want 2", got)
	}
}

func TestStatsLoadNeverLowers(t *testing.T) {
	s := NewStats()
	s.RecordPlay()
	s.RecordPlay()

	s.Load(storage.StatsRecord{TotalPlays: 1, TotalUsers: 5})
	if got := s.TotalPlays(); got != 2 {
		t.Errorf("plays lowered to %d, want 2", got)
	}
	if got := s.TotalUsers(); got != 5 {
		t.Errorf("users = %d, want 5", got)
	}

	s.Load(storage.StatsRecord{TotalPlays: 10})
	if got := s.TotalPlays(); got != 10 {
		t.Errorf("plays = %d, want 10", got)
	}
}

func TestStatsConcurrentRecord(t *testing.T) {
	s := NewStats()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RecordPlay()
				s.RecordUser(base) // same user per goroutine
			}
		}(int64(i))
	}
	wg.Wait()

	if got := s.TotalPlays(); got != 1000 {
		t.Errorf("total plays = %d, want 1000", got)
	}
	if got := s.TotalUsers(); got != 10 {
		t.Errorf("total users = %d, want 10", got)
	}
}
