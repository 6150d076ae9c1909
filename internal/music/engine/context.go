package engine

import (
	"time"

	"tunepilot/internal/music/sources"
)

type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOne RepeatMode = "one"
	RepeatAll RepeatMode = "all"
)

func ValidRepeatMode(m RepeatMode) bool {
	return m == RepeatOff || m == RepeatOne || m == RepeatAll
}

// Context is the per-chat playback state machine. It is mutated only by the
// Engine while holding the chat's lock.
//
// Invariants: IsPaused implies IsPlaying; Current == nil implies neither.
type Context struct {
	ChatID       int64          `json:"chat_id"`
	IsPlaying    bool           `json:"is_playing"`
	IsPaused     bool           `json:"is_paused"`
	Current      *sources.Track `json:"current_track"`
	Volume       int            `json:"volume"`
	RepeatMode   RepeatMode     `json:"repeat_mode"`
	LastActivity time.Time      `json:"last_activity"`
}

func newContext(chatID int64) Context {
	return Context{
		ChatID:       chatID,
		Volume:       100,
		RepeatMode:   RepeatOff,
		LastActivity: time.Now(),
	}
}

// startPlaying transitions to Playing with the given track, from any state.
func (c *Context) startPlaying(track sources.Track) {
	t := track
	c.Current = &t
	c.IsPlaying = true
	c.IsPaused = false
	c.touch()
}

// pause transitions Playing -> Paused. Reports false from any other state.
func (c *Context) pause() bool {
	if !c.IsPlaying || c.IsPaused {
		return false
	}
	c.IsPaused = true
	c.touch()
	return true
}

// resume transitions Paused -> Playing. Reports false from any other state.
func (c *Context) resume() bool {
	if !c.IsPlaying || !c.IsPaused {
		return false
	}
	c.IsPaused = false
	c.touch()
	return true
}

// stop transitions to Idle.
func (c *Context) stop() {
	c.Current = nil
	c.IsPlaying = false
	c.IsPaused = false
	c.touch()
}

func (c *Context) idle() bool {
	return !c.IsPlaying && c.Current == nil
}

func (c *Context) touch() {
	c.LastActivity = time.Now()
}
