// Package engine ties the queue store, per-chat playback state, voice
// session and track resolution together. All mutating operations for one
// chat funnel through that chat's lock, so back-to-back commands never
// interleave their effects; distinct chats proceed independently.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tunepilot/internal/music/queue"
	"tunepilot/internal/music/sources"
	"tunepilot/internal/music/voice"
	"tunepilot/internal/storage"
)

var (
	ErrVoiceUnavailable = errors.New("voice session unavailable")
	ErrStreamResolution = errors.New("could not resolve a playable stream")
	ErrInvalidVolume    = errors.New("volume must be between 0 and 200")
	ErrInvalidRepeat    = errors.New("repeat mode must be off, one or all")
)

// TrackResolver converts user input into tracks and tracks into playable
// stream URLs. Idempotent and side-effect free from the engine's view.
type TrackResolver interface {
	Resolve(ctx context.Context, input string) ([]sources.Track, error)
	StreamURL(ctx context.Context, track sources.Track) (string, error)
}

// Persistence is the narrow storage contract the engine consumes.
type Persistence interface {
	SaveStats(storage.StatsRecord) error
	LoadStats() (storage.StatsRecord, error)
	SaveQueueSnapshot([]byte) error
	LoadQueueSnapshot() ([]byte, error)
}

// Scrobbler reports completed plays to a listening-history service.
// Strictly best-effort: the engine logs failures and moves on.
type Scrobbler interface {
	Scrobble(ctx context.Context, track sources.Track, userID int64) error
}

// Params carries the engine's collaborators. Everything is injected; the
// engine holds no global state.
type Params struct {
	Log       *zap.Logger
	Queue     *queue.Store
	Voice     voice.Session
	Resolver  TrackResolver
	Persist   Persistence
	Scrobbler Scrobbler // optional

	ResolveTimeout time.Duration
	VoiceTimeout   time.Duration
}

type Engine struct {
	log       *zap.Logger
	queue     *queue.Store
	voice     voice.Session
	resolver  TrackResolver
	persist   Persistence
	scrobbler Scrobbler
	stats     *Stats

	resolveTimeout time.Duration
	voiceTimeout   time.Duration

	mu    sync.Mutex
	chats map[int64]*chatState
}

// chatState is the per-chat critical section: its lock is held for the full
// duration of every state-changing operation, awaited voice calls included.
type chatState struct {
	mu          sync.Mutex
	ctx         Context
	requestedBy int64
}

func New(p Params) *Engine {
	if p.ResolveTimeout <= 0 {
		p.ResolveTimeout = 30 * time.Second
	}
	if p.VoiceTimeout <= 0 {
		p.VoiceTimeout = 10 * time.Second
	}
	return &Engine{
		log:            p.Log,
		queue:          p.Queue,
		voice:          p.Voice,
		resolver:       p.Resolver,
		persist:        p.Persist,
		scrobbler:      p.Scrobbler,
		stats:          NewStats(),
		resolveTimeout: p.ResolveTimeout,
		voiceTimeout:   p.VoiceTimeout,
	}
}

// state returns the chat's state, creating it lazily on first use.
func (e *Engine) state(chatID int64) *chatState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chats == nil {
		e.chats = make(map[int64]*chatState)
	}
	cs, ok := e.chats[chatID]
	if !ok {
		cs = &chatState{ctx: newContext(chatID)}
		e.chats[chatID] = cs
	}
	return cs
}

// lookup returns the chat's state without creating it.
func (e *Engine) lookup(chatID int64) (*chatState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.chats[chatID]
	return cs, ok
}

// Play resolves a stream for the track and starts playback in the chat's
// voice call. Playback state is not touched until the voice layer has
// confirmed the stream: any failure leaves the previous state intact.
func (e *Engine) Play(ctx context.Context, chatID int64, track sources.Track, userID int64) error {
	cs := e.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return e.playLocked(ctx, cs, chatID, track, userID, true)
}

// PlayQuery resolves user input (URL or free text) and either starts
// playback or, when the chat is already playing, appends to its queue.
// Returns the resolved track and whether it was queued instead of played.
func (e *Engine) PlayQuery(ctx context.Context, chatID int64, input string, userID int64) (sources.Track, bool, error) {
	rctx, cancel := context.WithTimeout(ctx, e.resolveTimeout)
	defer cancel()

	tracks, err := e.resolver.Resolve(rctx, input)
	if err != nil {
		return sources.Track{}, false, fmt.Errorf("%w: %v", ErrStreamResolution, err)
	}
	if len(tracks) == 0 {
		return sources.Track{}, false, fmt.Errorf("%w: no tracks for input", ErrStreamResolution)
	}
	track := tracks[0]

	e.stats.RecordUser(userID)

	cs := e.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ctx.IsPlaying {
		if err := e.queue.Enqueue(chatID, track, userID); err != nil {
			return sources.Track{}, false, err
		}
		return track, true, nil
	}

	if err := e.playLocked(ctx, cs, chatID, track, userID, true); err != nil {
		return sources.Track{}, false, err
	}
	return track, false, nil
}

// playLocked performs the commit sequence: resolve, join, play, then
// transition. Must be called with cs.mu held.
func (e *Engine) playLocked(ctx context.Context, cs *chatState, chatID int64, track sources.Track, userID int64, record bool) error {
	if e.voice == nil {
		return ErrVoiceUnavailable
	}

	rctx, cancel := context.WithTimeout(ctx, e.resolveTimeout)
	defer cancel()
	streamURL, err := e.resolver.StreamURL(rctx, track)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamResolution, err)
	}

	vctx, vcancel := context.WithTimeout(ctx, e.voiceTimeout)
	defer vcancel()
	if !e.voice.IsJoined(chatID) {
		if err := e.voice.Join(vctx, chatID); err != nil {
			return fmt.Errorf("%w: %v", ErrVoiceUnavailable, err)
		}
	}
	if err := e.voice.Play(vctx, chatID, streamURL); err != nil {
		return fmt.Errorf("%w: %v", ErrVoiceUnavailable, err)
	}

	// Stream confirmed; commit the transition.
	cs.ctx.startPlaying(track)
	cs.requestedBy = userID

	if record {
		e.queue.AddToHistory(chatID, track, userID)
	}

	e.stats.RecordPlay()
	if err := e.persist.SaveStats(e.stats.Record()); err != nil {
		e.log.Warn("stats persist failed", zap.Error(err))
	}

	if e.scrobbler != nil {
		go e.scrobble(track, userID)
	}

	e.log.Info("playing track",
		zap.Int64("chat_id", chatID),
		zap.String("title", track.Title),
		zap.String("source", track.Source))
	return nil
}

func (e *Engine) scrobble(track sources.Track, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.scrobbler.Scrobble(ctx, track, userID); err != nil {
		e.log.Warn("scrobble failed", zap.String("title", track.Title), zap.Error(err))
	}
}

// Enqueue appends a resolved track to the chat's queue.
func (e *Engine) Enqueue(chatID int64, track sources.Track, userID int64) error {
	e.stats.RecordUser(userID)
	return e.queue.Enqueue(chatID, track, userID)
}

// Pause transitions Playing -> Paused. Reports false without touching the
// voice session when the chat is not in a pausable state.
func (e *Engine) Pause(ctx context.Context, chatID int64) (bool, error) {
	cs, ok := e.lookup(chatID)
	if !ok {
		return false, nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.ctx.IsPlaying || cs.ctx.IsPaused {
		return false, nil
	}
	if e.voice == nil {
		return false, ErrVoiceUnavailable
	}

	vctx, cancel := context.WithTimeout(ctx, e.voiceTimeout)
	defer cancel()
	if err := e.voice.Pause(vctx, chatID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrVoiceUnavailable, err)
	}

	cs.ctx.pause()
	return true, nil
}

// Resume transitions Paused -> Playing.
func (e *Engine) Resume(ctx context.Context, chatID int64) (bool, error) {
	cs, ok := e.lookup(chatID)
	if !ok {
		return false, nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.ctx.IsPlaying || !cs.ctx.IsPaused {
		return false, nil
	}
	if e.voice == nil {
		return false, ErrVoiceUnavailable
	}

	vctx, cancel := context.WithTimeout(ctx, e.voiceTimeout)
	defer cancel()
	if err := e.voice.Resume(vctx, chatID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrVoiceUnavailable, err)
	}

	cs.ctx.resume()
	return true, nil
}

// Stop leaves the voice call and transitions the chat to Idle. Chats without
// a playback context are a soft no: nothing to leave, no context created.
func (e *Engine) Stop(ctx context.Context, chatID int64) (bool, error) {
	cs, ok := e.lookup(chatID)
	if !ok {
		return false, nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return e.stopLocked(ctx, cs, chatID)
}

func (e *Engine) stopLocked(ctx context.Context, cs *chatState, chatID int64) (bool, error) {
	if e.voice == nil {
		return false, ErrVoiceUnavailable
	}

	vctx, cancel := context.WithTimeout(ctx, e.voiceTimeout)
	defer cancel()
	if err := e.voice.Leave(vctx, chatID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrVoiceUnavailable, err)
	}

	cs.ctx.stop()
	return true, nil
}

// Skip advances to the next queued track. With an empty queue it stops
// playback and returns nil.
func (e *Engine) Skip(ctx context.Context, chatID int64) (*sources.Track, error) {
	cs := e.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return e.advanceLocked(ctx, cs, chatID)
}

func (e *Engine) advanceLocked(ctx context.Context, cs *chatState, chatID int64) (*sources.Track, error) {
	entry := e.queue.DequeueNext(chatID)
	if entry == nil {
		if _, err := e.stopLocked(ctx, cs, chatID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// History was already recorded by the dequeue.
	if err := e.playLocked(ctx, cs, chatID, entry.Track, entry.RequestedBy, false); err != nil {
		return nil, err
	}
	track := entry.Track
	return &track, nil
}

// OnStreamEnd handles the voice layer's asynchronous end-of-stream signal:
// honor the repeat mode, then advance like a skip. Unknown chats are a no-op.
func (e *Engine) OnStreamEnd(chatID int64) {
	cs, ok := e.lookup(chatID)
	if !ok {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.resolveTimeout+e.voiceTimeout)
	defer cancel()

	switch cs.ctx.RepeatMode {
	case RepeatOne:
		if cs.ctx.Current != nil {
			track := *cs.ctx.Current
			if err := e.playLocked(ctx, cs, chatID, track, cs.requestedBy, false); err != nil {
				e.log.Warn("repeat replay failed", zap.Int64("chat_id", chatID), zap.Error(err))
			}
			return
		}
	case RepeatAll:
		if cs.ctx.Current != nil {
			if err := e.queue.Enqueue(chatID, *cs.ctx.Current, cs.requestedBy); err != nil {
				e.log.Warn("repeat re-enqueue dropped", zap.Int64("chat_id", chatID), zap.Error(err))
			}
		}
	}

	if _, err := e.advanceLocked(ctx, cs, chatID); err != nil {
		e.log.Warn("auto-advance failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// SetVolume validates and applies a volume in [0,200]. Only valid while the
// chat has an active stream.
func (e *Engine) SetVolume(ctx context.Context, chatID int64, volume int) error {
	if volume < 0 || volume > 200 {
		return ErrInvalidVolume
	}

	cs, ok := e.lookup(chatID)
	if !ok {
		return ErrVoiceUnavailable
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.ctx.IsPlaying {
		return ErrVoiceUnavailable
	}
	if e.voice == nil {
		return ErrVoiceUnavailable
	}

	vctx, cancel := context.WithTimeout(ctx, e.voiceTimeout)
	defer cancel()
	if err := e.voice.SetVolume(vctx, chatID, volume); err != nil {
		return fmt.Errorf("%w: %v", ErrVoiceUnavailable, err)
	}

	cs.ctx.Volume = volume
	cs.ctx.touch()
	return nil
}

// SetRepeatMode switches the chat's repeat behavior.
func (e *Engine) SetRepeatMode(chatID int64, mode RepeatMode) error {
	if !ValidRepeatMode(mode) {
		return ErrInvalidRepeat
	}
	cs := e.state(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.ctx.RepeatMode = mode
	cs.ctx.touch()
	return nil
}

// Context returns a copy of the chat's playback context.
func (e *Engine) Context(chatID int64) (Context, bool) {
	cs, ok := e.lookup(chatID)
	if !ok {
		return Context{}, false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.ctx, true
}

// Queue access passthroughs for the command surface.

func (e *Engine) GetQueue(chatID int64, page, perPage int) queue.Page {
	return e.queue.Paginate(chatID, page, perPage)
}

func (e *Engine) GetHistory(chatID int64, limit int) []queue.Entry {
	return e.queue.History(chatID, limit)
}

func (e *Engine) ShuffleQueue(chatID int64) bool { return e.queue.Shuffle(chatID) }
func (e *Engine) ClearQueue(chatID int64) bool   { return e.queue.Clear(chatID) }

func (e *Engine) RemoveAt(chatID int64, position int) *queue.Entry {
	return e.queue.RemoveAt(chatID, position)
}

func (e *Engine) MoveTrack(chatID int64, from, to int) bool {
	return e.queue.Move(chatID, from, to)
}

// StatsSnapshot is the aggregate view served by /stats and the health
// endpoint.
type StatsSnapshot struct {
	Uptime      time.Duration `json:"uptime"`
	TotalPlays  int64         `json:"total_plays"`
	TotalUsers  int64         `json:"total_users"`
	ActiveChats int           `json:"active_chats"`
	Queued      int           `json:"queued"`
}

func (e *Engine) Stats() StatsSnapshot {
	e.mu.Lock()
	active := len(e.chats)
	e.mu.Unlock()

	return StatsSnapshot{
		Uptime:      e.stats.Uptime(),
		TotalPlays:  e.stats.TotalPlays(),
		TotalUsers:  e.stats.TotalUsers(),
		ActiveChats: active,
		Queued:      e.queue.TotalSize(),
	}
}

// LoadState seeds stats and restores the queue snapshot from persistence.
// Called once at startup, before any commands are served.
func (e *Engine) LoadState() error {
	rec, err := e.persist.LoadStats()
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	e.stats.Load(rec)

	b, err := e.persist.LoadQueueSnapshot()
	if err != nil {
		return fmt.Errorf("load queue snapshot: %w", err)
	}
	if len(b) == 0 {
		return nil
	}

	var snap queue.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode queue snapshot: %w", err)
	}
	e.queue.Restore(snap)
	return nil
}

// SaveState flushes stats and the queue snapshot to persistence.
func (e *Engine) SaveState() error {
	if err := e.persist.SaveStats(e.stats.Record()); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}

	b, err := json.Marshal(e.queue.Snapshot())
	if err != nil {
		return fmt.Errorf("encode queue snapshot: %w", err)
	}
	if err := e.persist.SaveQueueSnapshot(b); err != nil {
		return fmt.Errorf("save queue snapshot: %w", err)
	}
	return nil
}

// RunSnapshotLoop periodically flushes state until ctx is cancelled, with a
// final flush on the way out.
func (e *Engine) RunSnapshotLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := e.SaveState(); err != nil {
				e.log.Warn("final state flush failed", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := e.SaveState(); err != nil {
				e.log.Warn("periodic state flush failed", zap.Error(err))
			}
		}
	}
}

// RunIdleSweep evicts chats that have been Idle with an empty queue for
// longer than ttl. Runs until ctx is cancelled.
func (e *Engine) RunIdleSweep(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepIdle(ttl)
		}
	}
}

func (e *Engine) sweepIdle(ttl time.Duration) {
	e.mu.Lock()
	candidates := make(map[int64]*chatState, len(e.chats))
	for id, cs := range e.chats {
		candidates[id] = cs
	}
	e.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	for id, cs := range candidates {
		cs.mu.Lock()
		evict := cs.ctx.idle() && cs.ctx.LastActivity.Before(cutoff) && e.queue.Size(id) == 0
		cs.mu.Unlock()
		if !evict {
			continue
		}

		// Re-validate under both locks: a play may have committed between
		// the check above and the delete.
		e.mu.Lock()
		cs.mu.Lock()
		if cs.ctx.idle() && cs.ctx.LastActivity.Before(cutoff) && e.queue.Size(id) == 0 {
			delete(e.chats, id)
			e.log.Debug("evicted idle chat context", zap.Int64("chat_id", id))
		}
		cs.mu.Unlock()
		e.mu.Unlock()
	}
}
