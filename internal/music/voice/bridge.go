package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrBridgeClosed = errors.New("voice bridge connection closed")

const (
	opJoin      = "join"
	opLeave     = "leave"
	opPlay      = "play"
	opPause     = "pause"
	opResume    = "resume"
	opSetVolume = "set_volume"

	eventStreamEnd = "stream_end"
	eventKicked    = "kicked"
)

type request struct {
	ID     string `json:"id"`
	Op     string `json:"op"`
	ChatID int64  `json:"chat_id"`
	URL    string `json:"url,omitempty"`
	Volume int    `json:"volume,omitempty"`
}

type message struct {
	ID     string `json:"id,omitempty"`
	OK     bool   `json:"ok,omitempty"`
	Error  string `json:"error,omitempty"`
	Event  string `json:"event,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

// Bridge is a Session implementation speaking a small JSON protocol to a
// call-bridge sidecar over a websocket. Requests carry a correlation ID;
// the sidecar pushes stream_end events for chats whose audio finished.
type Bridge struct {
	url string
	log *zap.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.Mutex
	pending  map[string]chan message
	joined   map[int64]bool
	onEnd    StreamEndHandler
	closed   bool
	connedCh chan struct{}
}

func NewBridge(url string, log *zap.Logger) *Bridge {
	return &Bridge{
		url:      url,
		log:      log,
		pending:  make(map[string]chan message),
		joined:   make(map[int64]bool),
		connedCh: make(chan struct{}),
	}
}

// OnStreamEnd registers the handler invoked for every stream_end event.
// Must be called before Run.
func (b *Bridge) OnStreamEnd(h StreamEndHandler) {
	b.mu.Lock()
	b.onEnd = h
	b.mu.Unlock()
}

// Run connects to the bridge and services it until ctx is cancelled,
// reconnecting with backoff on connection loss.
func (b *Bridge) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := b.connect(ctx); err != nil {
			b.log.Warn("voice bridge connect failed", zap.Error(err))
		} else {
			backoff = time.Second
			b.readLoop(ctx)
		}

		select {
		case <-ctx.Done():
			b.shutdown()
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// WaitReady blocks until the first connection is established or ctx ends.
func (b *Bridge) WaitReady(ctx context.Context) error {
	select {
	case <-b.connedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.url, err)
	}

	b.writeMu.Lock()
	b.conn = conn
	b.writeMu.Unlock()

	b.mu.Lock()
	select {
	case <-b.connedCh:
	default:
		close(b.connedCh)
	}
	b.mu.Unlock()

	b.log.Info("voice bridge connected", zap.String("url", b.url))
	return nil
}

func (b *Bridge) readLoop(ctx context.Context) {
	for {
		var msg message
		if err := b.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				b.log.Warn("voice bridge read error", zap.Error(err))
			}
			b.failPending()
			return
		}

		switch {
		case msg.Event != "":
			b.dispatchEvent(msg)
		case msg.ID != "":
			b.mu.Lock()
			ch, ok := b.pending[msg.ID]
			if ok {
				delete(b.pending, msg.ID)
			}
			b.mu.Unlock()
			if ok {
				ch <- msg
			}
		}
	}
}

func (b *Bridge) dispatchEvent(msg message) {
	switch msg.Event {
	case eventStreamEnd:
		b.mu.Lock()
		h := b.onEnd
		b.mu.Unlock()
		if h != nil {
			// Handlers may issue voice commands; keep the read loop free.
			go h(msg.ChatID)
		}
	case eventKicked:
		b.mu.Lock()
		delete(b.joined, msg.ChatID)
		b.mu.Unlock()
		b.log.Info("kicked from voice chat", zap.Int64("chat_id", msg.ChatID))
	default:
		b.log.Debug("unhandled bridge event", zap.String("event", msg.Event))
	}
}

// failPending unblocks every in-flight command after a connection loss and
// forgets the joined set: a restarted sidecar holds no calls, so every chat
// must re-join before its next play.
func (b *Bridge) failPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.pending {
		delete(b.pending, id)
		ch <- message{ID: id, Error: ErrBridgeClosed.Error()}
	}
	b.joined = make(map[int64]bool)
}

func (b *Bridge) shutdown() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.writeMu.Lock()
	if b.conn != nil {
		_ = b.conn.Close()
	}
	b.writeMu.Unlock()
}

func (b *Bridge) command(ctx context.Context, req request) error {
	req.ID = uuid.NewString()

	ch := make(chan message, 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBridgeClosed
	}
	b.pending[req.ID] = ch
	b.mu.Unlock()

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	b.writeMu.Lock()
	conn := b.conn
	if conn == nil {
		b.writeMu.Unlock()
		b.removePending(req.ID)
		return ErrBridgeClosed
	}
	err = conn.WriteMessage(websocket.TextMessage, payload)
	b.writeMu.Unlock()
	if err != nil {
		b.removePending(req.ID)
		return fmt.Errorf("bridge write: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return fmt.Errorf("bridge %s: %s", req.Op, resp.Error)
		}
		return nil
	case <-ctx.Done():
		b.removePending(req.ID)
		return ctx.Err()
	}
}

func (b *Bridge) removePending(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *Bridge) Join(ctx context.Context, chatID int64) error {
	if err := b.command(ctx, request{Op: opJoin, ChatID: chatID}); err != nil {
		return err
	}
	b.mu.Lock()
	b.joined[chatID] = true
	b.mu.Unlock()
	return nil
}

func (b *Bridge) Leave(ctx context.Context, chatID int64) error {
	err := b.command(ctx, request{Op: opLeave, ChatID: chatID})
	b.mu.Lock()
	delete(b.joined, chatID)
	b.mu.Unlock()
	return err
}

func (b *Bridge) Play(ctx context.Context, chatID int64, streamURL string) error {
	return b.command(ctx, request{Op: opPlay, ChatID: chatID, URL: streamURL})
}

func (b *Bridge) Pause(ctx context.Context, chatID int64) error {
	return b.command(ctx, request{Op: opPause, ChatID: chatID})
}

func (b *Bridge) Resume(ctx context.Context, chatID int64) error {
	return b.command(ctx, request{Op: opResume, ChatID: chatID})
}

func (b *Bridge) SetVolume(ctx context.Context, chatID int64, volume int) error {
	return b.command(ctx, request{Op: opSetVolume, ChatID: chatID, Volume: volume})
}

func (b *Bridge) IsJoined(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.joined[chatID]
}
