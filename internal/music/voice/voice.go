// Package voice defines the narrow contract the playback engine drives a
// chat's voice call through, plus a websocket client for the call bridge
// sidecar that owns the real group-call connections.
package voice

import "context"

// Session is the voice-call surface consumed by the playback engine. The
// engine treats per-chat connection state as opaque; it only observes it
// through IsJoined and the stream-end events.
type Session interface {
	Join(ctx context.Context, chatID int64) error
	Leave(ctx context.Context, chatID int64) error
	Play(ctx context.Context, chatID int64, streamURL string) error
	Pause(ctx context.Context, chatID int64) error
	Resume(ctx context.Context, chatID int64) error
	SetVolume(ctx context.Context, chatID int64, volume int) error
	IsJoined(chatID int64) bool
}

// StreamEndHandler receives the asynchronous end-of-stream signal for a chat.
type StreamEndHandler func(chatID int64)
