package sources

import (
	"context"
	"time"
)

const (
	SourceYouTube = "youtube"
	SourceSpotify = "spotify"
	SourceGeneric = "generic"
)

// Track is an immutable track reference. The Source tag decides which
// provider resolves its playable stream URL.
type Track struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Duration time.Duration `json:"duration"`
	Source   string        `json:"source"`
	URL      string        `json:"url"`
}

type Source interface {
	// Match checks if this source can handle the given input
	Match(input string) bool

	// Resolve turns a URL or free-text query into one or more tracks
	Resolve(ctx context.Context, input string) ([]Track, error)

	// StreamURL produces a directly playable audio URL for a track
	StreamURL(ctx context.Context, track Track) (string, error)

	// SourceName returns the string identifier ("youtube", "spotify", ...)
	SourceName() string
}
