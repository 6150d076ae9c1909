package resolver

import (
	"context"
	"errors"
	"strings"

	"tunepilot/internal/music/sources"
)

var (
	ErrNoMatchingSource = errors.New("no matching source found")
	ErrUnknownSource    = errors.New("unknown track source")
)

// Resolver dispatches user input and stream-URL requests to the registered
// sources. URL inputs go to the first source whose Match accepts them, in
// registration order; free-text queries go to YouTube search.
type Resolver struct {
	order  []sources.Source
	byName map[string]sources.Source
}

func New(srcs ...sources.Source) *Resolver {
	r := &Resolver{
		byName: make(map[string]sources.Source, len(srcs)),
	}
	for _, s := range srcs {
		r.order = append(r.order, s)
		r.byName[s.SourceName()] = s
	}
	return r
}

// Resolve turns a URL or free-text query into tracks.
func (r *Resolver) Resolve(ctx context.Context, input string) ([]sources.Track, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("empty input")
	}

	if isURL(input) {
		for _, s := range r.order {
			if s.Match(input) {
				return s.Resolve(ctx, input)
			}
		}
		return nil, ErrNoMatchingSource
	}

	yt, ok := r.byName[sources.SourceYouTube]
	if !ok {
		return nil, errors.New("youtube source not available for title search")
	}
	return yt.Resolve(ctx, input)
}

// StreamURL produces a playable audio URL for a previously resolved track.
func (r *Resolver) StreamURL(ctx context.Context, track sources.Track) (string, error) {
	s, ok := r.byName[track.Source]
	if !ok {
		return "", ErrUnknownSource
	}
	return s.StreamURL(ctx, track)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
