package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tunepilot/internal/music/sources"
)

// stubSource matches inputs containing its marker and resolves to one track.
type stubSource struct {
	name   string
	marker string
}

func (s *stubSource) Match(input string) bool {
	return strings.Contains(input, s.marker)
}

func (s *stubSource) Resolve(_ context.Context, input string) ([]sources.Track, error) {
	return []sources.Track{{ID: input, Source: s.name}}, nil
}

func (s *stubSource) StreamURL(_ context.Context, track sources.Track) (string, error) {
	return "stream://" + s.name + "/" + track.ID, nil
}

func (s *stubSource) SourceName() string { return s.name }

func TestResolveURLDispatchOrder(t *testing.T) {
	first := &stubSource{name: sources.SourceYouTube, marker: "youtube.com"}
	second := &stubSource{name: sources.SourceSpotify, marker: "spotify.com"}
	// Generic-style catch-all registered last.
	catchAll := &stubSource{name: sources.SourceGeneric, marker: "http"}

	r := New(first, second, catchAll)

	tests := []struct {
		input      string
		wantSource string
	}{
		{"https://youtube.com/watch?v=x", sources.SourceYouTube},
		{"https://open.spotify.com/track/x", sources.SourceSpotify},
		{"https://radio.example/stream.mp3", sources.SourceGeneric},
	}
	for _, tt := range tests {
		tracks, err := r.Resolve(context.Background(), tt.input)
		if err != nil {
			t.Fatalf("resolve %q: %v", tt.input, err)
		}
		if tracks[0].Source != tt.wantSource {
			t.Errorf("resolve %q: source = %q, want %q", tt.input, tracks[0].Source, tt.wantSource)
		}
	}
}

func TestResolveFreeTextGoesToYouTube(t *testing.T) {
	yt := &stubSource{name: sources.SourceYouTube, marker: "youtube.com"}
	sp := &stubSource{name: sources.SourceSpotify, marker: "spotify.com"}
	r := New(yt, sp)

	tracks, err := r.Resolve(context.Background(), "never gonna give you up")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tracks[0].Source != sources.SourceYouTube {
		t.Errorf("free text resolved by %q, want youtube", tracks[0].Source)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := New(&stubSource{name: sources.SourceSpotify, marker: "spotify.com"})

	_, err := r.Resolve(context.Background(), "https://unknown.example/x")
	if !errors.Is(err, ErrNoMatchingSource) {
		t.Errorf("got %v, want ErrNoMatchingSource", err)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	r := New(&stubSource{name: sources.SourceYouTube, marker: "youtube.com"})

	if _, err := r.Resolve(context.Background(), "   "); err == nil {
		t.Error("blank input accepted")
	}
}

func TestStreamURLDispatch(t *testing.T) {
	yt := &stubSource{name: sources.SourceYouTube, marker: "youtube.com"}
	r := New(yt)

	url, err := r.StreamURL(context.Background(), sources.Track{ID: "x", Source: sources.SourceYouTube})
	if err != nil {
		t.Fatalf("stream url: %v", err)
	}
	if url != "stream://youtube/x" {
		t.Errorf("url = %q", url)
	}

	_, err = r.StreamURL(context.Background(), sources.Track{ID: "x", Source: "soundcloud"})
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("got %v, want ErrUnknownSource", err)
	}
}
