package sources

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var spotifyTrackPattern = regexp.MustCompile(`(?:open\.spotify\.com/track/|spotify:track:)([a-zA-Z0-9]+)`)

// SpotifySource resolves Spotify track links and searches through the Web
// API. Spotify has no public audio streams, so playable URLs come from a
// YouTube lookup of "title artist".
type SpotifySource struct {
	client  *spotify.Client
	youtube *YouTubeSource
}

func NewSpotify(ctx context.Context, clientID, clientSecret string, yt *YouTubeSource) *SpotifySource {
	creds := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return &SpotifySource{
		client:  spotify.New(creds.Client(ctx)),
		youtube: yt,
	}
}

func (s *SpotifySource) SourceName() string { return SourceSpotify }

func (s *SpotifySource) Match(input string) bool {
	return spotifyTrackPattern.MatchString(input)
}

func (s *SpotifySource) Resolve(ctx context.Context, input string) ([]Track, error) {
	input = strings.TrimSpace(input)

	if matches := spotifyTrackPattern.FindStringSubmatch(input); len(matches) > 1 {
		full, err := s.client.GetTrack(ctx, spotify.ID(matches[1]))
		if err != nil {
			return nil, fmt.Errorf("spotify track lookup: %w", err)
		}
		return []Track{fromFullTrack(full)}, nil
	}

	results, err := s.client.Search(ctx, input, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, errors.New("no spotify track found for query")
	}

	return []Track{fromFullTrack(&results.Tracks.Tracks[0])}, nil
}

func (s *SpotifySource) StreamURL(ctx context.Context, track Track) (string, error) {
	query := track.Title
	if track.Artist != "" {
		query += " " + track.Artist
	}

	ytTracks, err := s.youtube.Resolve(ctx, query)
	if err != nil {
		return "", fmt.Errorf("spotify to youtube fallback: %w", err)
	}
	return s.youtube.StreamURL(ctx, ytTracks[0])
}

func fromFullTrack(full *spotify.FullTrack) Track {
	artist := ""
	if len(full.Artists) > 0 {
		artist = full.Artists[0].Name
	}
	return Track{
		ID:       string(full.ID),
		Title:    full.Name,
		Artist:   artist,
		Duration: full.TimeDuration(),
		Source:   SourceSpotify,
		URL:      full.ExternalURLs["spotify"],
	}
}
