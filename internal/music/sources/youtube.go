package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	youtube "github.com/kkdai/youtube/v2"
)

var (
	youtubeURLPattern  = regexp.MustCompile(`(?:https?://)?(?:www\.|music\.)?(youtube\.com|youtu\.be)/\S+`)
	searchVideoPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

	ErrNoVideoMatch = errors.New("no video found for the given query")
)

// YouTubeSource resolves YouTube URLs and free-text searches into tracks
// and extracts direct audio stream URLs.
type YouTubeSource struct {
	client  *youtube.Client
	baseURL string
	http    *http.Client
}

func NewYouTube() *YouTubeSource {
	return &YouTubeSource{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
		},
		baseURL: "https://www.youtube.com",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (y *YouTubeSource) SourceName() string { return SourceYouTube }

func (y *YouTubeSource) Match(input string) bool {
	return youtubeURLPattern.MatchString(input)
}

func (y *YouTubeSource) Resolve(ctx context.Context, input string) ([]Track, error) {
	input = strings.TrimSpace(input)

	videoURL := input
	if !isURL(input) {
		found, err := y.searchFirstVideoURL(ctx, input)
		if err != nil {
			return nil, err
		}
		videoURL = found
	}

	video, err := y.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("youtube video lookup: %w", err)
	}

	return []Track{{
		ID:       video.ID,
		Title:    video.Title,
		Artist:   video.Author,
		Duration: video.Duration,
		Source:   SourceYouTube,
		URL:      "https://youtu.be/" + video.ID,
	}}, nil
}

func (y *YouTubeSource) StreamURL(ctx context.Context, track Track) (string, error) {
	video, err := y.client.GetVideoContext(ctx, track.URL)
	if err != nil {
		return "", fmt.Errorf("youtube video lookup: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", errors.New("no audio formats found for video")
	}

	link, err := y.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return "", fmt.Errorf("youtube stream URL: %w", err)
	}
	return link, nil
}

// searchFirstVideoURL scrapes the results page for the first watchable video.
func (y *YouTubeSource) searchFirstVideoURL(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", y.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := y.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("youtube search failed with status %v", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := searchVideoPattern.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return "", ErrNoVideoMatch
	}
	return fmt.Sprintf("%s/watch?v=%s", y.baseURL, matches[1]), nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
