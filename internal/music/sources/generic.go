package sources

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
)

// GenericSource accepts any direct HTTP(S) URL and plays it as-is.
// Used for radio streams and plain audio file links.
type GenericSource struct{}

func NewGeneric() *GenericSource { return &GenericSource{} }

func (g *GenericSource) SourceName() string { return SourceGeneric }

func (g *GenericSource) Match(input string) bool {
	return isURL(input)
}

func (g *GenericSource) Resolve(_ context.Context, input string) ([]Track, error) {
	input = strings.TrimSpace(input)
	if !isURL(input) {
		return nil, errors.New("generic source requires a direct URL")
	}

	title := input
	if u, err := url.Parse(input); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			title = base
		} else {
			title = u.Host
		}
	}

	return []Track{{
		ID:     input,
		Title:  title,
		Source: SourceGeneric,
		URL:    input,
	}}, nil
}

func (g *GenericSource) StreamURL(_ context.Context, track Track) (string, error) {
	if track.URL == "" {
		return "", errors.New("generic track has no URL")
	}
	return track.URL, nil
}
