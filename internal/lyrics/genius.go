// Package lyrics looks up song lyrics through the Genius search API.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"tunepilot/pkg/retrylimit"
)

const geniusAPI = "https://api.genius.com"

var ErrNotFound = errors.New("no lyrics found")

// Result is one lyrics search hit.
type Result struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
	Thumb  string `json:"thumbnail,omitempty"`
}

type Client struct {
	token string
	http  *http.Client
	lim   *retrylimit.Limiter
	log   *zap.Logger
}

func New(accessToken string, log *zap.Logger) *Client {
	return &Client{
		token: accessToken,
		http:  &http.Client{Timeout: 15 * time.Second},
		lim:   retrylimit.NewLimiter(5, 1, 10),
		log:   log,
	}
}

// Search returns the best lyrics match for a free-text query.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	var result *Result

	err := retrylimit.Do(ctx, func() error {
		r, err := c.search(ctx, query)
		if errors.Is(err, ErrNotFound) {
			// An empty hit list is a final answer, not a transient failure.
			return nil
		}
		if err != nil {
			return err
		}
		result = r
		return nil
	}, c.lim, retrylimit.DefaultConfig())

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrNotFound
	}
	return result, nil
}

func (c *Client) search(ctx context.Context, query string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s", geniusAPI, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &retrylimit.StatusError{Code: resp.StatusCode, Msg: "genius search"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response struct {
			Hits []struct {
				Result struct {
					Title     string `json:"title"`
					URL       string `json:"url"`
					ThumbURL  string `json:"song_art_image_thumbnail_url"`
					PrimaryBy struct {
						Name string `json:"name"`
					} `json:"primary_artist"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode genius response: %w", err)
	}

	if len(payload.Response.Hits) == 0 {
		return nil, ErrNotFound
	}

	hit := payload.Response.Hits[0].Result
	c.log.Debug("lyrics hit", zap.String("query", query), zap.String("title", hit.Title))

	return &Result{
		Title:  hit.Title,
		Artist: hit.PrimaryBy.Name,
		URL:    hit.URL,
		Thumb:  hit.ThumbURL,
	}, nil
}
