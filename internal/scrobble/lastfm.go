// Package scrobble reports completed plays to Last.fm. Consumers treat it
// as best-effort: errors are returned for logging, never acted upon.
package scrobble

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tunepilot/internal/music/sources"
	"tunepilot/pkg/retrylimit"
)

const lastfmAPI = "https://ws.audioscrobbler.com/2.0/"

type Client struct {
	apiKey     string
	apiSecret  string
	sessionKey string
	http       *http.Client
	lim        *retrylimit.Limiter
	log        *zap.Logger
}

func New(apiKey, apiSecret, sessionKey string, log *zap.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		sessionKey: sessionKey,
		http:       &http.Client{Timeout: 15 * time.Second},
		lim:        retrylimit.NewLimiter(3, 1, 5),
		log:        log,
	}
}

// Scrobble submits one completed play.
func (c *Client) Scrobble(ctx context.Context, track sources.Track, userID int64) error {
	params := map[string]string{
		"method":    "track.scrobble",
		"api_key":   c.apiKey,
		"sk":        c.sessionKey,
		"artist":    track.Artist,
		"track":     track.Title,
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
	}
	if track.Duration > 0 {
		params["duration"] = strconv.Itoa(int(track.Duration.Seconds()))
	}
	params["api_sig"] = c.sign(params)
	params["format"] = "json"

	err := retrylimit.Do(ctx, func() error {
		return c.post(ctx, params)
	}, c.lim, retrylimit.DefaultConfig())
	if err != nil {
		return err
	}

	c.log.Debug("scrobbled track",
		zap.String("title", track.Title),
		zap.Int64("user_id", userID))
	return nil
}

func (c *Client) post(ctx context.Context, params map[string]string) error {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lastfmAPI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &retrylimit.StatusError{Code: resp.StatusCode, Msg: "lastfm scrobble"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var payload struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != 0 {
		return fmt.Errorf("lastfm error %d: %s", payload.Error, payload.Message)
	}
	return nil
}

// sign computes the Last.fm API signature: md5 of the concatenated
// alphabetically sorted key-value pairs followed by the shared secret.
// The format parameter is excluded by protocol.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(params[k])
	}
	sb.WriteString(c.apiSecret)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
