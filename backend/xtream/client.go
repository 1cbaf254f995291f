// Package xtream is a Backend adapter for Xtream-style player APIs: a JSON
// channel catalog with loosely typed ids, cursor-paginated listing tables
// and an XMLTV guide feed. Wire shapes stay private to this package.
package xtream

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nexuspvr/backend"
	"nexuspvr/internal/fetch"
	"nexuspvr/internal/parallel"
	"nexuspvr/models"
)

const (
	defaultTimeout     = 30 * time.Second
	feedTimeout        = 120 * time.Second // guide feeds can be large
	maxResponseSize    = 32 * 1024 * 1024
	defaultListingPool = 20
)

// Config carries the adapter's target and tuning.
type Config struct {
	Host     string
	Username string
	Password string
	// Timeout bounds each API request. 0 selects the default.
	Timeout time.Duration
	// MaxGuidePages caps pagination per listings fetch. 0 means unlimited.
	MaxGuidePages int
	// ListingConcurrency caps parallel per-channel listing fetches.
	ListingConcurrency int
}

// Client implements backend.Backend against one Xtream-style server.
type Client struct {
	base     string
	username string
	password string

	doer          fetch.Doer
	feedClient    *http.Client
	maxGuidePages int
	listingLimit  int
}

var _ backend.Backend = (*Client)(nil)

// New builds a client for the configured server.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" || cfg.Username == "" {
		return nil, backend.ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := cfg.ListingConcurrency
	if limit <= 0 {
		limit = defaultListingPool
	}
	return &Client{
		base:          strings.TrimRight(cfg.Host, "/"),
		username:      cfg.Username,
		password:      cfg.Password,
		doer:          fetch.NewRetryDoer(&http.Client{Timeout: timeout}),
		feedClient:    &http.Client{Timeout: feedTimeout},
		maxGuidePages: cfg.MaxGuidePages,
		listingLimit:  limit,
	}, nil
}

func (c *Client) apiURL(action string, params url.Values) string {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("password", c.password)
	if action != "" {
		q.Set("action", action)
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return c.base + "/player_api.php?" + q.Encode()
}

type userInfo struct {
	Auth   int    `json:"auth"`
	Status string `json:"status"`
}

// Authenticate probes the player API with the configured credentials.
func (c *Client) Authenticate(ctx context.Context) error {
	var payload struct {
		UserInfo userInfo `json:"user_info"`
	}
	if err := c.getJSON(ctx, c.apiURL("", nil), &payload); err != nil {
		return err
	}
	if payload.UserInfo.Auth != 1 {
		if strings.EqualFold(payload.UserInfo.Status, "expired") {
			return backend.ErrSessionExpired
		}
		return backend.ErrAuthFailed
	}
	return nil
}

type rawChannel struct {
	StreamID     models.FlexID `json:"stream_id"`
	Name         string        `json:"name"`
	Num          int           `json:"num"`
	StreamIcon   string        `json:"stream_icon"`
	EPGChannelID string        `json:"epg_channel_id"`
	EPGSourceID  models.FlexID `json:"epg_source_id"`
	CategoryID   models.FlexID `json:"category_id"`
	LogoID       models.FlexID `json:"logo_id"`
}

// Channels fetches the full live-channel catalog.
func (c *Client) Channels(ctx context.Context) ([]models.Channel, error) {
	raw, err := fetch.AllPages[rawChannel](ctx, c.doer, c.apiURL("get_live_streams", nil), 0)
	if err != nil {
		return nil, wrapFetchErr("channels", err)
	}

	channels := make([]models.Channel, 0, len(raw))
	for _, rc := range raw {
		id := rc.StreamID.Int64()
		if id == 0 {
			continue
		}
		channels = append(channels, models.Channel{
			ID:           id,
			Name:         rc.Name,
			Number:       rc.Num,
			HasIcon:      rc.StreamIcon != "" || rc.LogoID != 0,
			GroupID:      rc.CategoryID.Int64(),
			LogoURL:      rc.StreamIcon,
			StreamURL:    c.StreamURL(id),
			TvgID:        rc.EPGChannelID,
			EPGSourceRef: rc.EPGSourceID.Int64(),
			LogoID:       rc.LogoID.Int64(),
		})
	}
	return channels, nil
}

type rawEPGSource struct {
	ID    models.FlexID `json:"id"`
	EPGID string        `json:"epg_id"`
}

// EPGSourceID fetches the guide identifier of one EPG source record.
func (c *Client) EPGSourceID(ctx context.Context, sourceRef int64) (string, error) {
	params := url.Values{"source_id": {strconv.FormatInt(sourceRef, 10)}}
	var src rawEPGSource
	if err := c.getJSON(ctx, c.apiURL("get_epg_source", params), &src); err != nil {
		return "", err
	}
	return src.EPGID, nil
}

type rawListing struct {
	ID          models.FlexID `json:"id"`
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle"`
	Description string        `json:"description"`
	Channel     string        `json:"channel"`
	Start       models.FlexID `json:"start_timestamp"`
	Stop        models.FlexID `json:"stop_timestamp"`
}

// Listings fetches one channel's program table, following page cursors up
// to the configured page bound.
func (c *Client) Listings(ctx context.Context, channelID int64) ([]models.Program, error) {
	params := url.Values{"stream_id": {strconv.FormatInt(channelID, 10)}}
	raw, err := fetch.AllPages[rawListing](ctx, c.doer, c.apiURL("get_simple_data_table", params), c.maxGuidePages)
	if err != nil {
		return nil, wrapFetchErr("listings", err)
	}

	programs := make([]models.Program, 0, len(raw))
	for _, rl := range raw {
		start, stop := rl.Start.Int64(), rl.Stop.Int64()
		if rl.Title == "" || stop <= start {
			continue
		}
		ext := rl.Channel
		if ext == "" {
			ext = strconv.FormatInt(channelID, 10)
		}
		id := rl.ID.Int64()
		if id == 0 {
			id = models.ProgramID(ext, start, stop)
		}
		programs = append(programs, models.Program{
			ID:          id,
			Name:        rl.Title,
			Subtitle:    rl.Subtitle,
			Description: rl.Description,
			Start:       start,
			End:         stop,
			ChannelID:   channelID,
			ChannelExt:  ext,
		})
	}
	return programs, nil
}

// AllListings fetches listings for many channels in parallel under the
// adapter's concurrency cap. A failing channel yields an empty slice; the
// batch always completes.
func (c *Client) AllListings(ctx context.Context, channelIDs []int64) (map[int64][]models.Program, error) {
	return parallel.Map(ctx, channelIDs, c.listingLimit, c.Listings), nil
}

// GuideFeed opens the server's XMLTV stream, transparently un-gzipping.
func (c *Client) GuideFeed(ctx context.Context) (io.ReadCloser, error) {
	u := c.base + "/xmltv.php?" + url.Values{
		"username": {c.username},
		"password": {c.password},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("guide feed request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.feedClient.Do(req)
	if err != nil {
		return nil, &backend.NetworkError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &backend.Error{Message: fmt.Sprintf("guide feed status %d", resp.StatusCode)}
	}

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: guide feed gzip: %v", backend.ErrInvalidResponse, err)
		}
		return &gzipReadCloser{gz: gz, body: resp.Body}, nil
	}
	return resp.Body, nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	body io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	g.gz.Close()
	return g.body.Close()
}

type rawRecording struct {
	ID          models.FlexID `json:"id"`
	Name        string        `json:"name"`
	Subtitle    string        `json:"subtitle"`
	Description string        `json:"description"`
	Start       models.FlexID `json:"start_timestamp"`
	Duration    models.FlexID `json:"duration"`
	StreamID    models.FlexID `json:"stream_id"`
	Status      string        `json:"status"`
	EPGEventID  models.FlexID `json:"epg_id"`
	Position    models.FlexID `json:"playback_position"`
}

// Recordings runs one status-filtered recording query.
func (c *Client) Recordings(ctx context.Context, filter backend.RecordingFilter) ([]models.Recording, error) {
	params := url.Values{"status": {string(filter)}}
	raw, err := fetch.AllPages[rawRecording](ctx, c.doer, c.apiURL("get_recordings", params), 0)
	if err != nil {
		return nil, wrapFetchErr("recordings", err)
	}

	recordings := make([]models.Recording, 0, len(raw))
	for _, rr := range raw {
		recordings = append(recordings, models.Recording{
			ID:               rr.ID.Int64(),
			Name:             rr.Name,
			Subtitle:         rr.Subtitle,
			Description:      rr.Description,
			StartTime:        rr.Start.Int64(),
			Duration:         rr.Duration.Int64(),
			ChannelID:        rr.StreamID.Int64(),
			Status:           recordingStatus(rr.Status),
			EPGEventID:       rr.EPGEventID.Int64(),
			PlaybackPosition: rr.Position.Int64(),
		})
	}
	return recordings, nil
}

func recordingStatus(s string) models.RecordingStatus {
	switch models.RecordingStatus(strings.ToLower(s)) {
	case models.StatusRecording, models.StatusReady, models.StatusFailed,
		models.StatusConflict, models.StatusDeleted:
		return models.RecordingStatus(strings.ToLower(s))
	default:
		return models.StatusPending
	}
}

// StreamURL returns the live stream URL for a channel.
func (c *Client) StreamURL(channelID int64) string {
	return fmt.Sprintf("%s/live/%s/%s/%d.ts", c.base, url.PathEscape(c.username), url.PathEscape(c.password), channelID)
}

// RecordingURL returns the playback URL for a finished recording.
func (c *Client) RecordingURL(recordingID int64) string {
	return fmt.Sprintf("%s/recordings/%s/%s/%d.mp4", c.base, url.PathEscape(c.username), url.PathEscape(c.password), recordingID)
}

// IconURL returns the channel icon URL.
func (c *Client) IconURL(channelID int64) string {
	return fmt.Sprintf("%s/images/%d.png", c.base, channelID)
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return &backend.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backend.ErrSessionExpired
	case resp.StatusCode != http.StatusOK:
		return &backend.Error{Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrInvalidResponse, err)
	}
	return nil
}

func wrapFetchErr(op string, err error) error {
	if backend.IsTransient(err) {
		return &backend.NetworkError{Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
