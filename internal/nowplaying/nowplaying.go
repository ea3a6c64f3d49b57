// Package nowplaying reads the current track from a station's streaming
// server API.
package nowplaying

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"stationhub/internal/upstream"
)

// Supported values of Station.MetadataAPIType.
const (
	TypeIcecast   = "icecast"
	TypeAzuracast = "azuracast"
	TypeShoutcast = "shoutcast"
)

var (
	ErrNotConfigured  = errors.New("station has no metadata api")
	ErrUnknownType    = errors.New("unknown metadata api type")
	ErrNothingPlaying = errors.New("nothing playing")
)

// Track is the current song of a station.
type Track struct {
	Artist    string    `json:"artist"`
	Title     string    `json:"title"`
	Album     string    `json:"album,omitempty"`
	Artwork   string    `json:"artwork,omitempty"`
	Listeners int       `json:"listeners"`
	FetchedAt time.Time `json:"fetched_at"`
}

type Config struct {
	Timeout   time.Duration
	CacheTTL  time.Duration
	UserAgent string
	// ITunesURL enables artwork lookup for tracks without artwork.
	ITunesURL string
}

type Client struct {
	http   *upstream.Client
	itunes string
	cache  *expirable.LRU[string, Track]
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Second
	}
	return &Client{
		http:   upstream.New("now-playing", cfg.Timeout, cfg.UserAgent),
		itunes: cfg.ITunesURL,
		cache:  expirable.NewLRU[string, Track](4096, nil, cfg.CacheTTL),
	}
}

// IsSupported reports whether apiType names a known server flavour.
func IsSupported(apiType string) bool {
	switch strings.ToLower(apiType) {
	case TypeIcecast, TypeAzuracast, TypeShoutcast:
		return true
	}
	return false
}

// Current fetches the track playing on apiURL.
func (c *Client) Current(ctx context.Context, apiURL, apiType string) (Track, error) {
	if apiURL == "" || apiType == "" {
		return Track{}, ErrNotConfigured
	}
	apiType = strings.ToLower(apiType)
	if !IsSupported(apiType) {
		return Track{}, fmt.Errorf("%w: %s", ErrUnknownType, apiType)
	}
	key := apiType + "|" + apiURL
	if t, ok := c.cache.Get(key); ok {
		return t, nil
	}

	resp, err := c.http.Get(ctx, apiURL, nil)
	if err != nil {
		return Track{}, err
	}

	var t Track
	switch apiType {
	case TypeIcecast:
		t, err = parseIcecast(resp.Body, apiURL)
	case TypeAzuracast:
		t, err = parseAzuracast(resp.Body)
	case TypeShoutcast:
		t, err = parseShoutcast(resp.Body)
	default:
		return Track{}, fmt.Errorf("%w: %s", ErrUnknownType, apiType)
	}
	if err != nil {
		return Track{}, err
	}
	if t.Artist == "" && t.Title == "" {
		return Track{}, ErrNothingPlaying
	}

	if t.Artwork == "" && c.itunes != "" && t.Artist != "" {
		t.Artwork = c.lookupArtwork(ctx, t.Artist, t.Title)
	}

	t.FetchedAt = time.Now()
	c.cache.Add(key, t)
	return t, nil
}

type icecastSource struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Listeners int    `json:"listeners"`
	ListenURL string `json:"listenurl"`
}

// parseIcecast handles status-json.xsl, where source is an object for a
// single mount and an array otherwise.
func parseIcecast(body []byte, apiURL string) (Track, error) {
	var doc struct {
		Icestats struct {
			Source json.RawMessage `json:"source"`
		} `json:"icestats"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Track{}, fmt.Errorf("icecast: %w", err)
	}

	var sources []icecastSource
	raw := strings.TrimSpace(string(doc.Icestats.Source))
	switch {
	case raw == "" || raw == "null":
		return Track{}, ErrNothingPlaying
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal(doc.Icestats.Source, &sources); err != nil {
			return Track{}, fmt.Errorf("icecast: %w", err)
		}
	default:
		var one icecastSource
		if err := json.Unmarshal(doc.Icestats.Source, &one); err != nil {
			return Track{}, fmt.Errorf("icecast: %w", err)
		}
		sources = append(sources, one)
	}
	if len(sources) == 0 {
		return Track{}, ErrNothingPlaying
	}

	// Prefer the mount the api url points at
	src := sources[0]
	if u, err := url.Parse(apiURL); err == nil {
		if mount := u.Query().Get("mount"); mount != "" {
			for _, s := range sources {
				if strings.HasSuffix(s.ListenURL, mount) {
					src = s
					break
				}
			}
		}
	}

	t := Track{Artist: src.Artist, Title: src.Title, Listeners: src.Listeners}
	if t.Artist == "" {
		t.Artist, t.Title = splitSongTitle(src.Title)
	}
	return t, nil
}

func parseAzuracast(body []byte) (Track, error) {
	var doc struct {
		NowPlaying struct {
			Song struct {
				Artist string `json:"artist"`
				Title  string `json:"title"`
				Album  string `json:"album"`
				Art    string `json:"art"`
			} `json:"song"`
		} `json:"now_playing"`
		Listeners struct {
			Current int `json:"current"`
		} `json:"listeners"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Track{}, fmt.Errorf("azuracast: %w", err)
	}
	song := doc.NowPlaying.Song
	return Track{
		Artist:    song.Artist,
		Title:     song.Title,
		Album:     song.Album,
		Artwork:   song.Art,
		Listeners: doc.Listeners.Current,
	}, nil
}

func parseShoutcast(body []byte) (Track, error) {
	var doc struct {
		SongTitle        string `json:"songtitle"`
		CurrentListeners int    `json:"currentlisteners"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Track{}, fmt.Errorf("shoutcast: %w", err)
	}
	artist, title := splitSongTitle(doc.SongTitle)
	return Track{Artist: artist, Title: title, Listeners: doc.CurrentListeners}, nil
}

// splitSongTitle splits the "Artist - Title" form streaming servers use.
func splitSongTitle(s string) (artist, title string) {
	s = strings.TrimSpace(s)
	if a, t, ok := strings.Cut(s, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", s
}

// lookupArtwork asks the iTunes search API for cover art. Failures are silent.
func (c *Client) lookupArtwork(ctx context.Context, artist, title string) string {
	q := url.Values{}
	q.Set("term", strings.TrimSpace(artist+" "+title))
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("limit", "1")

	var result struct {
		ResultCount int `json:"resultCount"`
		Results     []struct {
			ArtworkURL100 string `json:"artworkUrl100"`
		} `json:"results"`
	}
	if err := c.http.GetJSON(ctx, c.itunes+"?"+q.Encode(), &result); err != nil {
		return ""
	}
	if result.ResultCount == 0 || len(result.Results) == 0 {
		return ""
	}
	// 100x100 is the default; the same path serves larger renditions
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100", "600x600", 1)
}
