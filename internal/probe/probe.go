// Package probe connects to a live stream and reports what it is serving.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
)

// ErrUnreachable wraps connection failures and non-2xx answers.
var ErrUnreachable = errors.New("stream unreachable")

const sniffBytes = 64 << 10

// Result describes one probe.
type Result struct {
	URL         string        `json:"url"`
	Reachable   bool          `json:"reachable"`
	StatusCode  int           `json:"status_code"`
	ContentType string        `json:"content_type"`
	Codec       string        `json:"codec"`
	Bitrate     int           `json:"bitrate"` // kbps, 0 when not advertised
	Name        string        `json:"name,omitempty"`
	Genre       string        `json:"genre,omitempty"`
	Description string        `json:"description,omitempty"`
	Homepage    string        `json:"homepage,omitempty"`
	Latency     time.Duration `json:"latency"`
}

type Prober struct {
	client    *http.Client
	userAgent string
}

func New(timeout time.Duration, userAgent string) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Probe opens url, reads the ICY headers and a short sample of audio.
func (p *Prober) Probe(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Icy-MetaData", "1")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return &Result{URL: url}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	res := &Result{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Latency:     time.Since(start),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	res.Reachable = true

	res.Name = resp.Header.Get("icy-name")
	res.Genre = resp.Header.Get("icy-genre")
	res.Description = resp.Header.Get("icy-description")
	res.Homepage = resp.Header.Get("icy-url")
	res.Bitrate = parseBitrate(resp.Header)

	// A failed sample read still leaves the headers usable
	sample, _ := io.ReadAll(io.LimitReader(resp.Body, sniffBytes))
	res.Codec = detectCodec(sample, res.ContentType)

	return res, nil
}

// parseBitrate reads icy-br, falling back to the bitrate entry of ice-audio-info.
func parseBitrate(h http.Header) int {
	if br := h.Get("icy-br"); br != "" {
		// Some servers send "128,128"
		if n, err := strconv.Atoi(strings.TrimSpace(strings.Split(br, ",")[0])); err == nil {
			return n
		}
	}
	for _, part := range strings.Split(h.Get("ice-audio-info"), ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "bitrate" || k == "ice-bitrate" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

// detectCodec trusts the container signature first, then the content type.
func detectCodec(sample []byte, contentType string) string {
	if len(sample) > 0 {
		if _, ft, err := tag.Identify(bytes.NewReader(sample)); err == nil {
			switch ft {
			case tag.MP3:
				return "MP3"
			case tag.FLAC:
				return "FLAC"
			case tag.OGG:
				return "OGG"
			case tag.M4A, tag.M4B, tag.M4P:
				return "AAC"
			case tag.ALAC:
				return "ALAC"
			}
		}
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mt {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3":
		return "MP3"
	case "audio/aac", "audio/aacp", "audio/x-aac", "audio/mp4":
		return "AAC"
	case "application/ogg", "audio/ogg", "audio/vorbis":
		return "OGG"
	case "audio/opus":
		return "OPUS"
	case "audio/flac", "audio/x-flac":
		return "FLAC"
	case "application/vnd.apple.mpegurl", "application/x-mpegurl", "audio/mpegurl", "audio/x-mpegurl":
		return "HLS"
	}
	return ""
}

// Fields returns the station columns a probe result refreshes. Values the
// server did not advertise are left out.
func (r *Result) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if r.Codec != "" {
		fields["codec"] = r.Codec
	}
	if r.Bitrate > 0 {
		fields["bitrate"] = r.Bitrate
	}
	return fields
}
