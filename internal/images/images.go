// Package images downloads station artwork, normalizes it to a PNG thumbnail
// and stores it in the image bucket.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"stationhub/internal/models"
	"stationhub/internal/storage"
	"stationhub/internal/upstream"
)

var (
	ErrNoSource    = errors.New("station has no logo or favicon")
	ErrNotImage    = errors.New("content is not an image")
	ErrUnsupported = errors.New("image format not supported")
	ErrTooLarge    = errors.New("image too large")
)

// Uploader is the part of the storage client the pipeline writes to.
type Uploader interface {
	UploadImage(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error)
}

var _ Uploader = (*storage.Client)(nil)

type Config struct {
	Size      int   // longest edge in pixels
	MaxBytes  int64 // download and upload cap
	Timeout   time.Duration
	UserAgent string
}

type Pipeline struct {
	store    Uploader
	http     *upstream.Client
	size     int
	maxBytes int64
}

func New(store Uploader, cfg Config) *Pipeline {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Pipeline{
		store:    store,
		http:     upstream.New("image-fetch", cfg.Timeout, cfg.UserAgent, upstream.WithMaxBody(cfg.MaxBytes)),
		size:     cfg.Size,
		maxBytes: cfg.MaxBytes,
	}
}

// Fetch downloads the station's logo, falling back to its favicon, and
// returns the public URL of the stored thumbnail.
func (p *Pipeline) Fetch(ctx context.Context, st *models.Station) (string, error) {
	var lastErr error = ErrNoSource
	for _, src := range []string{st.Logo, st.Favicon} {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		resp, err := p.http.Get(ctx, src, nil)
		if err != nil {
			lastErr = fmt.Errorf("download %s: %w", src, err)
			continue
		}
		url, err := p.save(ctx, st, resp.Body)
		if err != nil {
			lastErr = err
			continue
		}
		return url, nil
	}
	return "", lastErr
}

// Store processes an uploaded image for st.
func (p *Pipeline) Store(ctx context.Context, st *models.Station, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > p.maxBytes {
		return "", ErrTooLarge
	}
	return p.save(ctx, st, data)
}

func (p *Pipeline) save(ctx context.Context, st *models.Station, data []byte) (string, error) {
	thumb, err := p.Thumbnail(data)
	if err != nil {
		return "", err
	}
	return p.store.UploadImage(ctx, Key(st), bytes.NewReader(thumb), "image/png")
}

// Thumbnail sniffs, decodes and scales data so its longest edge is at most
// the configured size, and encodes it as PNG. Smaller images are not upscaled.
func (p *Pipeline) Thumbnail(data []byte) ([]byte, error) {
	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return nil, ErrNotImage
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind.MIME.Value)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrUnsupported
	}
	if longest := max(w, h); longest > p.size {
		w = max(1, w*p.size/longest)
		h = max(1, h*p.size/longest)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// KeyPrefix is shared by every stored thumbnail.
const KeyPrefix = "stations/"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-\s]+`)

// Key names the stored thumbnail: stations/<public id>-<sanitized name>.png
func Key(st *models.Station) string {
	name := strings.TrimSpace(unsafeChars.ReplaceAllString(st.Name, ""))
	name = strings.ToLower(strings.Join(strings.Fields(name), "_"))
	if len(name) > 48 {
		name = name[:48]
	}
	if name == "" {
		name = "station"
	}
	return fmt.Sprintf("%s%s-%s.png", KeyPrefix, st.PublicID, name)
}
