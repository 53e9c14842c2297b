package blob

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"strings"

	"junks-backend/internal/metrics"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageBytes     = 1 << 20
	MaxImageDimension = 1920
	MaxSourceBytes    = 20 << 20
)

type Upload struct {
	Key         string
	Filename    string
	ContentType string
	Body        io.Reader
}

// Progress receives the upload completion percentage.
type Progress func(percent int)

type Uploader struct {
	store   Store
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewUploader(store Store, log *slog.Logger, m *metrics.Metrics) *Uploader {
	if log == nil {
		log = slog.Default()
	}
	return &Uploader{store: store, log: log, metrics: m}
}

// Upload compresses images that exceed the size or dimension limits, stores
// the result and returns its public URL. Every failure wraps ErrUploadFailed.
func (u *Uploader) Upload(ctx context.Context, up Upload, progress Progress) (string, error) {
	if u == nil || u.store == nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, ErrNotConfigured)
	}
	raw, err := io.ReadAll(io.LimitReader(up.Body, MaxSourceBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrUploadFailed, up.Filename, err)
	}
	if len(raw) > MaxSourceBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrUploadFailed, up.Filename, MaxSourceBytes)
	}

	data, contentType := raw, up.ContentType
	if strings.HasPrefix(contentType, "image/") {
		compressed, ct, cerr := Compress(raw)
		if cerr != nil {
			u.log.Warn("blob compress: kept original", slog.String("file", up.Filename), slog.String("error", cerr.Error()))
		} else {
			data, contentType = compressed, ct
		}
	}

	body := &progressReader{r: bytes.NewReader(data), total: int64(len(data)), report: progress}
	info, err := u.store.Put(ctx, up.Key, body, PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"filename": up.Filename},
	})
	u.metrics.UploadDone(err)
	if err != nil {
		u.log.Error("blob upload: failed", slog.String("key", up.Key), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if progress != nil {
		progress(100)
	}
	u.log.Info("blob upload: stored", slog.String("key", info.Key), slog.Int64("size", info.Size))
	return info.URL, nil
}

// Compress scales an image down to MaxImageDimension and re-encodes it as
// JPEG until it fits MaxImageBytes. Images already within both limits are
// returned unchanged.
func Compress(raw []byte) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}
	if len(raw) <= MaxImageBytes && cfg.Width <= MaxImageDimension && cfg.Height <= MaxImageDimension {
		return raw, "image/" + format, nil
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	img := scale(src, MaxImageDimension)

	var buf bytes.Buffer
	for quality := 85; quality >= 40; quality -= 15 {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		if buf.Len() <= MaxImageBytes {
			break
		}
	}
	return buf.Bytes(), "image/jpeg", nil
}

func scale(src image.Image, max int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return src
	}
	if w >= h {
		h = h * max / w
		w = max
	} else {
		w = w * max / h
		h = max
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.report != nil && p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 99 {
			pct = 99
		}
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
