package blob

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 46, G: 154, B: 254, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadStoresAndReportsProgress(t *testing.T) {
	store := NewMemory("https://cdn.example.com")
	u := NewUploader(store, nil, nil)

	var seen []int
	url, err := u.Upload(context.Background(), Upload{
		Key:         "uploads/1-logo.png",
		Filename:    "logo.png",
		ContentType: "image/png",
		Body:        bytes.NewReader(pngBytes(t, 64, 64)),
	}, func(p int) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/uploads/1-logo.png", url)
	require.NotEmpty(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])

	info, _, err := store.Get("uploads/1-logo.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
}

func TestCompressScalesLargeImages(t *testing.T) {
	out, ct, err := Compress(pngBytes(t, 3840, 1000))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, MaxImageDimension, cfg.Width)
	assert.Equal(t, 500, cfg.Height)
	assert.LessOrEqual(t, len(out), MaxImageBytes)
}

func TestCompressKeepsThinImagesVisible(t *testing.T) {
	cases := []struct {
		w, h         int
		wantW, wantH int
	}{
		{4000, 1, MaxImageDimension, 1},
		{1, 4000, 1, MaxImageDimension},
	}
	for _, tc := range cases {
		out, _, err := Compress(pngBytes(t, tc.w, tc.h))
		require.NoError(t, err)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, tc.wantW, cfg.Width)
		assert.Equal(t, tc.wantH, cfg.Height)
	}
}

func TestCompressRejectsNonImages(t *testing.T) {
	_, _, err := Compress([]byte("not an image"))
	assert.Error(t, err)
}

func TestUploadFailureWrapsSentinel(t *testing.T) {
	store := NewMemory("")
	store.FailWith(errors.New("bucket unavailable"))
	u := NewUploader(store, nil, nil)

	_, err := u.Upload(context.Background(), Upload{Key: "k", Filename: "a.txt", Body: strings.NewReader("x")}, nil)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Empty(t, store.Keys())

	var nilUploader *Uploader
	_, err = nilUploader.Upload(context.Background(), Upload{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestKeys(t *testing.T) {
	now := time.UnixMilli(1754000000000)
	assert.Equal(t, "site-assets/hero-image-1754000000000", HeroImageKey(now))
	assert.Equal(t, "uploads/1754000000000-my-photo.jpg", UploadKey(now, "My Photo.JPG"))
	assert.True(t, strings.HasPrefix(AvatarKey("thabo.png"), "testimonials/avatars/"))
	assert.True(t, strings.HasSuffix(AvatarKey("C:\\pics\\thabo.png"), "-thabo.png"))
	assert.Equal(t, "uploads/1754000000000-file", UploadKey(now, "???"))
}
