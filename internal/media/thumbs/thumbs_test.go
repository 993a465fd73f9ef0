package thumbs_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelbriefapp/channelbrief-engine/internal/media/thumbs"
)

// testPNG renders a small two-tone image so the hash has some structure.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 40, G: 40, B: 200, A: 255})
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEncodeProducesStableHash(t *testing.T) {
	data := testPNG(t, 120, 90)

	first, err := thumbs.Encode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := thumbs.Encode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncodeRejectsGarbage(t *testing.T) {
	_, err := thumbs.Encode(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
}

func TestGeneratorDownloadsAndMemoizes(t *testing.T) {
	data := testPNG(t, 64, 64)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	gen := thumbs.NewGenerator(slog.New(slog.DiscardHandler))

	first, err := gen.BlurHash(context.Background(), server.URL+"/thumb.png")
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := gen.BlurHash(context.Background(), server.URL+"/thumb.png")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load(), "second call must come from the memo")
}

func TestGeneratorSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gen := thumbs.NewGenerator(slog.New(slog.DiscardHandler))

	_, err := gen.BlurHash(context.Background(), server.URL+"/missing.png")
	require.Error(t, err)
}

func TestGeneratorRejectsEmptyURL(t *testing.T) {
	gen := thumbs.NewGenerator(slog.New(slog.DiscardHandler))

	_, err := gen.BlurHash(context.Background(), "")
	require.Error(t, err)
}
