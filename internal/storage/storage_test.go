package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	st := &LocalStore{Dir: t.TempDir(), BaseURL: "/media/"}
	_, err := st.Store(context.Background(), "../etc/passwd", []byte("x"))
	assert.ErrorIs(t, err, ErrBadName)

	url, err := st.Store(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "/media/a.txt", url)
}

func TestSaveCoverWritesThumbnail(t *testing.T) {
	dir := t.TempDir()
	st := &LocalStore{Dir: dir, BaseURL: "/media"}

	cover, err := SaveCover(context.Background(), st, "book-1", pngBytes(t, 900, 600))
	require.NoError(t, err)
	assert.Equal(t, "/media/book-1.jpg", cover.URL)
	assert.Equal(t, "/media/book-1_thumb.jpg", cover.ThumbURL)

	raw, err := os.ReadFile(filepath.Join(dir, "book-1_thumb.jpg"))
	require.NoError(t, err)
	thumb, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, ThumbWidth, thumb.Bounds().Dx())
	assert.Equal(t, 200, thumb.Bounds().Dy())
}

func TestSaveCoverRejectsGarbage(t *testing.T) {
	_, err := SaveCover(context.Background(), &LocalStore{Dir: t.TempDir()}, "x", []byte("not an image"))
	assert.ErrorIs(t, err, ErrNotImage)
}
