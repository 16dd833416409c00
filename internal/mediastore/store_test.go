package mediastore

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestLocalStorePutGetDelete(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "projects/p1/media/abc.jpg", "image/jpeg", []byte("bytes")))

	data, err := store.Get(ctx, "projects/p1/media/abc.jpg")
	require.NoError(t, err)
	require.Equal(t, []byte("bytes"), data)

	require.NoError(t, store.Delete(ctx, "projects/p1/media/abc.jpg"))
	_, err = store.Get(ctx, "projects/p1/media/abc.jpg")
	require.Error(t, err)
}

func TestPutWithThumbnailRejectsOversized(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	big := make([]byte, MaxObjectSize+1)

	err := PutWithThumbnail(context.Background(), store, "x", "application/octet-stream", big)
	require.Error(t, err)
}

func TestPutWithThumbnailGeneratesThumbnail(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	img := sampleJPEG(t, 800, 600)

	require.NoError(t, PutWithThumbnail(context.Background(), store, "photo.jpg", "image/jpeg", img))

	thumb, err := store.Get(context.Background(), ThumbnailKey("photo.jpg"))
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	require.Equal(t, ThumbnailWidth, decoded.Bounds().Dx())
}

func TestPutWithThumbnailSkipsNonImage(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	require.NoError(t, PutWithThumbnail(context.Background(), store, "doc.txt", "text/plain", []byte("not an image")))

	_, err := store.Get(context.Background(), ThumbnailKey("doc.txt"))
	require.Error(t, err)
}
