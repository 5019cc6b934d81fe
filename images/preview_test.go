package images

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func TestRenderPreviewScalesDown(t *testing.T) {
	// not a conforming biometric template, so the signature fallback is used
	dg2 := append([]byte{0x75, 0x82, 0x00, 0x00, 0x5F, 0x2E}, testJPEG(t, 600, 800)...)

	out, err := RenderPreview(dg2)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 300, img.Bounds().Dx())
	require.Equal(t, 400, img.Bounds().Dy())
}

func TestRenderPreviewKeepsSmallImages(t *testing.T) {
	b64, err := RenderPreviewBase64(testJPEG(t, 120, 160))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 120, cfg.Width)
	require.Equal(t, 160, cfg.Height)
}

func TestRenderPreviewErrors(t *testing.T) {
	_, err := RenderPreview(nil)
	require.ErrorIs(t, err, ErrNoFaceImage)

	_, err = RenderPreview([]byte{0x75, 0x03, 0x01, 0x02, 0x03})
	require.ErrorIs(t, err, ErrNoFaceImage)

	_, err = RenderPreview([]byte{0xFF, 0xD8, 0x00, 0x00, 0xFF, 0xD9})
	require.Error(t, err)
}

func TestResizeToFit(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 500))
	require.Equal(t, image.Rect(0, 0, 400, 200), resizeToFit(src, 400, 400).Bounds())
	require.Equal(t, image.Rect(0, 0, 200, 100), resizeToFit(src, 0, 100).Bounds())
	require.Same(t, src, resizeToFit(src, 2000, 2000))
}
