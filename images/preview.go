package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"

	"github.com/gmrtd/gmrtd/document"
	xdraw "golang.org/x/image/draw"
	"pault.ag/go/cbeff/jpeg2000"
)

// Preview box and palette size for rendered face images.
const (
	PreviewWidth  = 400
	PreviewHeight = 400
	previewColors = 256
)

var ErrNoFaceImage = errors.New("no face image in DG2")

// RenderPreview decodes the face image of raw EF.DG2 and returns it as PNG,
// scaled to fit the preview box. The structured DG2 parse is tried first;
// chips with non-conforming biometric templates fall back to signature
// based extraction.
func RenderPreview(dg2 []byte) ([]byte, error) {
	if len(dg2) == 0 {
		return nil, ErrNoFaceImage
	}

	img, err := decodeFace(dg2)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	slog.Debug("Face image decoded", "width", bounds.Dx(), "height", bounds.Dy())

	return encodePNG(img, PreviewWidth, PreviewHeight, previewColors, png.BestCompression)
}

// RenderPreviewBase64 is RenderPreview with base64 output for JSON bodies.
func RenderPreviewBase64(dg2 []byte) (string, error) {
	b, err := RenderPreview(dg2)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func decodeFace(dg2 []byte) (image.Image, error) {
	parsed, err := parseDG2(dg2)
	if err == nil && parsed != nil {
		for i, face := range parsed.Images {
			if len(face.Image) == 0 {
				continue
			}
			img, err := decodeImage(face.Image)
			if err == nil {
				return img, nil
			}
			slog.Debug("Failed to decode structured DG2 image", "image_index", i, "error", err)
		}
	} else {
		slog.Debug("Structured DG2 parse failed, scanning for image signature", "error", err)
	}

	if raw := ExtractFaceImage(dg2); raw != nil {
		return decodeImage(raw)
	}
	if offset := bytes.Index(dg2, jp2Signature); offset >= 0 {
		return decodeImage(dg2[offset:])
	}
	return nil, ErrNoFaceImage
}

// parseDG2 guards against parser panics on malformed templates.
func parseDG2(dg2 []byte) (parsed *document.DG2, err error) {
	defer func() {
		if r := recover(); r != nil {
			parsed, err = nil, fmt.Errorf("DG2 parse panicked: %v", r)
		}
	}()
	return document.NewDG2(dg2)
}

// decodeImage tries JPEG, then JPEG2000, then any registered format.
func decodeImage(data []byte) (image.Image, error) {
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := jpeg2000.Parse(data); err == nil {
		return img, nil
	}
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("unsupported or invalid image format")
}

// encodePNG downscales img to fit maxW x maxH, palettizes it when colors > 0
// and encodes it at the given compression level.
func encodePNG(img image.Image, maxW, maxH, colors int, level png.CompressionLevel) ([]byte, error) {
	if maxW > 0 || maxH > 0 {
		img = resizeToFit(img, maxW, maxH)
	}

	out := img
	if colors > 0 {
		pal := palette.Plan9
		if colors <= 216 {
			pal = palette.WebSafe
		}
		dst := image.NewPaletted(img.Bounds(), pal)
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, image.Point{})
		out = dst
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// resizeToFit keeps the aspect ratio and never upscales.
func resizeToFit(src image.Image, maxW, maxH int) image.Image {
	bw := src.Bounds().Dx()
	bh := src.Bounds().Dy()

	if maxW <= 0 && maxH <= 0 {
		return src
	}
	if maxW <= 0 {
		maxW = int(math.Round(float64(bw) * float64(maxH) / float64(bh)))
	}
	if maxH <= 0 {
		maxH = int(math.Round(float64(bh) * float64(maxW) / float64(bw)))
	}

	scale := math.Min(float64(maxW)/float64(bw), float64(maxH)/float64(bh))
	if scale >= 1.0 {
		return src
	}
	w := int(math.Max(1, math.Round(float64(bw)*scale)))
	h := int(math.Max(1, math.Round(float64(bh)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
