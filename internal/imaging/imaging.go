// Package imaging turns uploaded item pictures into a display image and a
// square thumbnail.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// Output sizes in pixels.
const (
	DisplaySize   = 1024
	ThumbnailSize = 256
)

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// MaxUploadBytes caps the size of an accepted upload.
const MaxUploadBytes = 8 << 20

// ErrUnsupported is returned for inputs that are not JPEG or PNG.
var ErrUnsupported = errors.New("unsupported image format")

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Result holds the encoded images. Both are JPEG.
type Result struct {
	Display   []byte
	Thumbnail []byte
	MIME      string
}

// Process sniffs and decodes an upload, then produces a display image that
// fits DisplaySize and a center-cropped square thumbnail.
func Process(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("image larger than %d bytes", MaxUploadBytes)
	}

	// Trust the bytes, not the client's content type.
	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	display, err := encode(fit(img, DisplaySize))
	if err != nil {
		return nil, err
	}
	thumb, err := encode(thumbnail(img, ThumbnailSize))
	if err != nil {
		return nil, err
	}

	return &Result{Display: display, Thumbnail: thumb, MIME: "image/jpeg"}, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so neither side exceeds limit. Smaller images are
// returned as they are.
func fit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img
	}

	newW, newH := limit, limit
	if w > h {
		newH = h * limit / w
	} else {
		newW = w * limit / h
	}
	dst := image.NewRGBA(image.Rect(0, 0, atLeastOne(newW), atLeastOne(newH)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// thumbnail crops the largest centered square out of img and scales it
// to size.
func thumbnail(img image.Image, size int) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	src := image.Rect(x0, y0, x0+side, y0+side)

	if side < size {
		size = side
	}
	dst := image.NewRGBA(image.Rect(0, 0, atLeastOne(size), atLeastOne(size)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
