package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestProcessFormats(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg", createTestJPEG(100, 60)},
		{"png", createTestPNG(100, 60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Process(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if result.MIME != "image/jpeg" {
				t.Errorf("expected image/jpeg, got %s", result.MIME)
			}
			if w, h := decodeSize(t, result.Display); w != 100 || h != 60 {
				t.Errorf("small image should not be resized: got %dx%d", w, h)
			}
			if w, h := decodeSize(t, result.Thumbnail); w != 60 || h != 60 {
				t.Errorf("expected 60x60 thumbnail, got %dx%d", w, h)
			}
		})
	}
}

func TestProcessDownscale(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(2048, 1024)))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}

	if w, h := decodeSize(t, result.Display); w != DisplaySize || h != DisplaySize/2 {
		t.Errorf("expected %dx%d display, got %dx%d", DisplaySize, DisplaySize/2, w, h)
	}
	if w, h := decodeSize(t, result.Thumbnail); w != ThumbnailSize || h != ThumbnailSize {
		t.Errorf("expected %dx%d thumbnail, got %dx%d", ThumbnailSize, ThumbnailSize, w, h)
	}
}

func TestProcessRejectsOtherFormats(t *testing.T) {
	for _, data := range [][]byte{[]byte("not an image"), []byte("GIF89a...")} {
		_, err := Process(bytes.NewReader(data))
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported for %q, got %v", data, err)
		}
	}
}
