package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodedTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := uint8(0)
			if (x/8)%2 == 0 {
				c = 255
			}
			img.Set(x, y, color.NRGBA{c, c, c, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestLoad(t *testing.T) {
	data := encodedTestPNG(t, 32, 32)
	img, format, err := Load(data)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("width = %d, want 32", img.Bounds().Dx())
	}
}

func TestLoad_RejectsEmptyAndGarbage(t *testing.T) {
	if _, _, err := Load(nil); err == nil {
		t.Error("expected error for empty payload")
	}
	if _, _, err := Load([]byte("not an image")); err == nil {
		t.Error("expected error for undecodable payload")
	}
}

func TestLoad_RejectsOversized(t *testing.T) {
	big := make([]byte, MaxImageBytes+1)
	if _, _, err := Load(big); err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestUpscale(t *testing.T) {
	small := image.NewNRGBA(image.Rect(0, 0, 100, 40))
	out := Upscale(small, 400)
	if out.Bounds().Dx() != 400 {
		t.Errorf("upscaled width = %d, want 400", out.Bounds().Dx())
	}

	wide := image.NewNRGBA(image.Rect(0, 0, 800, 40))
	if got := Upscale(wide, 400); got.Bounds().Dx() != 800 {
		t.Errorf("already-wide image resized to %d", got.Bounds().Dx())
	}
}

func TestDownscale(t *testing.T) {
	big := image.NewNRGBA(image.Rect(0, 0, 2400, 1080))
	out := Downscale(big, 1024)
	if out.Bounds().Dx() != 1024 {
		t.Errorf("downscaled width = %d, want 1024", out.Bounds().Dx())
	}
}

func TestBinarize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	for x, v := range []uint8{10, 20, 240, 250} {
		img.Set(x, 0, color.NRGBA{v, v, v, 255})
	}

	out := Binarize(Normalize(img))
	for x := 0; x < 4; x++ {
		i := out.PixOffset(x, 0)
		if v := out.Pix[i]; v != 0 && v != 255 {
			t.Errorf("pixel %d = %d, want 0 or 255", x, v)
		}
	}
}
