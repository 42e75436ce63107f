package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// MaxImageBytes caps uploads; anything larger is rejected before decoding.
const MaxImageBytes = 5 * 1024 * 1024

// Load decodes raw upload bytes, enforcing the size cap and the PNG/JPEG
// whitelist. Returns the decoded image and the detected format name.
func Load(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if format != "png" && format != "jpeg" {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return img, format, nil
}

// Normalize prepares a full screenshot for text recognition: grayscale,
// contrast stretch, light sharpening.
func Normalize(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.Sharpen(out, 0.5)
	return out
}

// Binarize thresholds a grayscale image around its mean luminance. Game UI
// crops are high-contrast text on flat panels, so a global threshold is enough.
func Binarize(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	var sum, count int64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			sum += int64(img.Pix[i])
			count++
		}
	}
	if count == 0 {
		return img
	}
	threshold := uint8(sum / count)

	out := imaging.Clone(img)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := out.PixOffset(x-bounds.Min.X, y-bounds.Min.Y)
			v := uint8(0)
			if out.Pix[i] > threshold {
				v = 255
			}
			out.Pix[i] = v
			out.Pix[i+1] = v
			out.Pix[i+2] = v
			out.Pix[i+3] = 255
		}
	}
	return out
}

// Upscale enlarges small crops so numeric fields hit a usable glyph size.
func Upscale(img *image.NRGBA, minWidth int) *image.NRGBA {
	if img.Bounds().Dx() >= minWidth {
		return img
	}
	return imaging.Resize(img, minWidth, 0, imaging.Lanczos)
}

// Downscale shrinks a full screenshot for the cheap whole-image
// classification pass.
func Downscale(img image.Image, maxWidth int) *image.NRGBA {
	if img.Bounds().Dx() <= maxWidth {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

// EncodePNG serializes an image for the recognizer boundary.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG serializes with lossy compression; used for the downscaled
// classification pass where fidelity matters less than payload size.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
