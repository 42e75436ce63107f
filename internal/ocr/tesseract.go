package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer is the local fallback when the hosted model is
// unreachable or rate-limit retries run out. Accuracy on stylized game fonts
// is well below the vision model, so records produced from its output are
// flagged as degraded upstream.
type TesseractRecognizer struct {
	langs string
}

func NewTesseractRecognizer(langs string) *TesseractRecognizer {
	if langs == "" {
		langs = "eng"
	}
	return &TesseractRecognizer{langs: langs}
}

func (t *TesseractRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(t.langs, "+")...); err != nil {
		return "", fmt.Errorf("set tesseract language: %w", err)
	}
	client.SetPageSegMode(gosseract.PSM_AUTO)

	if err := client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set tesseract image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognize: %w", err)
	}
	return text, nil
}
