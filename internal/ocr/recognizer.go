package ocr

import "context"

// Recognizer is the capability boundary for text recognition: given image
// bytes (full screenshot or a field crop), produce raw text. Whether a hosted
// vision model or a local engine sits behind it is an implementation choice.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// NoopRecognizer always reports itself unavailable. Used when neither the
// hosted service nor a local engine is configured.
type NoopRecognizer struct{}

func (NoopRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	return "", ErrUnavailable
}
