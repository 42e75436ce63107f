package ocr

import "errors"

var (
	// ErrUnknownScreenshot is terminal for a screenshot; the caller reports it
	// and never retries automatically.
	ErrUnknownScreenshot = errors.New("screenshot type could not be determined")

	// ErrParseStructure means zero structurally-expected rows were found.
	ErrParseStructure = errors.New("screen layout unrecognizable")

	// ErrRateLimited is returned after bounded retries against the hosted
	// recognition service are exhausted.
	ErrRateLimited = errors.New("recognition service rate limited")

	// ErrUnavailable covers a recognizer that is not configured or whose
	// backing engine is missing.
	ErrUnavailable = errors.New("recognizer unavailable")

	ErrImageTooLarge     = errors.New("image exceeds size limit")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)
