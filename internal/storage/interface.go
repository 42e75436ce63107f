package storage

import "context"

// ArchiveClient stores the original screenshot bytes after processing so
// flagged records can be reviewed against their source image.
type ArchiveClient interface {
	ArchiveScreenshot(ctx context.Context, allianceID int64, sha256Hex string, imageData []byte) (string, error)
}
