package storage

import (
	"context"
	"fmt"
	"strings"
)

// Simulator stands in for the archive in local development and tests. URLs
// are deterministic so assertions can predict them.
type Simulator struct {
	bucket   string
	endpoint string
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (s *Simulator) ArchiveScreenshot(_ context.Context, allianceID int64, sha256Hex string, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	ep := s.endpoint
	if ep == "" {
		ep = "https://archive.example.invalid"
	}
	bucket := s.bucket
	if bucket == "" {
		bucket = "alliance-observatory"
	}

	return fmt.Sprintf("%s/%s/screenshots/%d/%s.jpg", strings.TrimRight(ep, "/"), bucket, allianceID, sha256Hex), nil
}
