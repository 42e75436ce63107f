package store

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"alliance-observatory/internal/models"
)

func (s *Store) CreateScreenshot(ctx context.Context, sc *models.Screenshot) (int64, error) {
	var id int64
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO screenshots (alliance_id, filename, sha256, note, status, captured_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		sc.AllianceID, sc.Filename, sc.SHA256, sc.Note, string(models.StatusPending), sc.CapturedAt,
	).Scan(&id, &sc.CreatedAt)
	if err != nil {
		return 0, err
	}
	sc.ID = id
	sc.Status = models.StatusPending
	return id, nil
}

func (s *Store) ScreenshotByID(ctx context.Context, id int64) (*models.Screenshot, error) {
	var sc models.Screenshot
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, alliance_id, filename, sha256, detected_type, confidence, status, note,
		        archive_url, error_message, degraded, records_saved, captured_at, processed_at, created_at
		 FROM screenshots WHERE id = $1`,
		id,
	).Scan(&sc.ID, &sc.AllianceID, &sc.Filename, &sc.SHA256, &sc.DetectedType, &sc.Confidence,
		&sc.Status, &sc.Note, &sc.ArchiveURL, &sc.ErrorMessage, &sc.Degraded, &sc.RecordsSaved,
		&sc.CapturedAt, &sc.ProcessedAt, &sc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Store) MarkScreenshotProcessing(ctx context.Context, id int64) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE screenshots SET status = $2 WHERE id = $1`,
		id, string(models.StatusProcessing),
	)
	return err
}

// FinishScreenshot records the terminal outcome of a job.
func (s *Store) FinishScreenshot(ctx context.Context, sc *models.Screenshot) error {
	now := time.Now().UTC()
	sc.ProcessedAt = &now
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE screenshots SET
			detected_type = $2, confidence = $3, status = $4, error_message = $5,
			degraded = $6, records_saved = $7, archive_url = $8, captured_at = $9, processed_at = $10
		 WHERE id = $1`,
		sc.ID, string(sc.DetectedType), sc.Confidence, string(sc.Status), sc.ErrorMessage,
		sc.Degraded, sc.RecordsSaved, sc.ArchiveURL, sc.CapturedAt, sc.ProcessedAt,
	)
	return err
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune; the
// recognized text regularly carries multi-byte glyphs from player names.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (s *Store) RecordClassification(ctx context.Context, screenshotID int64, res models.ClassificationResult) error {
	preview := truncateUTF8(res.Text, 500)
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO classification_audit (screenshot_id, detected_type, confidence, method, text_preview)
		 VALUES ($1, $2, $3, $4, $5)`,
		screenshotID, string(res.Type), res.Confidence, res.Method, preview,
	)
	return err
}
