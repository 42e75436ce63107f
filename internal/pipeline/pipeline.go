package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"alliance-observatory/internal/grouper"
	"alliance-observatory/internal/models"
	"alliance-observatory/internal/ocr"
	"alliance-observatory/internal/redis"
	"alliance-observatory/internal/resolver"
	"alliance-observatory/internal/storage"
	"alliance-observatory/internal/store"
)

// Job is one queued screenshot. TypeOverride bypasses the classifier; an
// explicit CapturedAt beats the filename timestamp.
type Job struct {
	ScreenshotID int64
	AllianceID   int64
	Filename     string
	Note         string
	Data         []byte
	TypeOverride models.ScreenshotType
	CapturedAt   *time.Time
	EnqueuedAt   time.Time
}

// Pipeline runs one screenshot through classification, extraction, parsing,
// identity resolution and event attachment. It owns the primary/fallback
// recognizer decision so degraded results are marked, never silent.
type Pipeline struct {
	log      *slog.Logger
	store    *store.Store
	redis    *redis.Client
	resolver *resolver.Resolver
	grouper  *grouper.Grouper
	archive  storage.ArchiveClient

	primary  ocr.Recognizer
	fallback ocr.Recognizer

	tz *time.Location
}

func New(
	log *slog.Logger,
	st *store.Store,
	redisClient *redis.Client,
	res *resolver.Resolver,
	grp *grouper.Grouper,
	archive storage.ArchiveClient,
	primary, fallback ocr.Recognizer,
	tz *time.Location,
) *Pipeline {
	if tz == nil {
		tz = time.UTC
	}
	return &Pipeline{
		log:      log,
		store:    st,
		redis:    redisClient,
		resolver: res,
		grouper:  grp,
		archive:  archive,
		primary:  primary,
		fallback: fallback,
		tz:       tz,
	}
}

// dedupTTL is how long a content hash blocks re-processing. Long enough to
// absorb double-taps and retried uploads, short enough that a deliberate
// re-submission eventually goes through.
const dedupTTL = 24 * time.Hour

// Process runs one job to completion and persists the outcome on the
// screenshot row. Structural failures are terminal for the job; they never
// propagate out as worker errors unless the store itself is down.
func (p *Pipeline) Process(ctx context.Context, job Job) *models.Screenshot {
	sc := &models.Screenshot{
		ID:         job.ScreenshotID,
		AllianceID: job.AllianceID,
		Filename:   job.Filename,
		Note:       job.Note,
		Status:     models.StatusProcessing,
	}

	if err := p.store.MarkScreenshotProcessing(ctx, job.ScreenshotID); err != nil {
		p.log.Error("screenshot_mark_processing_failed", "screenshot_id", job.ScreenshotID, "error", err)
	}

	p.run(ctx, job, sc)

	if err := p.store.FinishScreenshot(ctx, sc); err != nil {
		p.log.Error("screenshot_finish_failed", "screenshot_id", job.ScreenshotID, "error", err)
	}
	return sc
}

func (p *Pipeline) run(ctx context.Context, job Job, sc *models.Screenshot) {
	fail := func(msg string) {
		sc.Status = models.StatusFailed
		sc.ErrorMessage = msg
	}

	img, _, err := ocr.Load(job.Data)
	if err != nil {
		fail(err.Error())
		return
	}

	sum := sha256.Sum256(job.Data)
	hashHex := hex.EncodeToString(sum[:])
	sc.SHA256 = hashHex

	if p.redis != nil {
		fresh, err := p.redis.SetNX(ctx, "screenshot:hash:"+hashHex, job.ScreenshotID, dedupTTL)
		if err == nil && !fresh {
			fail("duplicate upload: identical image processed recently")
			return
		}
	}

	sc.CapturedAt = p.captureTime(job)

	rec := &fallbackRecognizer{
		log:      p.log,
		primary:  p.primary,
		fallback: p.fallback,
	}

	classification, err := p.classify(ctx, img, job, rec)
	if err != nil {
		fail(err.Error())
		return
	}
	sc.DetectedType = classification.Type
	sc.Confidence = classification.Confidence

	if err := p.store.RecordClassification(ctx, job.ScreenshotID, classification); err != nil {
		p.log.Warn("classification_audit_failed", "screenshot_id", job.ScreenshotID, "error", err)
	}

	if classification.Type == models.TypeUnknown {
		fail("screenshot type could not be determined")
		return
	}

	extractor := ocr.NewRegionExtractor(p.log, rec)
	fields, err := extractor.Extract(ctx, img, classification.Type)
	if err != nil {
		fail(fmt.Sprintf("region extraction: %v", err))
		return
	}

	parser, ok := ocr.ParserFor(classification.Type)
	if !ok {
		fail("no parser for screenshot type " + string(classification.Type))
		return
	}
	parsed, err := parser.Parse(fields)
	if err != nil {
		if errors.Is(err, ocr.ErrParseStructure) {
			fail("no structurally valid rows found")
			return
		}
		fail(fmt.Sprintf("parse: %v", err))
		return
	}

	saved, err := p.attach(ctx, job, sc, parsed)
	if err != nil {
		fail(fmt.Sprintf("attach records: %v", err))
		return
	}

	sc.Degraded = rec.degraded
	sc.RecordsSaved = saved
	sc.Status = models.StatusSucceeded

	if p.archive != nil {
		url, err := p.archive.ArchiveScreenshot(ctx, job.AllianceID, hashHex, job.Data)
		if err != nil {
			p.log.Warn("screenshot_archive_failed", "screenshot_id", job.ScreenshotID, "error", err)
		} else {
			sc.ArchiveURL = url
		}
	}

	p.log.Info("screenshot_processed",
		"screenshot_id", job.ScreenshotID,
		"type", string(classification.Type),
		"records_saved", saved,
		"degraded", rec.degraded,
	)
}

func (p *Pipeline) captureTime(job Job) time.Time {
	if job.CapturedAt != nil {
		return job.CapturedAt.UTC()
	}
	if t, ok := ocr.TimestampFromFilename(job.Filename, p.tz); ok {
		return t
	}
	return time.Now().UTC()
}

func (p *Pipeline) classify(ctx context.Context, img image.Image, job Job, rec ocr.Recognizer) (models.ClassificationResult, error) {
	if job.TypeOverride != "" && job.TypeOverride != models.TypeUnknown {
		return models.ClassificationResult{
			Type:       job.TypeOverride,
			Confidence: 1.0,
			Method:     "override",
		}, nil
	}

	classifier := ocr.NewClassifier(func(ctx context.Context, small image.Image) (string, error) {
		encoded, err := ocr.EncodePNG(small)
		if err != nil {
			return "", err
		}
		return rec.Recognize(ctx, encoded)
	})
	return classifier.Classify(ctx, img, job.Filename, job.Note)
}

// fallbackRecognizer tries the hosted model and degrades to the local engine
// when the call is throttled past its retry budget or unavailable. The
// degraded bit sticks for the rest of the job.
type fallbackRecognizer struct {
	log      *slog.Logger
	primary  ocr.Recognizer
	fallback ocr.Recognizer
	degraded bool
}

func (f *fallbackRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	if f.primary != nil && !f.degraded {
		text, err := f.primary.Recognize(ctx, img)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		if !errors.Is(err, ocr.ErrRateLimited) && !errors.Is(err, ocr.ErrUnavailable) {
			return "", err
		}
		f.log.Warn("recognizer_degraded", "error", err)
		f.degraded = true
	}

	if f.fallback == nil {
		return "", ocr.ErrUnavailable
	}
	return f.fallback.Recognize(ctx, img)
}
