package ocr

import (
	"context"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"alliance-observatory/internal/models"
)

// relRect is a region in fractions of the full image, so one region set
// covers every device resolution. The screens follow a fixed layout contract.
type relRect struct {
	X0, Y0, X1, Y1 float64
}

func (r relRect) crop(img image.Image) image.Image {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	rect := image.Rect(
		b.Min.X+int(r.X0*w),
		b.Min.Y+int(r.Y0*h),
		b.Min.X+int(r.X1*w),
		b.Min.Y+int(r.Y1*h),
	)
	return imaging.Crop(img, rect)
}

// regionSets maps each known screenshot type to its named field regions.
// The header band carries the screen title and event totals; the roster band
// carries the scrollable row list. Ranked screens put rank and score columns
// inside the roster band, so those fields share its crop.
var regionSets = map[models.ScreenshotType]map[string]relRect{
	models.TypeAllianceMembers: {
		"header": {0.0, 0.0, 1.0, 0.14},
		"roster": {0.0, 0.14, 1.0, 0.96},
	},
	models.TypeContribution: {
		"header": {0.0, 0.0, 1.0, 0.16},
		"roster": {0.0, 0.16, 1.0, 0.96},
	},
	models.TypeBearEvent: {
		"header": {0.0, 0.0, 1.0, 0.18},
		"roster": {0.0, 0.18, 1.0, 0.96},
	},
	models.TypeBearOverview: {
		"banner": {0.0, 0.05, 1.0, 0.45},
		"totals": {0.0, 0.45, 1.0, 0.85},
	},
	models.TypeFoundrySignup: {
		"header": {0.0, 0.0, 1.0, 0.20},
		"roster": {0.0, 0.20, 1.0, 0.96},
	},
	models.TypeFoundryResult: {
		"header": {0.0, 0.0, 1.0, 0.16},
		"roster": {0.0, 0.16, 1.0, 0.96},
	},
	models.TypeChampionshipSignup: {
		"header": {0.0, 0.0, 1.0, 0.22},
		"roster": {0.0, 0.22, 1.0, 0.96},
	},
	models.TypeAlliancePower: {
		"header": {0.0, 0.0, 1.0, 0.14},
		"roster": {0.0, 0.14, 1.0, 0.96},
	},
}

// cropMinWidth is the upscale floor for crops; small numeric fields need the
// extra resolution far more than the whole image does.
const cropMinWidth = 900

// RegionExtractor crops a classified screenshot into its per-type field
// regions and runs recognition on each crop independently.
type RegionExtractor struct {
	recognizer Recognizer
	log        *slog.Logger
}

func NewRegionExtractor(log *slog.Logger, recognizer Recognizer) *RegionExtractor {
	return &RegionExtractor{recognizer: recognizer, log: log}
}

// Extract returns raw text per field name. A field whose crop yields no text
// or whose recognition fails maps to the empty string; the parser decides per
// field whether that is fatal. Only context cancellation aborts extraction.
func (e *RegionExtractor) Extract(ctx context.Context, img image.Image, screenType models.ScreenshotType) (map[string]string, error) {
	set, ok := regionSets[screenType]
	if !ok {
		return nil, ErrUnknownScreenshot
	}

	out := make(map[string]string, len(set))
	for field, region := range set {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := e.extractField(ctx, img, region)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			e.log.Warn("region_extraction_failed",
				"screenshot_type", string(screenType),
				"field", field,
				"error", err,
			)
			text = ""
		}
		out[field] = text
	}
	return out, nil
}

func (e *RegionExtractor) extractField(ctx context.Context, img image.Image, region relRect) (string, error) {
	crop := Normalize(region.crop(img))
	crop = Upscale(crop, cropMinWidth)
	crop = Binarize(crop)

	encoded, err := EncodePNG(crop)
	if err != nil {
		return "", err
	}
	return e.recognizer.Recognize(ctx, encoded)
}
