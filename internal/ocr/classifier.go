package ocr

import (
	"context"
	"image"
	"strings"

	"alliance-observatory/internal/models"
)

// classifyDownscaleWidth keeps whole-image recognition cheap; layout keywords
// survive the downscale even when small numerals do not.
const classifyDownscaleWidth = 1024

// signatureThreshold is the minimum keyword score before a text match wins
// over the hint heuristics.
const signatureThreshold = 2

// typeSignature scores one screenshot type against recognized whole-image
// text. Strong phrases are near-unambiguous on their own; weak phrases only
// count in combination.
type typeSignature struct {
	screenType models.ScreenshotType
	strong     []string
	weak       []string
}

// Order matters: the overview screen shares the word "bear" with the damage
// screen and must be tested first on its stronger markers.
var signatures = []typeSignature{
	{
		screenType: models.TypeBearOverview,
		strong:     []string{"hunt successful", "total alliance damage"},
		weak:       []string{"rallies", "hunting trap"},
	},
	{
		screenType: models.TypeBearEvent,
		strong:     []string{"damage rewards"},
		weak:       []string{"bear", "trap", "damage"},
	},
	{
		screenType: models.TypeFoundrySignup,
		strong:     []string{"legion 1 combatants", "legion 2 combatants"},
		weak:       []string{"combatants", "troop power", "legion"},
	},
	{
		screenType: models.TypeFoundryResult,
		strong:     []string{"personal arsenal points"},
		weak:       []string{"arsenal", "foundry"},
	},
	{
		screenType: models.TypeChampionshipSignup,
		strong:     []string{"order of battle"},
		weak:       []string{"championship", "registered", "lane"},
	},
	{
		screenType: models.TypeAllianceMembers,
		strong:     []string{"alliance member"},
		weak:       []string{"furnace", "last online", "membership"},
	},
	{
		screenType: models.TypeContribution,
		strong:     []string{"weekly contribution"},
		weak:       []string{"contribution", "ranking"},
	},
	{
		screenType: models.TypeAlliancePower,
		strong:     []string{"alliance power ranking"},
		weak:       []string{"total power", "alliance power"},
	},
}

// Classifier decides the semantic type of a screenshot from whole-image text,
// falling back to filename and note hints. Pure apart from the recognizer
// call; all decisions go to the audit trail upstream.
type Classifier struct {
	recognize func(ctx context.Context, img image.Image) (string, error)
}

// NewClassifier wraps a recognition function that accepts a decoded image.
// The pipeline supplies one bound to its active Recognizer.
func NewClassifier(recognize func(ctx context.Context, img image.Image) (string, error)) *Classifier {
	return &Classifier{recognize: recognize}
}

// Classify runs the downscaled whole-image pass and keyword scoring, then the
// hint heuristics. It returns UNKNOWN with confidence 0 when nothing matches;
// that outcome is terminal for the screenshot, never retried.
func (c *Classifier) Classify(ctx context.Context, img image.Image, filename, note string) (models.ClassificationResult, error) {
	var text string
	if c.recognize != nil {
		small := Downscale(img, classifyDownscaleWidth)
		var err error
		text, err = c.recognize(ctx, small)
		if err != nil {
			if ctx.Err() != nil {
				return models.ClassificationResult{}, ctx.Err()
			}
			// recognition failure is not fatal here, hints may still decide
			text = ""
		}
	}

	if t, conf, ok := matchSignatures(text); ok {
		return models.ClassificationResult{Type: t, Confidence: conf, Method: "text", Text: text}, nil
	}

	if t, conf, ok := matchHints(filename, note); ok {
		return models.ClassificationResult{Type: t, Confidence: conf, Method: "hint", Text: text}, nil
	}

	return models.ClassificationResult{Type: models.TypeUnknown, Confidence: 0, Method: "none", Text: text}, nil
}

func matchSignatures(text string) (models.ScreenshotType, float64, bool) {
	if text == "" {
		return models.TypeUnknown, 0, false
	}
	lowered := strings.ToLower(text)

	best := models.TypeUnknown
	bestScore := 0
	for _, sig := range signatures {
		score := 0
		for _, phrase := range sig.strong {
			if strings.Contains(lowered, phrase) {
				score += 3
			}
		}
		for _, phrase := range sig.weak {
			if strings.Contains(lowered, phrase) {
				score++
			}
		}
		if score > bestScore {
			best = sig.screenType
			bestScore = score
		}
	}

	if bestScore < signatureThreshold {
		return models.TypeUnknown, 0, false
	}

	conf := 0.5 + 0.1*float64(bestScore)
	if conf > 0.95 {
		conf = 0.95
	}
	return best, conf, true
}

// matchHints mirrors the filename conventions screenshot takers actually use.
// A bare "bear" or "foundry" still picks the likeliest screen at lower
// confidence.
func matchHints(filename, note string) (models.ScreenshotType, float64, bool) {
	hints := strings.ToLower(note + " " + filename)
	has := func(s string) bool { return strings.Contains(hints, s) }

	switch {
	case has("alliance") && has("member"):
		return models.TypeAllianceMembers, 0.85, true
	case has("bear") && (has("overview") || has("success")):
		return models.TypeBearOverview, 0.85, true
	case has("bear") && (has("damage") || has("reward")):
		return models.TypeBearEvent, 0.85, true
	case has("bear"):
		return models.TypeBearEvent, 0.6, true
	case has("foundry") && (has("signup") || has("combatant")):
		return models.TypeFoundrySignup, 0.85, true
	case has("foundry") && (has("result") || has("arsenal")):
		return models.TypeFoundryResult, 0.85, true
	case has("foundry"):
		return models.TypeFoundryResult, 0.6, true
	case (has("ac") || has("championship")) && (has("signup") || has("lane")):
		return models.TypeChampionshipSignup, 0.85, true
	case has("contribution"):
		return models.TypeContribution, 0.85, true
	case has("alliance") && has("power"):
		return models.TypeAlliancePower, 0.85, true
	}
	return models.TypeUnknown, 0, false
}
