package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"alliance-observatory/internal/models"
)

var (
	huntingTrapPattern = regexp.MustCompile(`(?i)hunting\s*trap\s*([12])`)
	ralliesPattern     = regexp.MustCompile(`(?i)rallies[:\s]+(\d+)`)
	totalDamagePattern = regexp.MustCompile(`(?i)total\s*alliance\s*damage[:\s]+([\d,]+)`)
)

// bearOverviewParser reads the "Hunt successful!" completion screen. It has
// no roster; it carries the trap id, rally count and total alliance damage,
// which land on the event header rather than on leaf records.
type bearOverviewParser struct{}

func (bearOverviewParser) Parse(fields map[string]string) (*ParseResult, error) {
	text := fields["banner"] + "\n" + fields["totals"]
	res := &ParseResult{Type: models.TypeBearOverview}

	if m := huntingTrapPattern.FindStringSubmatch(text); m != nil {
		res.TrapID, _ = strconv.Atoi(m[1])
	}
	if res.TrapID == 0 {
		// without the trap id the totals cannot be attributed to an event
		if !strings.Contains(strings.ToLower(text), "hunt successful") {
			return nil, ErrParseStructure
		}
		res.TrapID = 1
	}

	if m := ralliesPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			res.RallyCount = &n
		}
	}
	if m := totalDamagePattern.FindStringSubmatch(text); m != nil {
		if v, err := ParseAmount(m[1]); err == nil {
			res.TotalDamage = &v
		}
	}

	if res.RallyCount == nil && res.TotalDamage == nil {
		return nil, ErrParseStructure
	}
	return res, nil
}
