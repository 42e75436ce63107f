package ocr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"alliance-observatory/internal/models"
)

// Row is one parsed roster entry. Malformed rows are kept and flagged rather
// than dropped, so a reviewer sees rows-seen versus rows-accepted.
type Row struct {
	Name       string
	Value      int64
	Rank       *int
	Furnace    *int
	Voted      bool
	Flagged    bool
	FlagReason string
}

// ParseResult is the structured output of one screenshot. Header fields are
// set only by the types that carry them.
type ParseResult struct {
	Type models.ScreenshotType
	Rows []Row

	TrapID      int
	Legion      int
	RallyCount  *int
	TotalDamage *int64
	TotalPower  *int64
	Registered  *int

	Alliances []models.AlliancePowerRow
}

// Parser turns the region extractor's raw per-field text into typed rows.
// Implementations signal ErrParseStructure only when zero structurally
// expected rows are found; row-level problems become flags on the row.
type Parser interface {
	Parse(fields map[string]string) (*ParseResult, error)
}

var parserRegistry = map[models.ScreenshotType]Parser{
	models.TypeAllianceMembers:    rosterParser{},
	models.TypeContribution:       rankedParser{screenType: models.TypeContribution},
	models.TypeBearEvent:          rankedParser{screenType: models.TypeBearEvent, wantTrap: true},
	models.TypeFoundryResult:      rankedParser{screenType: models.TypeFoundryResult, wantLegion: true},
	models.TypeBearOverview:       bearOverviewParser{},
	models.TypeFoundrySignup:      foundrySignupParser{},
	models.TypeChampionshipSignup: championshipParser{},
	models.TypeAlliancePower:      alliancePowerParser{},
}

// ParserFor returns the parser for a classified type. Unknown types have no
// parser; the pipeline reports them without retrying.
func ParserFor(t models.ScreenshotType) (Parser, bool) {
	p, ok := parserRegistry[t]
	return p, ok
}

var tagPrefix = regexp.MustCompile(`^\[[^\]]{1,6}\]\s*`)

// StripTag removes a leading bracketed alliance tag. Everything else in the
// name is preserved verbatim, game names lean on special characters.
func StripTag(name string) string {
	return strings.TrimSpace(tagPrefix.ReplaceAllString(strings.TrimSpace(name), ""))
}

var amountPattern = regexp.MustCompile(`^(\d{1,3}(?:,\d{3})*|\d+)(?:\.(\d+))?\s*([KMBkmb])?$`)

// ParseAmount normalizes a numeric field to a plain integer. Accepts comma
// thousands separators and a trailing magnitude suffix, so "6,442,016,308",
// "193.2M" and "847K" all work.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}

	whole, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q: %w", s, err)
	}

	mult := int64(1)
	switch strings.ToUpper(m[3]) {
	case "K":
		mult = 1_000
	case "M":
		mult = 1_000_000
	case "B":
		mult = 1_000_000_000
	}

	value := whole * mult
	if m[2] != "" {
		frac, err := strconv.ParseFloat("0."+m[2], 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable amount %q: %w", s, err)
		}
		value += int64(frac * float64(mult))
	}
	return value, nil
}

// splitLines yields trimmed non-empty lines.
func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// lastAmountToken splits a row into name text and its trailing numeric token.
// Names may themselves contain digits, so only the final token is treated as
// the value column.
func lastAmountToken(line string) (name string, amount string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	last := fields[len(fields)-1]
	if _, err := ParseAmount(last); err != nil {
		return "", "", false
	}
	return strings.Join(fields[:len(fields)-1], " "), last, true
}
