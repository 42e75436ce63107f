package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"alliance-observatory/internal/models"
)

var troopPowerPattern = regexp.MustCompile(`(?i)troop\s*power[:\s]+([\d,]+)`)

// foundrySignupParser reads the legion combatants screen. Every card carries a
// status column: "Join" means signed up for this legion, "Legion N dispatched"
// means the other legion, and "No engagements" means not signed up at all.
// Only Join rows become signup records; the other two are observations of
// non-participation and are skipped.
type foundrySignupParser struct{}

func (foundrySignupParser) Parse(fields map[string]string) (*ParseResult, error) {
	res := &ParseResult{Type: models.TypeFoundrySignup, Legion: 1}

	header := fields["header"]
	if m := legionTitle.FindStringSubmatch(header); m != nil {
		res.Legion, _ = strconv.Atoi(m[1])
	}
	if m := troopPowerPattern.FindStringSubmatch(header); m != nil {
		if v, err := ParseAmount(m[1]); err == nil {
			res.TotalPower = &v
		}
	}

	sawRow := false
	for _, line := range splitLines(fields["roster"]) {
		row, joined, ok := parseSignupRow(line)
		if !ok {
			continue
		}
		sawRow = true
		if !joined {
			continue
		}
		res.Rows = append(res.Rows, row)
	}

	// a screen full of "No engagements" cards still has valid structure
	if !sawRow {
		return nil, ErrParseStructure
	}
	return res, nil
}

func parseSignupRow(line string) (row Row, joined bool, ok bool) {
	lowered := strings.ToLower(line)

	voted := false
	if strings.Contains(lowered, "voted") {
		voted = true
		line = regexp.MustCompile(`(?i)\s*voted\s*`).ReplaceAllString(line, " ")
		lowered = strings.ToLower(line)
	}

	switch {
	case strings.Contains(lowered, "dispatched"), strings.Contains(lowered, "no engagement"):
		// recognizable card, player is not in this legion's signup list
		return Row{}, false, true
	case strings.Contains(lowered, "join"):
		line = regexp.MustCompile(`(?i)\s*join\s*$`).ReplaceAllString(line, "")
	default:
		return Row{}, false, false
	}

	name, amount, okTok := lastAmountToken(line)
	if !okTok {
		name = StripTag(strings.TrimSpace(line))
		if name == "" {
			return Row{}, false, false
		}
		return Row{
			Name:       name,
			Voted:      voted,
			Flagged:    true,
			FlagReason: "foundry power unreadable",
		}, true, true
	}

	value, err := ParseAmount(amount)
	if err != nil {
		return Row{}, false, false
	}
	name = StripTag(name)
	if name == "" {
		return Row{}, false, false
	}
	return Row{Name: name, Value: value, Voted: voted}, true, true
}
