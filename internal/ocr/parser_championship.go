package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"alliance-observatory/internal/models"
)

var (
	registeredPattern = regexp.MustCompile(`(?i)registered[:\s]+(\d+)\s*/\s*(\d+)`)
	powerLinePattern  = regexp.MustCompile(`(?i)power[:\s]+([\d,]+)`)
)

// championshipParser reads the championship signup screen. The order-of-battle
// number on the left of each card is positional noise and is dropped; cards
// contribute name plus power. Header totals feed the event row.
type championshipParser struct{}

func (championshipParser) Parse(fields map[string]string) (*ParseResult, error) {
	res := &ParseResult{Type: models.TypeChampionshipSignup}

	header := fields["header"]
	if m := registeredPattern.FindStringSubmatch(header); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			res.Registered = &n
		}
	}
	if m := powerLinePattern.FindStringSubmatch(header); m != nil {
		if v, err := ParseAmount(m[1]); err == nil {
			res.TotalPower = &v
		}
	}

	for _, line := range splitLines(fields["roster"]) {
		row, ok := parseChampionshipRow(line)
		if !ok {
			continue
		}
		res.Rows = append(res.Rows, row)
	}

	if len(res.Rows) == 0 {
		return nil, ErrParseStructure
	}
	return res, nil
}

func parseChampionshipRow(line string) (Row, bool) {
	// per-card power renders as "Power: 5,034"
	if m := powerLinePattern.FindStringSubmatch(line); m != nil {
		value, err := ParseAmount(m[1])
		if err != nil {
			return Row{}, false
		}
		name := StripTag(dropLeadingOrder(powerLinePattern.ReplaceAllString(line, "")))
		if name == "" {
			return Row{
				Value:      value,
				Flagged:    true,
				FlagReason: "name unreadable",
			}, true
		}
		return Row{Name: name, Value: value}, true
	}

	name, amount, ok := lastAmountToken(dropLeadingOrder(line))
	if !ok {
		return Row{}, false
	}
	value, err := ParseAmount(amount)
	if err != nil {
		return Row{}, false
	}
	name = StripTag(name)
	if name == "" {
		return Row{}, false
	}
	return Row{Name: name, Value: value}, true
}

func dropLeadingOrder(line string) string {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) > 1 {
		if _, err := strconv.Atoi(strings.TrimRight(fields[0], ".)")); err == nil {
			fields = fields[1:]
		}
	}
	return strings.Join(fields, " ")
}
