package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"alliance-observatory/internal/models"
)

var furnacePattern = regexp.MustCompile(`(?i)^(?:FC\s?([1-9])|(2[5-9]|30))$`)

// rosterParser reads the alliance member list: one card per row with name,
// power and furnace level. Furnace shows as FC1 through FC9 on most cards and
// as a plain 25 to 30 on the rare high-level ones; both normalize to an int.
type rosterParser struct{}

func (rosterParser) Parse(fields map[string]string) (*ParseResult, error) {
	res := &ParseResult{Type: models.TypeAllianceMembers}

	for _, line := range splitLines(fields["roster"]) {
		row, ok := parseRosterRow(line)
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

func parseRosterRow(line string) (Row, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Row{}, false
	}

	// furnace, when present, is the trailing column
	var furnace *int
	if m := furnacePattern.FindStringSubmatch(fields[len(fields)-1]); m != nil {
		var lvl int
		if m[1] != "" {
			lvl, _ = strconv.Atoi(m[1])
		} else {
			lvl, _ = strconv.Atoi(m[2])
		}
		furnace = &lvl
		fields = fields[:len(fields)-1]
	}

	name, amount, ok := lastAmountToken(strings.Join(fields, " "))
	if !ok {
		name = StripTag(strings.Join(fields, " "))
		if name == "" || furnace == nil {
			return Row{}, false
		}
		return Row{
			Name:       name,
			Furnace:    furnace,
			Flagged:    true,
			FlagReason: "power unreadable",
		}, true
	}

	power, err := ParseAmount(amount)
	if err != nil {
		return Row{}, false
	}
	name = StripTag(name)
	if name == "" {
		return Row{}, false
	}

	row := Row{Name: name, Value: power, Furnace: furnace}
	if furnace == nil {
		row.Flagged = true
		row.FlagReason = "furnace unreadable"
	}
	return row, true
}
