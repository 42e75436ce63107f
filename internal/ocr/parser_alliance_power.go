package ocr

import (
	"strconv"
	"strings"

	"alliance-observatory/internal/models"
)

// alliancePowerParser reads the cross-alliance power ranking screen. Rows
// name alliances, not players, so they bypass the player resolver entirely
// and land in the snapshot table.
type alliancePowerParser struct{}

func (alliancePowerParser) Parse(fields map[string]string) (*ParseResult, error) {
	res := &ParseResult{Type: models.TypeAlliancePower}

	for _, line := range splitLines(fields["roster"]) {
		row, ok := parseAlliancePowerRow(line)
		if !ok {
			continue
		}
		res.Alliances = append(res.Alliances, row)
	}

	if len(res.Alliances) == 0 {
		return nil, ErrParseStructure
	}
	return res, nil
}

func parseAlliancePowerRow(line string) (models.AlliancePowerRow, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return models.AlliancePowerRow{}, false
	}

	rank, err := strconv.Atoi(strings.TrimRight(fields[0], ".)"))
	if err != nil || rank <= 0 {
		return models.AlliancePowerRow{}, false
	}

	name, amount, ok := lastAmountToken(strings.Join(fields[1:], " "))
	if !ok {
		return models.AlliancePowerRow{}, false
	}
	power, err := ParseAmount(amount)
	if err != nil {
		return models.AlliancePowerRow{}, false
	}

	// alliance names keep their bracketed tag as a separate column
	tag := ""
	if m := tagPrefix.FindString(name); m != "" {
		tag = strings.Trim(strings.TrimSpace(m), "[]")
		name = StripTag(name)
	}
	if name == "" {
		return models.AlliancePowerRow{}, false
	}

	return models.AlliancePowerRow{Rank: rank, Name: name, Tag: tag, TotalPower: power}, true
}
