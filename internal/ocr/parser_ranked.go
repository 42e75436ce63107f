package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"alliance-observatory/internal/models"
)

var (
	trapTitle   = regexp.MustCompile(`(?i)trap\s*([12])`)
	legionTitle = regexp.MustCompile(`(?i)legion\s*([12])`)
)

// rankedParser covers the three screens that share the rank / name / score
// row shape: bear damage rewards, contribution rankings and foundry arsenal
// points. The header carries the trap or legion number where the type has
// one.
type rankedParser struct {
	screenType models.ScreenshotType
	wantTrap   bool
	wantLegion bool
}

func (p rankedParser) Parse(fields map[string]string) (*ParseResult, error) {
	res := &ParseResult{Type: p.screenType}

	header := fields["header"]
	if p.wantTrap {
		res.TrapID = 1
		if m := trapTitle.FindStringSubmatch(header); m != nil {
			res.TrapID, _ = strconv.Atoi(m[1])
		}
	}
	if p.wantLegion {
		res.Legion = 1
		if m := legionTitle.FindStringSubmatch(header); m != nil {
			res.Legion, _ = strconv.Atoi(m[1])
		}
	}

	sawRow := false
	for _, line := range splitLines(fields["roster"]) {
		row, unranked, ok := parseRankedRow(line)
		if unranked {
			sawRow = true
		}
		if !ok {
			continue
		}
		sawRow = true
		res.Rows = append(res.Rows, row)
	}

	// a leaderboard of nothing but Unranked entries is still a leaderboard
	if !sawRow {
		return nil, ErrParseStructure
	}
	return res, nil
}

// parseRankedRow reads "rank name value". An "Unranked" or missing rank means
// the entry did not participate and must never become a record, so the row is
// skipped outright, not flagged; unranked still counts as a structurally
// detected row. Rows that look like an entry but lack a readable value come
// back flagged.
func parseRankedRow(line string) (row Row, unranked bool, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Row{}, false, false
	}

	first := strings.TrimRight(fields[0], ".)")
	if strings.EqualFold(first, "unranked") {
		return Row{}, true, false
	}
	rank, err := strconv.Atoi(first)
	if err != nil || rank <= 0 {
		return Row{}, false, false
	}
	rest := strings.Join(fields[1:], " ")

	name, amount, found := lastAmountToken(rest)
	if !found {
		name = StripTag(rest)
		if name == "" {
			return Row{}, false, false
		}
		return Row{
			Name:       name,
			Rank:       &rank,
			Flagged:    true,
			FlagReason: "value unreadable",
		}, false, true
	}

	value, err := ParseAmount(amount)
	if err != nil {
		return Row{}, false, false
	}
	name = StripTag(name)
	if name == "" {
		return Row{
			Value:      value,
			Rank:       &rank,
			Flagged:    true,
			FlagReason: "name unreadable",
		}, false, true
	}
	return Row{Name: name, Value: value, Rank: &rank}, false, true
}
