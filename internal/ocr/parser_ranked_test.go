package ocr

import (
	"errors"
	"testing"

	"alliance-observatory/internal/models"
)

func TestRankedParser_BearDamage(t *testing.T) {
	p, ok := ParserFor(models.TypeBearEvent)
	if !ok {
		t.Fatal("no parser registered for bear_event")
	}

	res, err := p.Parse(map[string]string{
		"header": "Beast Hunting Trap 2  Damage Rewards",
		"roster": "1 [HEI]Valorin 1,234,567\nUnranked HostName\n2 [HEI]Mira 847K",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if res.TrapID != 2 {
		t.Errorf("TrapID = %d, want 2", res.TrapID)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows (unranked host dropped), got %d", len(res.Rows))
	}

	first := res.Rows[0]
	if first.Name != "Valorin" {
		t.Errorf("row 0 name = %q, want Valorin", first.Name)
	}
	if first.Value != 1234567 {
		t.Errorf("row 0 value = %d, want 1234567", first.Value)
	}
	if first.Rank == nil || *first.Rank != 1 {
		t.Errorf("row 0 rank = %v, want 1", first.Rank)
	}
	if first.Flagged {
		t.Error("row 0 should not be flagged")
	}

	if res.Rows[1].Value != 847000 {
		t.Errorf("row 1 value = %d, want 847000", res.Rows[1].Value)
	}
}

func TestRankedParser_AllUnrankedIsEmptyNotAnError(t *testing.T) {
	p, _ := ParserFor(models.TypeBearEvent)
	res, err := p.Parse(map[string]string{
		"header": "Beast Hunting Trap 1  Damage Rewards",
		"roster": "Unranked HostName\nUnranked OtherHost",
	})
	if err != nil {
		t.Fatalf("all-unranked screen should parse cleanly, got %v", err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(res.Rows))
	}
}

func TestRankedParser_DefaultTrap(t *testing.T) {
	p, _ := ParserFor(models.TypeBearEvent)
	res, err := p.Parse(map[string]string{
		"header": "Damage Rewards",
		"roster": "1 Someone 100",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if res.TrapID != 1 {
		t.Errorf("TrapID = %d, want default 1", res.TrapID)
	}
}

func TestRankedParser_FoundryLegion(t *testing.T) {
	p, _ := ParserFor(models.TypeFoundryResult)
	res, err := p.Parse(map[string]string{
		"header": "Legion 2 Personal Arsenal Points",
		"roster": "1 Valorin 5,120\n2 Mira 4,800",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if res.Legion != 2 {
		t.Errorf("Legion = %d, want 2", res.Legion)
	}
	if len(res.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(res.Rows))
	}
}

func TestRankedParser_UnreadableValueFlagged(t *testing.T) {
	p, _ := ParserFor(models.TypeContribution)
	res, err := p.Parse(map[string]string{
		"roster": "1 Valorin ###\n2 Mira 4,800",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if !res.Rows[0].Flagged || res.Rows[0].FlagReason != "value unreadable" {
		t.Errorf("row 0 flag = %v %q, want value unreadable", res.Rows[0].Flagged, res.Rows[0].FlagReason)
	}
}

func TestRankedParser_EmptyRosterFails(t *testing.T) {
	p, _ := ParserFor(models.TypeContribution)
	_, err := p.Parse(map[string]string{"roster": "garbage without structure"})
	if !errors.Is(err, ErrParseStructure) {
		t.Errorf("expected ErrParseStructure, got %v", err)
	}
}
