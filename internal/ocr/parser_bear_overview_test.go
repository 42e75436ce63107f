package ocr

import (
	"errors"
	"testing"

	"alliance-observatory/internal/models"
)

func TestBearOverviewParser(t *testing.T) {
	p, _ := ParserFor(models.TypeBearOverview)
	res, err := p.Parse(map[string]string{
		"banner": "Hunt successful! Beast Hunting Trap 2",
		"totals": "Rallies: 42\nTotal Alliance Damage: 6,442,016,308",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if res.TrapID != 2 {
		t.Errorf("TrapID = %d, want 2", res.TrapID)
	}
	if res.RallyCount == nil || *res.RallyCount != 42 {
		t.Errorf("RallyCount = %v, want 42", res.RallyCount)
	}
	if res.TotalDamage == nil || *res.TotalDamage != 6442016308 {
		t.Errorf("TotalDamage = %v, want 6442016308", res.TotalDamage)
	}
}

func TestBearOverviewParser_DefaultTrapFromBanner(t *testing.T) {
	p, _ := ParserFor(models.TypeBearOverview)
	res, err := p.Parse(map[string]string{
		"banner": "Hunt successful!",
		"totals": "Rallies: 17",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if res.TrapID != 1 {
		t.Errorf("TrapID = %d, want default 1", res.TrapID)
	}
}

func TestBearOverviewParser_NoTotalsFails(t *testing.T) {
	p, _ := ParserFor(models.TypeBearOverview)
	_, err := p.Parse(map[string]string{
		"banner": "Hunt successful!",
		"totals": "nothing readable here",
	})
	if !errors.Is(err, ErrParseStructure) {
		t.Errorf("expected ErrParseStructure, got %v", err)
	}
}

func TestAlliancePowerParser(t *testing.T) {
	p, _ := ParserFor(models.TypeAlliancePower)
	res, err := p.Parse(map[string]string{
		"roster": "1 [HEI] Heimdall 2.5B\n2 [WOS] Wanderers 1,900,000,000\nnoise line",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if len(res.Alliances) != 2 {
		t.Fatalf("expected 2 alliances, got %d", len(res.Alliances))
	}
	first := res.Alliances[0]
	if first.Rank != 1 || first.Tag != "HEI" || first.Name != "Heimdall" {
		t.Errorf("row 0 = %d/%q/%q, want 1/HEI/Heimdall", first.Rank, first.Tag, first.Name)
	}
	if first.TotalPower != 2500000000 {
		t.Errorf("row 0 power = %d, want 2500000000", first.TotalPower)
	}
}
