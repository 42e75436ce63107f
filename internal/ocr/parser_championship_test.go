package ocr

import (
	"testing"

	"alliance-observatory/internal/models"
)

func TestChampionshipParser(t *testing.T) {
	p, _ := ParserFor(models.TypeChampionshipSignup)
	res, err := p.Parse(map[string]string{
		"header": "Order of Battle  Registered: 28/30  Power: 1,240,000,000",
		"roster": "1 [HEI]Valorin Power: 5,034\n2 Mira 4,800",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if res.Registered == nil || *res.Registered != 30 {
		t.Errorf("Registered = %v, want 30 (the slot total)", res.Registered)
	}
	if res.TotalPower == nil || *res.TotalPower != 1240000000 {
		t.Errorf("TotalPower = %v, want 1240000000", res.TotalPower)
	}

	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Rows[0].Name != "Valorin" || res.Rows[0].Value != 5034 {
		t.Errorf("row 0 = %q/%d, want Valorin/5034", res.Rows[0].Name, res.Rows[0].Value)
	}
	if res.Rows[1].Name != "Mira" || res.Rows[1].Value != 4800 {
		t.Errorf("row 1 = %q/%d, want Mira/4800", res.Rows[1].Name, res.Rows[1].Value)
	}
}
