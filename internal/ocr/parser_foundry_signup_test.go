package ocr

import (
	"errors"
	"testing"

	"alliance-observatory/internal/models"
)

func TestFoundrySignupParser(t *testing.T) {
	p, _ := ParserFor(models.TypeFoundrySignup)
	res, err := p.Parse(map[string]string{
		"header": "Legion 1 Combatants  Troop Power: 193,200,000",
		"roster": "[HEI]Valorin 1,500,000 Join\nMira Legion 2 dispatched\nFrosty No engagements\nVoted Neve 900,000 Join",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if res.Legion != 1 {
		t.Errorf("Legion = %d, want 1", res.Legion)
	}
	if res.TotalPower == nil || *res.TotalPower != 193200000 {
		t.Errorf("TotalPower = %v, want 193200000", res.TotalPower)
	}

	// only Join cards become records
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 signup rows, got %d", len(res.Rows))
	}
	if res.Rows[0].Name != "Valorin" || res.Rows[0].Value != 1500000 {
		t.Errorf("row 0 = %q/%d, want Valorin/1500000", res.Rows[0].Name, res.Rows[0].Value)
	}
	if res.Rows[0].Voted {
		t.Error("row 0 should not carry the voted badge")
	}
	if res.Rows[1].Name != "Neve" || !res.Rows[1].Voted {
		t.Errorf("row 1 = %q voted=%v, want Neve voted", res.Rows[1].Name, res.Rows[1].Voted)
	}
}

func TestFoundrySignupParser_AllNoEngagements(t *testing.T) {
	p, _ := ParserFor(models.TypeFoundrySignup)
	res, err := p.Parse(map[string]string{
		"roster": "Mira No engagements\nFrosty No engagements",
	})
	// recognizable cards with nobody joined are valid structure, zero records
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(res.Rows))
	}
}

func TestFoundrySignupParser_NoCardsFails(t *testing.T) {
	p, _ := ParserFor(models.TypeFoundrySignup)
	_, err := p.Parse(map[string]string{"roster": "completely unrelated text"})
	if !errors.Is(err, ErrParseStructure) {
		t.Errorf("expected ErrParseStructure, got %v", err)
	}
}
