package resolver

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"alliance-observatory/internal/models"
)

type memStore struct {
	nextPlayerID int64
	nextAliasID  int64
	aliases      []models.PlayerAlias
	decisions    []MatchDecision
	merged       [][3]int64
}

func (s *memStore) AliasByText(_ context.Context, allianceID int64, alias string) (*models.PlayerAlias, error) {
	for i := range s.aliases {
		if s.aliases[i].Alias == alias {
			return &s.aliases[i], nil
		}
	}
	return nil, nil
}

func (s *memStore) AliasesForAlliance(_ context.Context, allianceID int64) ([]models.PlayerAlias, error) {
	return s.aliases, nil
}

func (s *memStore) CreatePlayerWithAlias(_ context.Context, allianceID int64, alias string, confidence float64, seenAt time.Time) (int64, error) {
	s.nextPlayerID++
	s.nextAliasID++
	s.aliases = append(s.aliases, models.PlayerAlias{
		ID:         s.nextAliasID,
		PlayerID:   s.nextPlayerID,
		Alias:      alias,
		Confidence: confidence,
		FirstSeen:  seenAt,
		LastSeen:   seenAt,
	})
	return s.nextPlayerID, nil
}

func (s *memStore) TouchAlias(_ context.Context, aliasID int64, seenAt time.Time) error {
	for i := range s.aliases {
		if s.aliases[i].ID == aliasID && seenAt.After(s.aliases[i].LastSeen) {
			s.aliases[i].LastSeen = seenAt
		}
	}
	return nil
}

func (s *memStore) RecordMatch(_ context.Context, d MatchDecision) error {
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *memStore) MergePlayers(_ context.Context, allianceID, primaryID, duplicateID int64) error {
	s.merged = append(s.merged, [3]int64{allianceID, primaryID, duplicateID})
	return nil
}

func testResolver() (*Resolver, *memStore) {
	store := &memStore{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, store), store
}

func TestResolve_StableIdentity(t *testing.T) {
	r, store := testResolver()
	ctx := context.Background()
	now := time.Now()

	id1, err := r.Resolve(ctx, 1, "Valorin", now, 100)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	id2, err := r.Resolve(ctx, 1, "Valorin", now.Add(time.Hour), 101)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if id2 != id1 {
		t.Errorf("same name resolved to %d then %d", id1, id2)
	}
	if len(store.aliases) != 1 {
		t.Errorf("expected 1 alias, got %d", len(store.aliases))
	}
	if !store.aliases[0].LastSeen.After(now) {
		t.Error("repeat sighting should advance last_seen")
	}
}

func TestResolve_FuzzyMatchWithinTwoEdits(t *testing.T) {
	r, store := testResolver()
	ctx := context.Background()
	now := time.Now()

	id1, _ := r.Resolve(ctx, 1, "Foo", now, 100)

	// a single OCR substitution resolves to the existing player
	id2, err := r.Resolve(ctx, 1, "Fo0", now.Add(time.Minute), 101)
	if err != nil {
		t.Fatalf("fuzzy resolve: %v", err)
	}
	if id2 != id1 {
		t.Errorf("misread resolved to %d, want existing player %d", id2, id1)
	}

	var fuzzy *MatchDecision
	for i := range store.decisions {
		if store.decisions[i].Decision == "fuzzy" {
			fuzzy = &store.decisions[i]
		}
	}
	if fuzzy == nil {
		t.Fatal("expected an audited fuzzy decision")
	}
	if fuzzy.Distance != 1 || fuzzy.MatchedAlias != "Foo" {
		t.Errorf("fuzzy decision = distance %d alias %q", fuzzy.Distance, fuzzy.MatchedAlias)
	}
}

func TestResolve_BeyondTwoEditsCreates(t *testing.T) {
	r, _ := testResolver()
	ctx := context.Background()
	now := time.Now()

	id1, _ := r.Resolve(ctx, 1, "Valorin", now, 100)
	id2, err := r.Resolve(ctx, 1, "Completely", now, 101)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id2 == id1 {
		t.Error("unrelated name should get a fresh identity")
	}
}

func TestResolve_AmbiguousNeverGuesses(t *testing.T) {
	r, store := testResolver()
	ctx := context.Background()
	now := time.Now()

	id1, _ := r.Resolve(ctx, 1, "Marten", now, 100)
	id2, _ := r.Resolve(ctx, 1, "Marcus", now, 101)
	if id1 == id2 {
		t.Fatal("setup: expected two distinct players")
	}

	// two edits from both existing aliases
	id3, err := r.Resolve(ctx, 1, "Marcex", now, 102)
	if err != nil {
		t.Fatalf("ambiguous resolve: %v", err)
	}
	if id3 == id1 || id3 == id2 {
		t.Errorf("ambiguous name resolved to existing player %d", id3)
	}

	last := store.decisions[len(store.decisions)-1]
	if last.Decision != "ambiguous" {
		t.Errorf("last decision = %q, want ambiguous", last.Decision)
	}
}

func TestResolve_EmptyNameRejected(t *testing.T) {
	r, _ := testResolver()
	if _, err := r.Resolve(context.Background(), 1, "", time.Now(), 100); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestMerge(t *testing.T) {
	r, store := testResolver()
	ctx := context.Background()

	if err := r.Merge(ctx, 1, 10, 10); err == nil {
		t.Error("merging a player into itself should fail")
	}

	if err := r.Merge(ctx, 1, 10, 11); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(store.merged) != 1 || store.merged[0] != [3]int64{1, 10, 11} {
		t.Errorf("merge call = %v", store.merged)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"Foo", "Fo0", 1},
		{"kitten", "sitting", 3},
		{"abc", "", 3},
		{"Mira", "Mirra", 1},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
