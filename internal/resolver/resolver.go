package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"alliance-observatory/internal/models"
)

// MaxEditDistance bounds the fuzzy match. Two edits absorbs the usual OCR
// substitutions without letting distinct short names collapse into each
// other.
const MaxEditDistance = 2

// MatchDecision is the audited outcome of one resolve call.
type MatchDecision struct {
	AllianceID   int64
	RawText      string
	MatchedAlias string
	PlayerID     int64
	Distance     int
	Decision     string // "exact", "fuzzy", "created", "ambiguous"
	ScreenshotID int64
	DecidedAt    time.Time
}

// Store is the persistence boundary the resolver depends on.
type Store interface {
	AliasByText(ctx context.Context, allianceID int64, alias string) (*models.PlayerAlias, error)
	AliasesForAlliance(ctx context.Context, allianceID int64) ([]models.PlayerAlias, error)
	CreatePlayerWithAlias(ctx context.Context, allianceID int64, alias string, confidence float64, seenAt time.Time) (int64, error)
	TouchAlias(ctx context.Context, aliasID int64, seenAt time.Time) error
	RecordMatch(ctx context.Context, d MatchDecision) error
	MergePlayers(ctx context.Context, allianceID, primaryID, duplicateID int64) error
}

// Resolver maps observed display names to stable player identities within one
// alliance. Lookup order is fixed: exact alias, then bounded fuzzy, then
// create. Ambiguous fuzzy candidates are never guessed; the observation gets
// a fresh identity and an audit row for the admin to merge later.
type Resolver struct {
	store Store
	log   *slog.Logger
}

func New(log *slog.Logger, store Store) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve returns the player id for rawName, creating a new identity when
// nothing matches. rawName must already have its alliance tag stripped.
func (r *Resolver) Resolve(ctx context.Context, allianceID int64, rawName string, seenAt time.Time, screenshotID int64) (int64, error) {
	if rawName == "" {
		return 0, fmt.Errorf("empty player name")
	}

	alias, err := r.store.AliasByText(ctx, allianceID, rawName)
	if err != nil {
		return 0, fmt.Errorf("alias lookup: %w", err)
	}
	if alias != nil {
		if err := r.store.TouchAlias(ctx, alias.ID, seenAt); err != nil {
			return 0, fmt.Errorf("touch alias: %w", err)
		}
		return alias.PlayerID, nil
	}

	match, distance, ambiguous, err := r.fuzzyMatch(ctx, allianceID, rawName)
	if err != nil {
		return 0, fmt.Errorf("fuzzy lookup: %w", err)
	}

	if match != nil && !ambiguous {
		if err := r.store.TouchAlias(ctx, match.ID, seenAt); err != nil {
			return 0, fmt.Errorf("touch alias: %w", err)
		}
		decision := MatchDecision{
			AllianceID:   allianceID,
			RawText:      rawName,
			MatchedAlias: match.Alias,
			PlayerID:     match.PlayerID,
			Distance:     distance,
			Decision:     "fuzzy",
			ScreenshotID: screenshotID,
			DecidedAt:    seenAt,
		}
		if err := r.store.RecordMatch(ctx, decision); err != nil {
			return 0, fmt.Errorf("record match: %w", err)
		}
		r.log.Info("player_fuzzy_matched",
			"alliance_id", allianceID,
			"raw_name", rawName,
			"matched_alias", match.Alias,
			"distance", distance,
		)
		return match.PlayerID, nil
	}

	playerID, err := r.store.CreatePlayerWithAlias(ctx, allianceID, rawName, 1.0, seenAt)
	if err != nil {
		return 0, fmt.Errorf("create player: %w", err)
	}

	decision := MatchDecision{
		AllianceID:   allianceID,
		RawText:      rawName,
		PlayerID:     playerID,
		Decision:     "created",
		ScreenshotID: screenshotID,
		DecidedAt:    seenAt,
	}
	if ambiguous {
		decision.Decision = "ambiguous"
		decision.MatchedAlias = match.Alias
		decision.Distance = distance
		r.log.Warn("player_match_ambiguous",
			"alliance_id", allianceID,
			"raw_name", rawName,
			"nearest_alias", match.Alias,
			"distance", distance,
		)
	}
	if err := r.store.RecordMatch(ctx, decision); err != nil {
		return 0, fmt.Errorf("record match: %w", err)
	}
	return playerID, nil
}

// fuzzyMatch scans the alliance's aliases for the closest candidate within
// MaxEditDistance. A second candidate at the same or lower distance makes the
// result ambiguous; the best candidate is still returned for the audit row.
func (r *Resolver) fuzzyMatch(ctx context.Context, allianceID int64, rawName string) (best *models.PlayerAlias, bestDist int, ambiguous bool, err error) {
	aliases, err := r.store.AliasesForAlliance(ctx, allianceID)
	if err != nil {
		return nil, 0, false, err
	}

	bestDist = MaxEditDistance + 1
	for i := range aliases {
		d := levenshtein(rawName, aliases[i].Alias)
		switch {
		case d < bestDist:
			best = &aliases[i]
			bestDist = d
			ambiguous = false
		case d == bestDist && best != nil && aliases[i].PlayerID != best.PlayerID:
			ambiguous = true
		}
	}

	if best == nil || bestDist > MaxEditDistance {
		return nil, 0, false, nil
	}
	return best, bestDist, ambiguous, nil
}

// Merge reassigns all aliases and history rows from duplicateID to primaryID
// and removes the duplicate player. The store runs it in one transaction.
func (r *Resolver) Merge(ctx context.Context, allianceID, primaryID, duplicateID int64) error {
	if primaryID == duplicateID {
		return fmt.Errorf("cannot merge a player into itself")
	}
	if err := r.store.MergePlayers(ctx, allianceID, primaryID, duplicateID); err != nil {
		return fmt.Errorf("merge players: %w", err)
	}
	r.log.Info("players_merged",
		"alliance_id", allianceID,
		"primary_id", primaryID,
		"duplicate_id", duplicateID,
	)
	return nil
}

func levenshtein(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	column := make([]int, len(r1)+1)

	for y := 1; y <= len(r1); y++ {
		column[y] = y
	}

	for x := 1; x <= len(r2); x++ {
		column[0] = x
		lastDiag := x - 1
		for y := 1; y <= len(r1); y++ {
			oldDiag := column[y]
			cost := 0
			if r1[y-1] != r2[x-1] {
				cost = 1
			}
			column[y] = min3(column[y]+1, column[y-1]+1, lastDiag+cost)
			lastDiag = oldDiag
		}
	}

	return column[len(r1)]
}

func min3(a, b, c int) int {
	if a < b && a < c {
		return a
	}
	if b < c {
		return b
	}
	return c
}
