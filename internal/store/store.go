package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"alliance-observatory/internal/db"
	"alliance-observatory/internal/grouper"
	"alliance-observatory/internal/models"
	"alliance-observatory/internal/resolver"
)

// Store is the single persistence implementation behind the resolver and
// grouper boundaries plus the read side of the API.
type Store struct {
	db *db.DB
}

func New(database *db.DB) *Store {
	return &Store{db: database}
}

var _ resolver.Store = (*Store)(nil)
var _ grouper.Store = (*Store)(nil)

// --- resolver boundary ---

func (s *Store) AliasByText(ctx context.Context, allianceID int64, alias string) (*models.PlayerAlias, error) {
	var a models.PlayerAlias
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, player_id, alias, confidence, first_seen, last_seen
		 FROM player_aliases
		 WHERE alliance_id = $1 AND alias = $2`,
		allianceID, alias,
	).Scan(&a.ID, &a.PlayerID, &a.Alias, &a.Confidence, &a.FirstSeen, &a.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) AliasesForAlliance(ctx context.Context, allianceID int64) ([]models.PlayerAlias, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, player_id, alias, confidence, first_seen, last_seen
		 FROM player_aliases
		 WHERE alliance_id = $1`,
		allianceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []models.PlayerAlias
	for rows.Next() {
		var a models.PlayerAlias
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.Alias, &a.Confidence, &a.FirstSeen, &a.LastSeen); err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func (s *Store) CreatePlayerWithAlias(ctx context.Context, allianceID int64, alias string, confidence float64, seenAt time.Time) (int64, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var playerID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO players (alliance_id) VALUES ($1) RETURNING id`,
		allianceID,
	).Scan(&playerID); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO player_aliases (player_id, alliance_id, alias, confidence, first_seen, last_seen)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		playerID, allianceID, alias, confidence, seenAt,
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return playerID, nil
}

func (s *Store) TouchAlias(ctx context.Context, aliasID int64, seenAt time.Time) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE player_aliases SET last_seen = GREATEST(last_seen, $2) WHERE id = $1`,
		aliasID, seenAt,
	)
	return err
}

func (s *Store) RecordMatch(ctx context.Context, d resolver.MatchDecision) error {
	var screenshotID interface{}
	if d.ScreenshotID != 0 {
		screenshotID = d.ScreenshotID
	}
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO match_audit (alliance_id, screenshot_id, raw_text, matched_alias, player_id, distance, decision)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.AllianceID, screenshotID, d.RawText, d.MatchedAlias, d.PlayerID, d.Distance, d.Decision,
	)
	return err
}

// MergePlayers moves every alias and history row from the duplicate onto the
// primary, then deletes the duplicate. Rows the primary already holds for an
// event are kept; the duplicate's copy goes with the player. All or nothing.
func (s *Store) MergePlayers(ctx context.Context, allianceID, primaryID, duplicateID int64) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var ok bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM players WHERE id = $1 AND alliance_id = $2)
		    AND EXISTS (SELECT 1 FROM players WHERE id = $3 AND alliance_id = $2)`,
		primaryID, allianceID, duplicateID,
	).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("players %d and %d must both belong to alliance %d", primaryID, duplicateID, allianceID)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE player_aliases SET player_id = $1 WHERE player_id = $2`,
		primaryID, duplicateID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE leaf_records SET player_id = $1
		 WHERE player_id = $2
		   AND event_id NOT IN (SELECT event_id FROM leaf_records WHERE player_id = $1)`,
		primaryID, duplicateID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM leaf_records WHERE player_id = $1`,
		duplicateID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE match_audit SET player_id = $1 WHERE player_id = $2`,
		primaryID, duplicateID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM players WHERE id = $1`,
		duplicateID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// --- grouper boundary ---

func (s *Store) FindEvent(ctx context.Context, allianceID int64, variant models.EventVariant, key string, from, to time.Time) (*models.Event, error) {
	var ev models.Event
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, alliance_id, variant, key, started_at, ended_at, rally_count, total_value, created_at
		 FROM events
		 WHERE alliance_id = $1 AND variant = $2 AND key = $3
		   AND started_at >= $4 AND started_at < $5
		 ORDER BY started_at
		 LIMIT 1`,
		allianceID, string(variant), key, from, to,
	).Scan(&ev.ID, &ev.AllianceID, &ev.Variant, &ev.Key, &ev.StartedAt, &ev.EndedAt, &ev.RallyCount, &ev.TotalValue, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) CreateEvent(ctx context.Context, ev *models.Event) (int64, error) {
	var id int64
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO events (alliance_id, variant, key, started_at, ended_at, rally_count, total_value)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		ev.AllianceID, string(ev.Variant), ev.Key, ev.StartedAt, ev.EndedAt, ev.RallyCount, ev.TotalValue,
	).Scan(&id)
	return id, err
}

func (s *Store) UpdateEventHeader(ctx context.Context, eventID int64, upd grouper.HeaderUpdate) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE events SET
			rally_count = COALESCE($2, rally_count),
			total_value = COALESCE($3, total_value),
			ended_at    = COALESCE($4, ended_at)
		 WHERE id = $1`,
		eventID, upd.RallyCount, upd.TotalDamage, upd.EndedAt,
	)
	return err
}

func (s *Store) LeafByEventPlayer(ctx context.Context, eventID, playerID int64, kind models.LeafKind) (*models.LeafRecord, error) {
	var rec models.LeafRecord
	var screenshotID *int64
	err := s.db.Pool.QueryRow(ctx,
		`SELECT id, event_id, player_id, kind, value, rank, furnace, voted, flagged, flag_reason, recorded_at, screenshot_id
		 FROM leaf_records
		 WHERE event_id = $1 AND player_id = $2 AND kind = $3`,
		eventID, playerID, string(kind),
	).Scan(&rec.ID, &rec.EventID, &rec.PlayerID, &rec.Kind, &rec.Value, &rec.Rank, &rec.Furnace,
		&rec.Voted, &rec.Flagged, &rec.FlagReason, &rec.RecordedAt, &screenshotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if screenshotID != nil {
		rec.ScreenshotID = *screenshotID
	}
	return &rec, nil
}

func (s *Store) InsertLeaf(ctx context.Context, rec *models.LeafRecord) error {
	var screenshotID interface{}
	if rec.ScreenshotID != 0 {
		screenshotID = rec.ScreenshotID
	}
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO leaf_records (event_id, player_id, kind, value, rank, furnace, voted, flagged, flag_reason, recorded_at, screenshot_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (event_id, player_id, kind) DO NOTHING
		 RETURNING id`,
		rec.EventID, rec.PlayerID, string(rec.Kind), rec.Value, rec.Rank, rec.Furnace,
		rec.Voted, rec.Flagged, rec.FlagReason, rec.RecordedAt, screenshotID,
	).Scan(&rec.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// another writer inserted first; the unique key keeps us idempotent
		return nil
	}
	return err
}

func (s *Store) UpdateLeaf(ctx context.Context, id int64, value int64, recordedAt time.Time) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE leaf_records SET value = $2, recorded_at = $3 WHERE id = $1`,
		id, value, recordedAt,
	)
	return err
}

func (s *Store) FlagLeaf(ctx context.Context, id int64, reason string) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE leaf_records SET flagged = TRUE, flag_reason = $2 WHERE id = $1`,
		id, reason,
	)
	return err
}
