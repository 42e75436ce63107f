package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"alliance-observatory/internal/db"
	"alliance-observatory/internal/models"
)

// PlayerSummary is the list view: a player with their most recent alias.
type PlayerSummary struct {
	ID          int64     `json:"id"`
	AllianceID  int64     `json:"alliance_id"`
	CurrentName string    `json:"current_name"`
	AliasCount  int       `json:"alias_count"`
	LastSeen    time.Time `json:"last_seen"`
}

func (s *Store) ListPlayers(ctx context.Context, allianceID int64) ([]PlayerSummary, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT p.id, p.alliance_id,
		        (SELECT alias FROM player_aliases WHERE player_id = p.id ORDER BY last_seen DESC LIMIT 1),
		        (SELECT COUNT(*) FROM player_aliases WHERE player_id = p.id),
		        (SELECT MAX(last_seen) FROM player_aliases WHERE player_id = p.id)
		 FROM players p
		 WHERE p.alliance_id = $1
		 ORDER BY p.id`,
		allianceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerSummary
	for rows.Next() {
		var p PlayerSummary
		if err := rows.Scan(&p.ID, &p.AllianceID, &p.CurrentName, &p.AliasCount, &p.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PlayerByID returns one player's summary plus every alias bound to it.
func (s *Store) PlayerByID(ctx context.Context, playerID int64) (*PlayerSummary, []models.PlayerAlias, error) {
	var p PlayerSummary
	err := s.db.Pool.QueryRow(ctx,
		`SELECT p.id, p.alliance_id,
		        (SELECT alias FROM player_aliases WHERE player_id = p.id ORDER BY last_seen DESC LIMIT 1),
		        (SELECT COUNT(*) FROM player_aliases WHERE player_id = p.id),
		        (SELECT MAX(last_seen) FROM player_aliases WHERE player_id = p.id)
		 FROM players p
		 WHERE p.id = $1`,
		playerID,
	).Scan(&p.ID, &p.AllianceID, &p.CurrentName, &p.AliasCount, &p.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, player_id, alias, confidence, first_seen, last_seen
		 FROM player_aliases
		 WHERE player_id = $1
		 ORDER BY last_seen DESC`,
		playerID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var aliases []models.PlayerAlias
	for rows.Next() {
		var a models.PlayerAlias
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.Alias, &a.Confidence, &a.FirstSeen, &a.LastSeen); err != nil {
			return nil, nil, err
		}
		aliases = append(aliases, a)
	}
	return &p, aliases, rows.Err()
}

// PlayerHistoryRow joins a leaf record with its event for the per-player
// history view.
type PlayerHistoryRow struct {
	EventID   int64               `json:"event_id"`
	Variant   models.EventVariant `json:"variant"`
	Key       string              `json:"key"`
	StartedAt time.Time           `json:"started_at"`
	Kind      models.LeafKind     `json:"kind"`
	Value     int64               `json:"value"`
	Rank      *int                `json:"rank,omitempty"`
	Flagged   bool                `json:"flagged,omitempty"`
}

func (s *Store) PlayerHistory(ctx context.Context, playerID int64, limit int) ([]PlayerHistoryRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Pool.Query(ctx,
		`SELECT e.id, e.variant, e.key, e.started_at, r.kind, r.value, r.rank, r.flagged
		 FROM leaf_records r
		 JOIN events e ON e.id = r.event_id
		 WHERE r.player_id = $1
		 ORDER BY e.started_at DESC
		 LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerHistoryRow
	for rows.Next() {
		var r PlayerHistoryRow
		if err := rows.Scan(&r.EventID, &r.Variant, &r.Key, &r.StartedAt, &r.Kind, &r.Value, &r.Rank, &r.Flagged); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListEvents(ctx context.Context, allianceID int64, variant models.EventVariant, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, alliance_id, variant, key, started_at, ended_at, rally_count, total_value, created_at
		 FROM events
		 WHERE alliance_id = $1 AND ($2 = '' OR variant = $2)
		 ORDER BY started_at DESC
		 LIMIT $3`,
		allianceID, string(variant), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.AllianceID, &e.Variant, &e.Key, &e.StartedAt, &e.EndedAt, &e.RallyCount, &e.TotalValue, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) EventRecords(ctx context.Context, eventID int64) ([]models.LeafRecord, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, event_id, player_id, kind, value, rank, furnace, voted, flagged, flag_reason, recorded_at, COALESCE(screenshot_id, 0)
		 FROM leaf_records
		 WHERE event_id = $1
		 ORDER BY rank NULLS LAST, value DESC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeafRecord
	for rows.Next() {
		var r models.LeafRecord
		if err := rows.Scan(&r.ID, &r.EventID, &r.PlayerID, &r.Kind, &r.Value, &r.Rank, &r.Furnace,
			&r.Voted, &r.Flagged, &r.FlagReason, &r.RecordedAt, &r.ScreenshotID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// NoShowRow is one player who signed up for a foundry event but has no score
// in its result.
type NoShowRow struct {
	PlayerID    int64  `json:"player_id"`
	CurrentName string `json:"current_name"`
	SignupValue int64  `json:"signup_value"`
	Voted       bool   `json:"voted"`
}

// FoundryNoShows derives no-shows at read time from the signup and score
// leaves under the same foundry event. Nothing is persisted; the answer
// tracks both sets.
func (s *Store) FoundryNoShows(ctx context.Context, signupEventID int64) ([]NoShowRow, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT r.player_id,
		        COALESCE((SELECT alias FROM player_aliases WHERE player_id = r.player_id ORDER BY last_seen DESC LIMIT 1), ''),
		        r.value, r.voted
		 FROM leaf_records r
		 WHERE r.event_id = $1 AND r.kind = 'signup'`,
		signupEventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signups []NoShowRow
	for rows.Next() {
		var r NoShowRow
		if err := rows.Scan(&r.PlayerID, &r.CurrentName, &r.SignupValue, &r.Voted); err != nil {
			return nil, err
		}
		signups = append(signups, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// scores normally share the signup's event row, but a late result capture
	// can open a sibling event under the same key; match by key, not id
	scoreRows, err := s.db.Pool.Query(ctx,
		`SELECT DISTINCT score.player_id
		 FROM leaf_records score
		 JOIN events result ON result.id = score.event_id
		 JOIN events signup ON signup.id = $1
		 WHERE score.kind = 'score'
		   AND result.alliance_id = signup.alliance_id
		   AND result.variant = signup.variant
		   AND result.key = signup.key`,
		signupEventID,
	)
	if err != nil {
		return nil, err
	}
	defer scoreRows.Close()

	scored := make(map[int64]bool)
	for scoreRows.Next() {
		var id int64
		if err := scoreRows.Scan(&id); err != nil {
			return nil, err
		}
		scored[id] = true
	}
	if err := scoreRows.Err(); err != nil {
		return nil, err
	}

	return deriveNoShows(signups, scored), nil
}

// deriveNoShows keeps the signups with no matching score, highest commitment
// first. A player who scored without signing up is not a no-show and does
// not appear.
func deriveNoShows(signups []NoShowRow, scored map[int64]bool) []NoShowRow {
	var out []NoShowRow
	for _, s := range signups {
		if !scored[s.PlayerID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignupValue > out[j].SignupValue })
	return out
}

// SaveAlliancePowerSnapshot bulk-inserts one screen's worth of cross-alliance
// power rows.
func (s *Store) SaveAlliancePowerSnapshot(ctx context.Context, rows []models.AlliancePowerRow, snapshotDate, recordedAt time.Time) (int, error) {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, []interface{}{r.Name, r.Tag, r.TotalPower, r.Rank, snapshotDate, recordedAt})
	}
	return s.db.BatchInsert(ctx, "alliance_power_snapshots",
		[]string{"alliance_name", "alliance_tag", "total_power", "rank", "snapshot_date", "recorded_at"},
		values, db.DefaultBatchConfig())
}

func (s *Store) AlliancePowerHistory(ctx context.Context, since time.Time) ([]models.AlliancePowerRow, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT rank, alliance_name, alliance_tag, total_power
		 FROM alliance_power_snapshots
		 WHERE snapshot_date >= $1
		 ORDER BY snapshot_date DESC, rank`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AlliancePowerRow
	for rows.Next() {
		var r models.AlliancePowerRow
		if err := rows.Scan(&r.Rank, &r.Name, &r.Tag, &r.TotalPower); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
