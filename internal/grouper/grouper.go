package grouper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"alliance-observatory/internal/models"
)

// ConflictPolicy decides what happens when a second observation arrives for
// an existing (event, player) key.
type ConflictPolicy int

const (
	// KeepFirst treats the stored value as authoritative final state;
	// later conflicting submissions are flagged for review, not applied.
	KeepFirst ConflictPolicy = iota
	// KeepMax keeps the higher value; re-captures mid-session supersede
	// lower earlier reads.
	KeepMax
	// KeepLatest keeps the most recently observed value.
	KeepLatest
)

// policies is declared once per variant and applied uniformly. Call sites
// never choose a policy ad hoc.
var policies = map[models.EventVariant]map[models.LeafKind]ConflictPolicy{
	models.VariantBear: {
		models.KindScore: KeepFirst,
	},
	models.VariantFoundry: {
		models.KindScore:  KeepFirst,
		models.KindSignup: KeepMax,
	},
	models.VariantChampionship: {
		models.KindSignup: KeepMax,
	},
	models.VariantContribution: {
		models.KindScore: KeepMax,
	},
	models.VariantRoster: {
		models.KindSnapshot: KeepLatest,
	},
}

// divergenceFactor marks a conflicting pair as needing attention when the
// values differ by more than this ratio.
const divergenceFactor = 2

// Observation is one parsed row bound to a resolved player, ready to attach.
type Observation struct {
	AllianceID   int64
	Variant      models.EventVariant
	Key          string
	ObservedAt   time.Time
	PlayerID     int64
	Kind         models.LeafKind
	Value        int64
	Rank         *int
	Furnace      *int
	Voted        bool
	Flagged      bool
	FlagReason   string
	ScreenshotID int64
}

// HeaderUpdate carries event-level fields from screens that describe the
// event itself rather than a player row.
type HeaderUpdate struct {
	RallyCount  *int
	TotalDamage *int64
	EndedAt     *time.Time
}

// Store is the persistence boundary for the grouper. FindEvent matches on
// (alliance, variant, key) with started_at inside [from, to).
type Store interface {
	FindEvent(ctx context.Context, allianceID int64, variant models.EventVariant, key string, from, to time.Time) (*models.Event, error)
	CreateEvent(ctx context.Context, ev *models.Event) (int64, error)
	UpdateEventHeader(ctx context.Context, eventID int64, upd HeaderUpdate) error
	LeafByEventPlayer(ctx context.Context, eventID, playerID int64, kind models.LeafKind) (*models.LeafRecord, error)
	InsertLeaf(ctx context.Context, rec *models.LeafRecord) error
	UpdateLeaf(ctx context.Context, id int64, value int64, recordedAt time.Time) error
	FlagLeaf(ctx context.Context, id int64, reason string) error
}

// Grouper assigns observations to events and enforces the per-event
// per-player per-kind uniqueness rule, so a foundry signup and the arsenal
// score that follows it live side by side under the same event. Attach
// operations for one (alliance, variant, key) are serialized behind a
// per-key mutex so concurrent workers never
// create two events for the same window.
type Grouper struct {
	store Store
	log   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(log *slog.Logger, store Store) *Grouper {
	return &Grouper{
		store: store,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

func (g *Grouper) keyLock(allianceID int64, variant models.EventVariant, key string) *sync.Mutex {
	id := fmt.Sprintf("%d:%s:%s", allianceID, variant, key)
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[id]
	if !ok {
		l = &sync.Mutex{}
		g.locks[id] = l
	}
	return l
}

// Attach resolves the event for obs, creating one when no open event matches,
// then inserts or reconciles the leaf record. recorded reports whether the
// stored state changed.
func (g *Grouper) Attach(ctx context.Context, obs Observation) (eventID int64, recorded bool, err error) {
	lock := g.keyLock(obs.AllianceID, obs.Variant, obs.Key)
	lock.Lock()
	defer lock.Unlock()

	ev, err := g.resolveEvent(ctx, obs.AllianceID, obs.Variant, obs.Key, obs.ObservedAt)
	if err != nil {
		return 0, false, err
	}

	existing, err := g.store.LeafByEventPlayer(ctx, ev.ID, obs.PlayerID, obs.Kind)
	if err != nil {
		return 0, false, fmt.Errorf("leaf lookup: %w", err)
	}

	if existing == nil {
		rec := &models.LeafRecord{
			EventID:      ev.ID,
			PlayerID:     obs.PlayerID,
			Kind:         obs.Kind,
			Value:        obs.Value,
			Rank:         obs.Rank,
			Furnace:      obs.Furnace,
			Voted:        obs.Voted,
			Flagged:      obs.Flagged,
			FlagReason:   obs.FlagReason,
			RecordedAt:   obs.ObservedAt,
			ScreenshotID: obs.ScreenshotID,
		}
		if err := g.store.InsertLeaf(ctx, rec); err != nil {
			return 0, false, fmt.Errorf("insert leaf: %w", err)
		}
		return ev.ID, true, nil
	}

	changed, err := g.reconcile(ctx, obs, existing)
	if err != nil {
		return 0, false, err
	}
	return ev.ID, changed, nil
}

// AttachHeader applies event-level fields, creating the event if needed.
func (g *Grouper) AttachHeader(ctx context.Context, allianceID int64, variant models.EventVariant, key string, observedAt time.Time, upd HeaderUpdate) (int64, error) {
	lock := g.keyLock(allianceID, variant, key)
	lock.Lock()
	defer lock.Unlock()

	ev, err := g.resolveEvent(ctx, allianceID, variant, key, observedAt)
	if err != nil {
		return 0, err
	}
	if err := g.store.UpdateEventHeader(ctx, ev.ID, upd); err != nil {
		return 0, fmt.Errorf("update event header: %w", err)
	}
	return ev.ID, nil
}

func (g *Grouper) resolveEvent(ctx context.Context, allianceID int64, variant models.EventVariant, key string, observedAt time.Time) (*models.Event, error) {
	window := windowFor(variant)
	ev, err := g.store.FindEvent(ctx, allianceID, variant, key, observedAt.Add(-window), observedAt.Add(window))
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	if ev != nil {
		return ev, nil
	}

	ev = &models.Event{
		AllianceID: allianceID,
		Variant:    variant,
		Key:        key,
		StartedAt:  eventStart(variant, key, observedAt),
	}
	id, err := g.store.CreateEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	ev.ID = id
	g.log.Info("event_created",
		"alliance_id", allianceID,
		"variant", string(variant),
		"key", key,
		"started_at", ev.StartedAt,
	)
	return ev, nil
}

// eventStart anchors calendar-keyed variants to their period boundary so a
// mid-week capture and a week-start capture land on the same event row. Bear
// events start at first observation.
func eventStart(variant models.EventVariant, key string, observedAt time.Time) time.Time {
	switch variant {
	case models.VariantContribution, models.VariantChampionship:
		return WeekStart(observedAt)
	case models.VariantRoster:
		return DayStart(observedAt)
	case models.VariantFoundry:
		// the key carries the event date
		if t, err := time.Parse("2006-01-02", key[len(key)-10:]); err == nil {
			return t
		}
		return DayStart(observedAt)
	default:
		return observedAt
	}
}

func (g *Grouper) reconcile(ctx context.Context, obs Observation, existing *models.LeafRecord) (bool, error) {
	policy, ok := policies[obs.Variant][obs.Kind]
	if !ok {
		return false, fmt.Errorf("no conflict policy for %s/%s", obs.Variant, obs.Kind)
	}

	divergent := isDivergent(existing.Value, obs.Value)

	switch policy {
	case KeepFirst:
		if existing.Value == obs.Value {
			return false, nil
		}
		reason := fmt.Sprintf("conflicting resubmission: stored %d, observed %d", existing.Value, obs.Value)
		if err := g.store.FlagLeaf(ctx, existing.ID, reason); err != nil {
			return false, fmt.Errorf("flag leaf: %w", err)
		}
		g.log.Warn("conflicting_observation",
			"event_id", existing.EventID,
			"player_id", existing.PlayerID,
			"stored_value", existing.Value,
			"observed_value", obs.Value,
			"divergent", divergent,
		)
		return true, nil

	case KeepMax:
		if obs.Value <= existing.Value {
			return false, nil
		}
		if err := g.store.UpdateLeaf(ctx, existing.ID, obs.Value, obs.ObservedAt); err != nil {
			return false, fmt.Errorf("update leaf: %w", err)
		}
		if divergent {
			g.log.Warn("conflicting_observation",
				"event_id", existing.EventID,
				"player_id", existing.PlayerID,
				"stored_value", existing.Value,
				"observed_value", obs.Value,
				"divergent", true,
			)
		}
		return true, nil

	case KeepLatest:
		if !obs.ObservedAt.After(existing.RecordedAt) {
			return false, nil
		}
		if err := g.store.UpdateLeaf(ctx, existing.ID, obs.Value, obs.ObservedAt); err != nil {
			return false, fmt.Errorf("update leaf: %w", err)
		}
		return true, nil
	}

	return false, nil
}

func isDivergent(a, b int64) bool {
	if a == b {
		return false
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		return hi > 0
	}
	return hi/lo >= divergenceFactor
}
