package grouper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"alliance-observatory/internal/models"
)

type memStore struct {
	nextEventID int64
	nextLeafID  int64
	events      []*models.Event
	leaves      []*models.LeafRecord
	headers     map[int64]HeaderUpdate
}

func newMemStore() *memStore {
	return &memStore{headers: make(map[int64]HeaderUpdate)}
}

func (s *memStore) FindEvent(_ context.Context, allianceID int64, variant models.EventVariant, key string, from, to time.Time) (*models.Event, error) {
	for _, ev := range s.events {
		if ev.AllianceID == allianceID && ev.Variant == variant && ev.Key == key &&
			!ev.StartedAt.Before(from) && ev.StartedAt.Before(to) {
			return ev, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateEvent(_ context.Context, ev *models.Event) (int64, error) {
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
	return ev.ID, nil
}

func (s *memStore) UpdateEventHeader(_ context.Context, eventID int64, upd HeaderUpdate) error {
	s.headers[eventID] = upd
	return nil
}

func (s *memStore) LeafByEventPlayer(_ context.Context, eventID, playerID int64, kind models.LeafKind) (*models.LeafRecord, error) {
	for _, l := range s.leaves {
		if l.EventID == eventID && l.PlayerID == playerID && l.Kind == kind {
			return l, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertLeaf(_ context.Context, rec *models.LeafRecord) error {
	s.nextLeafID++
	rec.ID = s.nextLeafID
	s.leaves = append(s.leaves, rec)
	return nil
}

func (s *memStore) UpdateLeaf(_ context.Context, id int64, value int64, recordedAt time.Time) error {
	for _, l := range s.leaves {
		if l.ID == id {
			l.Value = value
			l.RecordedAt = recordedAt
			return nil
		}
	}
	return nil
}

func (s *memStore) FlagLeaf(_ context.Context, id int64, reason string) error {
	for _, l := range s.leaves {
		if l.ID == id {
			l.Flagged = true
			l.FlagReason = reason
			return nil
		}
	}
	return nil
}

func testGrouper() (*Grouper, *memStore) {
	store := newMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, store), store
}

func bearObs(playerID, value int64, at time.Time) Observation {
	return Observation{
		AllianceID: 1,
		Variant:    models.VariantBear,
		Key:        BearKey(1),
		ObservedAt: at,
		PlayerID:   playerID,
		Kind:       models.KindScore,
		Value:      value,
	}
}

func TestAttach_BearWindowing(t *testing.T) {
	g, store := testGrouper()
	ctx := context.Background()
	start := time.Date(2025, 1, 14, 20, 0, 0, 0, time.UTC)

	id1, recorded, err := g.Attach(ctx, bearObs(10, 500, start))
	if err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if !recorded {
		t.Error("first attach should record")
	}

	// ten hours later, same hunt
	id2, _, err := g.Attach(ctx, bearObs(11, 700, start.Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("second attach: %v", err)
	}
	if id2 != id1 {
		t.Errorf("captures 10h apart landed on events %d and %d, want same", id1, id2)
	}

	// two days later, next hunt
	id3, _, err := g.Attach(ctx, bearObs(10, 900, start.Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("third attach: %v", err)
	}
	if id3 == id1 {
		t.Error("captures 48h apart should open a new event")
	}
	if len(store.events) != 2 {
		t.Errorf("expected 2 events, got %d", len(store.events))
	}
}

func TestAttach_Idempotent(t *testing.T) {
	g, store := testGrouper()
	ctx := context.Background()
	obs := bearObs(10, 500, time.Date(2025, 1, 14, 20, 0, 0, 0, time.UTC))

	if _, recorded, _ := g.Attach(ctx, obs); !recorded {
		t.Error("first attach should record")
	}
	if _, recorded, _ := g.Attach(ctx, obs); recorded {
		t.Error("identical resubmission should be a no-op")
	}
	if len(store.leaves) != 1 {
		t.Errorf("expected 1 leaf, got %d", len(store.leaves))
	}
}

func TestAttach_BearKeepsFirstAndFlagsConflict(t *testing.T) {
	g, store := testGrouper()
	ctx := context.Background()
	at := time.Date(2025, 1, 14, 20, 0, 0, 0, time.UTC)

	g.Attach(ctx, bearObs(10, 500, at))
	_, recorded, err := g.Attach(ctx, bearObs(10, 9000, at.Add(time.Hour)))
	if err != nil {
		t.Fatalf("conflicting attach: %v", err)
	}
	if !recorded {
		t.Error("conflict flagging should report a state change")
	}

	leaf := store.leaves[0]
	if leaf.Value != 500 {
		t.Errorf("stored value = %d, want the first observation kept", leaf.Value)
	}
	if !leaf.Flagged {
		t.Error("conflicting leaf should be flagged for review")
	}
}

func TestAttach_SignupKeepsMax(t *testing.T) {
	g, store := testGrouper()
	ctx := context.Background()
	at := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	key := FoundryKey(1, NextSunday(at))

	obs := Observation{
		AllianceID: 1, Variant: models.VariantFoundry, Key: key,
		ObservedAt: at, PlayerID: 10, Kind: models.KindSignup, Value: 1_000_000,
	}
	g.Attach(ctx, obs)

	obs.Value = 1_200_000
	obs.ObservedAt = at.Add(2 * time.Hour)
	if _, recorded, _ := g.Attach(ctx, obs); !recorded {
		t.Error("higher re-capture should supersede")
	}
	if store.leaves[0].Value != 1_200_000 {
		t.Errorf("value = %d, want 1200000", store.leaves[0].Value)
	}

	obs.Value = 800_000
	obs.ObservedAt = at.Add(3 * time.Hour)
	if _, recorded, _ := g.Attach(ctx, obs); recorded {
		t.Error("lower re-capture should be ignored")
	}
	if store.leaves[0].Value != 1_200_000 {
		t.Errorf("value = %d, want 1200000 preserved", store.leaves[0].Value)
	}
}

func TestAttach_FoundrySignupAndScoreCoexist(t *testing.T) {
	g, store := testGrouper()
	ctx := context.Background()

	// signup captured Wednesday, arsenal score the Monday after; both key the
	// same Sunday event
	signupAt := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	scoreAt := time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)
	key := FoundryKey(1, NextSunday(signupAt))
	if got := FoundryKey(1, PreviousSunday(scoreAt)); got != key {
		t.Fatalf("result key = %q, signup key = %q, want same", got, key)
	}

	id1, _, err := g.Attach(ctx, Observation{
		AllianceID: 1, Variant: models.VariantFoundry, Key: key,
		ObservedAt: signupAt, PlayerID: 10, Kind: models.KindSignup, Value: 1_000_000,
	})
	if err != nil {
		t.Fatalf("signup attach: %v", err)
	}

	id2, recorded, err := g.Attach(ctx, Observation{
		AllianceID: 1, Variant: models.VariantFoundry, Key: key,
		ObservedAt: scoreAt, PlayerID: 10, Kind: models.KindScore, Value: 3456,
	})
	if err != nil {
		t.Fatalf("score attach: %v", err)
	}
	if id2 != id1 {
		t.Errorf("score landed on event %d, signup on %d, want same", id2, id1)
	}
	if !recorded {
		t.Error("score for a signed-up player should record, not reconcile against the signup")
	}

	var signups, scores int
	for _, l := range store.leaves {
		switch l.Kind {
		case models.KindSignup:
			signups++
			if l.Flagged {
				t.Errorf("signup leaf flagged: %q", l.FlagReason)
			}
			if l.Value != 1_000_000 {
				t.Errorf("signup value = %d, want 1000000", l.Value)
			}
		case models.KindScore:
			scores++
			if l.Value != 3456 {
				t.Errorf("score value = %d, want 3456", l.Value)
			}
		}
	}
	if signups != 1 || scores != 1 {
		t.Errorf("leaves: %d signup, %d score; want 1 and 1", signups, scores)
	}
}

func TestAttach_RosterKeepsLatest(t *testing.T) {
	g, store := testGrouper()
	ctx := context.Background()
	at := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	obs := Observation{
		AllianceID: 1, Variant: models.VariantRoster, Key: RosterKey(at),
		ObservedAt: at, PlayerID: 10, Kind: models.KindSnapshot, Value: 45_000_000,
	}
	g.Attach(ctx, obs)

	obs.Value = 45_300_000
	obs.ObservedAt = at.Add(6 * time.Hour)
	g.Attach(ctx, obs)
	if store.leaves[0].Value != 45_300_000 {
		t.Errorf("value = %d, want the newer snapshot", store.leaves[0].Value)
	}

	// an older capture arriving late must not roll the snapshot back
	obs.Value = 44_000_000
	obs.ObservedAt = at.Add(-2 * time.Hour)
	if _, recorded, _ := g.Attach(ctx, obs); recorded {
		t.Error("stale snapshot should be ignored")
	}
	if store.leaves[0].Value != 45_300_000 {
		t.Errorf("value = %d, want 45300000 preserved", store.leaves[0].Value)
	}
}

func TestAttach_CalendarVariantsAnchorToPeriodStart(t *testing.T) {
	g, store := testGrouper()
	ctx := context.Background()

	wed := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	fri := time.Date(2025, 1, 17, 22, 0, 0, 0, time.UTC)

	mk := func(playerID int64, at time.Time) Observation {
		return Observation{
			AllianceID: 1, Variant: models.VariantContribution,
			Key: ContributionKey(WeekStart(at)), ObservedAt: at,
			PlayerID: playerID, Kind: models.KindScore, Value: 100,
		}
	}

	id1, _, _ := g.Attach(ctx, mk(10, wed))
	id2, _, _ := g.Attach(ctx, mk(11, fri))
	if id1 != id2 {
		t.Errorf("same-week captures landed on events %d and %d", id1, id2)
	}

	want := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
	if !store.events[0].StartedAt.Equal(want) {
		t.Errorf("event started_at = %v, want Monday %v", store.events[0].StartedAt, want)
	}
}

func TestAttachHeader(t *testing.T) {
	g, store := testGrouper()
	ctx := context.Background()
	at := time.Date(2025, 1, 14, 22, 0, 0, 0, time.UTC)

	rallies := 42
	damage := int64(6_442_016_308)
	id, err := g.AttachHeader(ctx, 1, models.VariantBear, BearKey(1), at, HeaderUpdate{
		RallyCount:  &rallies,
		TotalDamage: &damage,
		EndedAt:     &at,
	})
	if err != nil {
		t.Fatalf("AttachHeader: %v", err)
	}

	upd, ok := store.headers[id]
	if !ok {
		t.Fatal("header update not applied")
	}
	if upd.RallyCount == nil || *upd.RallyCount != 42 {
		t.Errorf("RallyCount = %v, want 42", upd.RallyCount)
	}

	// a damage screen arriving later joins the same event
	obs := bearObs(10, 500, at.Add(time.Hour))
	evID, _, err := g.Attach(ctx, obs)
	if err != nil {
		t.Fatalf("Attach after header: %v", err)
	}
	if evID != id {
		t.Errorf("damage rows landed on event %d, header on %d", evID, id)
	}
}

func TestIsDivergent(t *testing.T) {
	cases := []struct {
		a, b int64
		want bool
	}{
		{500, 500, false},
		{500, 900, false},
		{500, 1000, true},
		{1000, 500, true},
		{0, 100, true},
		{100, 150, false},
	}
	for _, tc := range cases {
		if got := isDivergent(tc.a, tc.b); got != tc.want {
			t.Errorf("isDivergent(%d, %d) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
