package models

import "time"

// ScreenshotType is the closed set of screens the pipeline understands.
type ScreenshotType string

const (
	TypeUnknown            ScreenshotType = "unknown"
	TypeAllianceMembers    ScreenshotType = "alliance_members"
	TypeContribution       ScreenshotType = "contribution"
	TypeBearEvent          ScreenshotType = "bear_event"
	TypeBearOverview       ScreenshotType = "bear_overview"
	TypeFoundrySignup      ScreenshotType = "foundry_signup"
	TypeFoundryResult      ScreenshotType = "foundry_result"
	TypeChampionshipSignup ScreenshotType = "championship_signup"
	TypeAlliancePower      ScreenshotType = "alliance_power"
)

// EventVariant identifies which grouping window and conflict policy apply.
type EventVariant string

const (
	VariantBear         EventVariant = "bear"
	VariantFoundry      EventVariant = "foundry"
	VariantChampionship EventVariant = "championship"
	VariantContribution EventVariant = "contribution"
	VariantRoster       EventVariant = "roster"
)

type Player struct {
	ID         int64     `json:"id"`
	AllianceID int64     `json:"alliance_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// PlayerAlias binds one observed display name to a player. An alias text is
// bound to at most one player per alliance; renames accumulate as new rows.
type PlayerAlias struct {
	ID         int64     `json:"id"`
	PlayerID   int64     `json:"player_id"`
	Alias      string    `json:"alias"`
	Confidence float64   `json:"confidence"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

type Event struct {
	ID         int64      `json:"id"`
	AllianceID int64      `json:"alliance_id"`
	Variant    EventVariant `json:"variant"`
	Key        string     `json:"key"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	RallyCount *int       `json:"rally_count,omitempty"`
	TotalValue *int64     `json:"total_value,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LeafKind distinguishes the three persisted record shapes that share the
// (event_id, player_id) uniqueness rule.
type LeafKind string

const (
	KindScore    LeafKind = "score"
	KindSignup   LeafKind = "signup"
	KindSnapshot LeafKind = "snapshot"
)

type LeafRecord struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	PlayerID     int64     `json:"player_id"`
	Kind         LeafKind  `json:"kind"`
	Value        int64     `json:"value"`
	Rank         *int      `json:"rank,omitempty"`
	Furnace      *int      `json:"furnace,omitempty"`
	Voted        bool      `json:"voted,omitempty"`
	Flagged      bool      `json:"flagged,omitempty"`
	FlagReason   string    `json:"flag_reason,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
	ScreenshotID int64     `json:"screenshot_id,omitempty"`
}

type ScreenshotStatus string

const (
	StatusPending    ScreenshotStatus = "pending"
	StatusProcessing ScreenshotStatus = "processing"
	StatusSucceeded  ScreenshotStatus = "succeeded"
	StatusFailed     ScreenshotStatus = "failed"
)

// Screenshot is the per-upload job row; the audit trail hangs off its id.
type Screenshot struct {
	ID           int64            `json:"id"`
	AllianceID   int64            `json:"alliance_id"`
	Filename     string           `json:"filename"`
	SHA256       string           `json:"sha256"`
	DetectedType ScreenshotType   `json:"detected_type"`
	Confidence   float64          `json:"confidence"`
	Status       ScreenshotStatus `json:"status"`
	Note         string           `json:"note,omitempty"`
	ArchiveURL   string           `json:"archive_url,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Degraded     bool             `json:"degraded,omitempty"`
	RecordsSaved int              `json:"records_saved"`
	CapturedAt   time.Time        `json:"captured_at"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ClassificationResult is ephemeral: produced per screenshot, consumed by the
// parser, retained only in the audit table.
type ClassificationResult struct {
	Type       ScreenshotType
	Confidence float64
	Method     string // "text", "hint", or "none"
	Text       string // downscaled whole-image recognition output
}

type AlliancePowerRow struct {
	Rank       int    `json:"rank"`
	Name       string `json:"name"`
	Tag        string `json:"tag,omitempty"`
	TotalPower int64  `json:"total_power"`
}
