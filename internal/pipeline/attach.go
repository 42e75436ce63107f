package pipeline

import (
	"context"
	"fmt"
	"time"

	"alliance-observatory/internal/grouper"
	"alliance-observatory/internal/models"
	"alliance-observatory/internal/ocr"
)

// attach routes parsed rows to their variant's event. Returns how many leaf
// records were inserted or updated.
func (p *Pipeline) attach(ctx context.Context, job Job, sc *models.Screenshot, parsed *ocr.ParseResult) (int, error) {
	capturedAt := sc.CapturedAt

	switch parsed.Type {
	case models.TypeAllianceMembers:
		return p.attachRows(ctx, job, capturedAt, parsed.Rows, grouper.Observation{
			Variant: models.VariantRoster,
			Key:     grouper.RosterKey(capturedAt),
			Kind:    models.KindSnapshot,
		})

	case models.TypeContribution:
		return p.attachRows(ctx, job, capturedAt, parsed.Rows, grouper.Observation{
			Variant: models.VariantContribution,
			Key:     grouper.ContributionKey(grouper.WeekStart(capturedAt)),
			Kind:    models.KindScore,
		})

	case models.TypeBearEvent:
		return p.attachRows(ctx, job, capturedAt, parsed.Rows, grouper.Observation{
			Variant: models.VariantBear,
			Key:     grouper.BearKey(parsed.TrapID),
			Kind:    models.KindScore,
		})

	case models.TypeBearOverview:
		_, err := p.grouper.AttachHeader(ctx, job.AllianceID, models.VariantBear,
			grouper.BearKey(parsed.TrapID), capturedAt,
			grouper.HeaderUpdate{
				RallyCount:  parsed.RallyCount,
				TotalDamage: parsed.TotalDamage,
				EndedAt:     &capturedAt,
			})
		if err != nil {
			return 0, err
		}
		return 0, nil

	case models.TypeFoundrySignup:
		return p.attachRows(ctx, job, capturedAt, parsed.Rows, grouper.Observation{
			Variant: models.VariantFoundry,
			Key:     grouper.FoundryKey(parsed.Legion, grouper.NextSunday(capturedAt)),
			Kind:    models.KindSignup,
		})

	case models.TypeFoundryResult:
		return p.attachRows(ctx, job, capturedAt, parsed.Rows, grouper.Observation{
			Variant: models.VariantFoundry,
			Key:     grouper.FoundryKey(parsed.Legion, grouper.PreviousSunday(capturedAt)),
			Kind:    models.KindScore,
		})

	case models.TypeChampionshipSignup:
		return p.attachRows(ctx, job, capturedAt, parsed.Rows, grouper.Observation{
			Variant: models.VariantChampionship,
			Key:     grouper.ChampionshipKey(grouper.WeekStart(capturedAt)),
			Kind:    models.KindSignup,
		})

	case models.TypeAlliancePower:
		return p.store.SaveAlliancePowerSnapshot(ctx, parsed.Alliances, grouper.DayStart(capturedAt), capturedAt)
	}

	return 0, fmt.Errorf("unhandled screenshot type %s", parsed.Type)
}

// attachRows resolves each row's name to a player and attaches the record
// under the template observation. capturedAt is handed down from run so the
// event key and ObservedAt always agree, even when the capture time fell
// back to the wall clock. Rows whose name could not be read at all
// are logged and skipped; there is no identity to bind them to.
func (p *Pipeline) attachRows(ctx context.Context, job Job, capturedAt time.Time, rows []ocr.Row, template grouper.Observation) (int, error) {
	saved := 0

	for _, row := range rows {
		if row.Name == "" {
			p.log.Warn("row_without_name_skipped",
				"screenshot_id", job.ScreenshotID,
				"flag_reason", row.FlagReason,
			)
			continue
		}

		playerID, err := p.resolver.Resolve(ctx, job.AllianceID, row.Name, capturedAt, job.ScreenshotID)
		if err != nil {
			return saved, fmt.Errorf("resolve %q: %w", row.Name, err)
		}

		obs := template
		obs.AllianceID = job.AllianceID
		obs.ObservedAt = capturedAt
		obs.PlayerID = playerID
		obs.Value = row.Value
		obs.Rank = row.Rank
		obs.Furnace = row.Furnace
		obs.Voted = row.Voted
		obs.Flagged = row.Flagged
		obs.FlagReason = row.FlagReason
		obs.ScreenshotID = job.ScreenshotID

		_, recorded, err := p.grouper.Attach(ctx, obs)
		if err != nil {
			return saved, fmt.Errorf("attach %q: %w", row.Name, err)
		}
		if recorded {
			saved++
		}
	}

	return saved, nil
}
