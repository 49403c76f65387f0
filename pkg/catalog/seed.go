package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/AccelByte/extend-marketing-automation/pkg/store"
	"github.com/sirupsen/logrus"
)

// Store is the persistence the seeder writes to.
type Store interface {
	store.SegmentStore
	store.JourneyStore
	store.IncentiveStore
}

// Invalidator drops the cached audience of a segment. Both audience.Cache and
// audience.Resolver satisfy it.
type Invalidator interface {
	Invalidate(ctx context.Context, segmentID string) error
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Segments   int
	Journeys   int
	Incentives int
	// Skipped lists journeys left alone because they already left DRAFT.
	Skipped []string
}

// Seed upserts the catalog into the store. Segments and incentives are
// overwritten, and the cached audience of every rewritten segment is dropped
// through invalidator when one is given. A journey is only written while it is
// new or still a DRAFT in the store; journeys declared ACTIVE are activated on
// first write.
func Seed(ctx context.Context, st Store, c *Catalog, now time.Time, invalidator Invalidator) (*SeedResult, error) {
	result := &SeedResult{}

	for i := range c.Segments {
		seg := c.Segments[i]
		seg.CreatedAt, seg.UpdatedAt = now, now
		if existing, err := st.GetSegment(ctx, seg.ID); err == nil {
			seg.CreatedAt = existing.CreatedAt
		} else if !service.IsNotFound(err) {
			return result, err
		}
		if err := st.SaveSegment(ctx, &seg); err != nil {
			return result, err
		}
		if invalidator != nil {
			if err := invalidator.Invalidate(ctx, seg.ID); err != nil {
				return result, fmt.Errorf("failed to invalidate audience of segment %s: %w", seg.ID, err)
			}
		}
		result.Segments++
	}

	for i := range c.Incentives {
		inc := c.Incentives[i]
		inc.CreatedAt, inc.UpdatedAt = now, now
		if existing, err := st.GetIncentive(ctx, inc.ID); err == nil {
			inc.CreatedAt = existing.CreatedAt
		} else if !service.IsNotFound(err) {
			return result, err
		}
		if err := st.SaveIncentive(ctx, &inc); err != nil {
			return result, err
		}
		result.Incentives++
	}

	for i := range c.Journeys {
		written, err := seedJourney(ctx, st, c.Journeys[i], now)
		if err != nil {
			return result, err
		}
		if written {
			result.Journeys++
		} else {
			result.Skipped = append(result.Skipped, c.Journeys[i].ID)
		}
	}

	logrus.WithFields(logrus.Fields{
		"segments":   result.Segments,
		"journeys":   result.Journeys,
		"incentives": result.Incentives,
		"skipped":    len(result.Skipped),
	}).Info("catalog seeded")

	return result, nil
}

func seedJourney(ctx context.Context, st Store, j journey.Journey, now time.Time) (bool, error) {
	j.CreatedAt, j.UpdatedAt = now, now
	existing, err := st.GetJourney(ctx, j.ID)
	switch {
	case err == nil && existing.Status != journey.StatusDraft:
		logrus.WithFields(logrus.Fields{
			"journey_id": j.ID,
			"status":     existing.Status,
		}).Info("journey already live, catalog definition ignored")
		return false, nil
	case err == nil:
		j.CreatedAt = existing.CreatedAt
	case !service.IsNotFound(err):
		return false, err
	}

	activate := j.Status == journey.StatusActive
	j.Status = journey.StatusDraft
	if activate {
		if err := j.Activate(now); err != nil {
			return false, err
		}
	}
	if err := st.SaveJourney(ctx, &j); err != nil {
		return false, err
	}
	return true, nil
}
