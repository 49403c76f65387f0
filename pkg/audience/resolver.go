package audience

import (
	"context"
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/metrics"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// SegmentGetter loads segment definitions.
type SegmentGetter interface {
	GetSegment(ctx context.Context, id string) (*Segment, error)
}

// SegmentSaver persists segment definitions.
type SegmentSaver interface {
	SaveSegment(ctx context.Context, segment *Segment) error
}

// ResolveOptions selects which parts of a Result are returned.
type ResolveOptions struct {
	IncludeUserIDs bool
	IncludeLabels  bool
	// Fresh bypasses the cache and refreshes it.
	Fresh bool
}

// Resolver turns a segment ID into its current audience.
type Resolver struct {
	segments  SegmentGetter
	loader    SnapshotLoader
	evaluator *Evaluator
	cache     Cache
	ttl       time.Duration
	now       func() time.Time
}

// NewResolver creates a resolver. A nil cache disables caching.
func NewResolver(segments SegmentGetter, loader SnapshotLoader, evaluator *Evaluator, cache Cache, ttl time.Duration) *Resolver {
	return &Resolver{
		segments:  segments,
		loader:    loader,
		evaluator: evaluator,
		cache:     cache,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Resolve returns the audience of a segment.
func (r *Resolver) Resolve(ctx context.Context, segmentID string, opts ResolveOptions) (*Result, error) {
	segment, err := r.segments.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && !opts.Fresh {
		cached, ok, err := r.cache.Get(ctx, segmentID)
		if err != nil {
			logrus.Warnf("audience cache lookup failed for segment %s: %v", segmentID, err)
		}
		if ok {
			metrics.AudienceCacheLookups.WithLabelValues("hit").Inc()
			return trim(cached, opts), nil
		}
		metrics.AudienceCacheLookups.WithLabelValues("miss").Inc()
	}

	result, err := r.compute(ctx, segment)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, result, r.ttl); err != nil {
			logrus.Warnf("failed to cache audience for segment %s: %v", segmentID, err)
		}
	}

	return trim(result, opts), nil
}

// Explain returns up to limit members with the rules each one matched, plus the
// labels those indices refer to.
func (r *Resolver) Explain(ctx context.Context, segmentID string, limit int) ([]RuleMatch, []string, error) {
	segment, err := r.segments.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, nil, err
	}

	snapshots, err := r.snapshots(ctx, segment)
	if err != nil {
		return nil, nil, err
	}

	matches := r.evaluator.ComputeAudienceWithRuleMatch(snapshots, segment.Rules, segment.Combination, limit)
	return matches, r.evaluator.Labels(segment.Rules), nil
}

// ReplaceRules swaps the rules of a stored segment, saves it through saver and
// drops its cached audience so the next Resolve sees the new definition.
func (r *Resolver) ReplaceRules(ctx context.Context, saver SegmentSaver, segmentID string, rules []rule.SegmentRule, combination rule.Combination) (*Segment, error) {
	current, err := r.segments.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if err := updated.ReplaceRules(rules, combination, r.now()); err != nil {
		return nil, err
	}
	if err := saver.SaveSegment(ctx, &updated); err != nil {
		return nil, err
	}
	if err := r.Invalidate(ctx, segmentID); err != nil {
		return &updated, fmt.Errorf("segment %s saved but its cached audience was not dropped: %w", segmentID, err)
	}
	return &updated, nil
}

// Invalidate drops the cached audience of a segment.
func (r *Resolver) Invalidate(ctx context.Context, segmentID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, segmentID)
}

func (r *Resolver) compute(ctx context.Context, segment *Segment) (*Result, error) {
	snapshots, err := r.snapshots(ctx, segment)
	if err != nil {
		return nil, err
	}

	timer := prometheus.NewTimer(metrics.AudienceEvaluations)
	matches := r.evaluator.ComputeAudienceWithRuleMatch(snapshots, segment.Rules, segment.Combination, 0)
	timer.ObserveDuration()

	userIDs := make([]string, len(matches))
	hit := make([]bool, len(segment.Rules))
	for i, m := range matches {
		userIDs[i] = m.UserID
		for _, idx := range m.MatchedRuleIndices {
			hit[idx] = true
		}
	}

	var labels []string
	for i, label := range r.evaluator.Labels(segment.Rules) {
		if hit[i] {
			labels = append(labels, label)
		}
	}

	logrus.Debugf("segment %s resolved to %d of %d customers", segment.ID, len(userIDs), len(snapshots))

	return &Result{
		SegmentID:         segment.ID,
		Count:             len(userIDs),
		UserIDs:           userIDs,
		MatchedRuleLabels: labels,
		ComputedAt:        r.now(),
	}, nil
}

// snapshots loads the segment's customers and drops any from another tenant.
func (r *Resolver) snapshots(ctx context.Context, segment *Segment) ([]Snapshot, error) {
	loaded, err := r.loader.LoadSnapshots(ctx, segment.OrganizationID, segment.LocationIDs)
	if err != nil {
		return nil, service.NewStoreError("audience.loadSnapshots", err)
	}

	snapshots := loaded[:0:0]
	for _, s := range loaded {
		if s.OrganizationID == segment.OrganizationID {
			snapshots = append(snapshots, s)
		}
	}
	return snapshots, nil
}

func trim(result *Result, opts ResolveOptions) *Result {
	out := &Result{
		SegmentID:  result.SegmentID,
		Count:      result.Count,
		ComputedAt: result.ComputedAt,
	}
	if opts.IncludeUserIDs {
		out.UserIDs = result.UserIDs
	}
	if opts.IncludeLabels {
		out.MatchedRuleLabels = result.MatchedRuleLabels
	}
	return out
}
