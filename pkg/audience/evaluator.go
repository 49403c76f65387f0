package audience

import (
	"runtime"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"golang.org/x/sync/errgroup"
)

const defaultChunkSize = 256

// RuleMatch explains why a customer is in an audience.
type RuleMatch struct {
	UserID             string `json:"userId"`
	MatchedRuleIndices []int  `json:"matchedRuleIndices"`
}

// Evaluator computes audiences over snapshot collections. It is pure and safe
// for concurrent use.
type Evaluator struct {
	registry    *rule.Registry
	concurrency int
	chunkSize   int
}

// NewEvaluator creates an evaluator using the default operator registry.
// A concurrency below one uses GOMAXPROCS.
func NewEvaluator(concurrency int) *Evaluator {
	return NewEvaluatorWithRegistry(rule.DefaultRegistry(), concurrency)
}

// NewEvaluatorWithRegistry creates an evaluator over a specific operator registry.
func NewEvaluatorWithRegistry(registry *rule.Registry, concurrency int) *Evaluator {
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Evaluator{
		registry:    registry,
		concurrency: concurrency,
		chunkSize:   defaultChunkSize,
	}
}

// ComputeAudience returns the IDs of matching customers in snapshot order.
// Zero rules match nobody.
func (e *Evaluator) ComputeAudience(snapshots []Snapshot, rules []rule.SegmentRule, combination rule.Combination) []string {
	matches := e.evaluate(snapshots, rule.Condition{Rules: rules, Combination: combination}, false)

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.UserID)
	}
	return ids
}

// ComputeAudienceWithRuleMatch returns up to limit matches with the indices of
// the rules each customer satisfied. A limit below one returns every match.
func (e *Evaluator) ComputeAudienceWithRuleMatch(snapshots []Snapshot, rules []rule.SegmentRule, combination rule.Combination, limit int) []RuleMatch {
	matches := e.evaluate(snapshots, rule.Condition{Rules: rules, Combination: combination}, true)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Labels renders every rule with the evaluator's operator symbols.
func (e *Evaluator) Labels(rules []rule.SegmentRule) []string {
	labels := make([]string, len(rules))
	for i, r := range rules {
		labels[i] = e.registry.Label(r)
	}
	return labels
}

// evaluate fans chunks of snapshots out to workers. Each snapshot owns one result
// slot so order is preserved without locking.
func (e *Evaluator) evaluate(snapshots []Snapshot, condition rule.Condition, collect bool) []RuleMatch {
	if len(condition.Rules) == 0 || len(snapshots) == 0 {
		return []RuleMatch{}
	}

	slots := make([]*RuleMatch, len(snapshots))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for start := 0; start < len(snapshots); start += e.chunkSize {
		start := start
		end := start + e.chunkSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				matched, indices := e.registry.Match(condition, snapshots[i].Attributes, collect)
				if matched {
					slots[i] = &RuleMatch{UserID: snapshots[i].CustomerID, MatchedRuleIndices: indices}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	matches := make([]RuleMatch, 0, len(snapshots))
	for _, slot := range slots {
		if slot != nil {
			matches = append(matches, *slot)
		}
	}
	return matches
}
