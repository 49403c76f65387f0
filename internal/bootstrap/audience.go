// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/sirupsen/logrus"
)

// InitAudienceResolver creates the resolver that turns segment IDs into
// audiences.
//
// ============================================================
// DEVELOPER: Register custom rule operators here.
// ============================================================
// Segment rules compare one customer attribute against a value.
// The builtin operators are eq, ne, gt, gte, lt, lte and in.
//
// To add an operator, register its comparator before the
// evaluator is created:
//
//	rule.RegisterOperator("starts_with", "^=", func(attr, target rule.Value) bool {
//	    return strings.HasPrefix(attr.Str, target.Str)
//	})
//
// ============================================================
func InitAudienceResolver(
	segments audience.SegmentGetter,
	snapshots audience.SnapshotLoader,
	cache audience.Cache,
	cacheTTL time.Duration,
) *audience.Resolver {
	evaluator := audience.NewEvaluatorWithRegistry(rule.DefaultRegistry(), 0)
	logrus.Infof("initialized audience evaluator with %d operators", rule.DefaultRegistry().Count())

	if cacheTTL <= 0 {
		cache = nil
		logrus.Info("audience cache disabled")
	}

	resolver := audience.NewResolver(segments, snapshots, evaluator, cache, cacheTTL)
	logrus.Infof("initialized audience resolver (cache TTL %s)", cacheTTL)

	return resolver
}
