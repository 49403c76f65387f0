// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"github.com/AccelByte/extend-marketing-automation/internal/config"
	"github.com/AccelByte/extend-marketing-automation/pkg/scheduler"
	"github.com/sirupsen/logrus"
)

// InitScheduler creates the journey scheduler and the cron runner that
// drives it.
//
// ============================================================
// DEVELOPER: Scheduler cadence
// ============================================================
// The runner owns three kinds of jobs:
//   - the tick (SCHEDULER_SPEC) advancing due participants
//   - the refresh (SCHEDULER_REFRESH_SPEC) re-reading DATE_BASED
//     journeys and scheduled incentives, and enrolling new
//     SEGMENT_ENTRY matches (the last seen membership of each
//     journey is kept in Redis)
//   - one job per DATE_BASED journey and scheduled incentive
//
// Several processes may run the scheduler against one database;
// participants are claimed with a lease so each step runs once.
// ============================================================
func InitScheduler(
	cfg *config.Config,
	st scheduler.Store,
	attributes scheduler.AttributeLoader,
	resolver scheduler.AudienceResolver,
	dispatcher scheduler.Dispatcher,
	members scheduler.MembershipTracker,
	catalog scheduler.Catalog,
	granter scheduler.Granter,
) (*scheduler.Scheduler, *scheduler.Runner) {
	s := scheduler.New(st, attributes, resolver, dispatcher, scheduler.Config{
		WorkerID:  cfg.WorkerID,
		BatchSize: cfg.SchedulerBatchSize,
		ClaimTTL:  cfg.SchedulerClaimTTL,
		Members:   members,
	})

	runner := scheduler.NewRunner(s, catalog, granter, scheduler.RunnerConfig{
		TickSpec:    cfg.SchedulerSpec,
		RefreshSpec: cfg.SchedulerRefreshSpec,
	})

	logrus.Infof("initialized scheduler (worker %s, batch %d, tick %s)",
		cfg.WorkerID, cfg.SchedulerBatchSize, cfg.SchedulerSpec)

	return s, runner
}
