package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AccelByte/extend-marketing-automation/pkg/common"
	"github.com/AccelByte/extend-marketing-automation/pkg/incentive"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/store"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTickSpec    = "@every 30s"
	DefaultRefreshSpec = "@every 5m"
)

// Catalog lists the definitions the runner schedules.
type Catalog interface {
	ListJourneys(ctx context.Context, filter store.JourneyFilter) ([]journey.Journey, error)
	ListIncentives(ctx context.Context, organizationID string) ([]incentive.Incentive, error)
}

// Granter runs an incentive grant.
type Granter interface {
	GrantToSegment(ctx context.Context, incentiveID string, gctx incentive.GrantContext) (*incentive.Result, error)
}

type RunnerConfig struct {
	// TickSpec is the cron spec of scheduler ticks.
	TickSpec string
	// RefreshSpec is the cron spec of segment-entry passes and schedule syncs.
	RefreshSpec string
}

type scheduledJob struct {
	id   cron.EntryID
	spec string
}

// Runner drives the scheduler from cron: periodic ticks, segment-entry passes,
// DATE_BASED journey schedules and scheduled incentive grants.
type Runner struct {
	scheduler *Scheduler
	catalog   Catalog
	granter   Granter
	cfg       RunnerConfig
	cron      *cron.Cron

	mu   sync.Mutex
	jobs map[string]scheduledJob
	ctx  context.Context
}

func NewRunner(s *Scheduler, catalog Catalog, granter Granter, cfg RunnerConfig) *Runner {
	if cfg.TickSpec == "" {
		cfg.TickSpec = DefaultTickSpec
	}
	if cfg.RefreshSpec == "" {
		cfg.RefreshSpec = DefaultRefreshSpec
	}

	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &Runner{
		scheduler: s,
		catalog:   catalog,
		granter:   granter,
		cfg:       cfg,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(
				cron.SkipIfStillRunning(logger),
				cron.Recover(logger),
			),
		),
		jobs: make(map[string]scheduledJob),
		ctx:  context.Background(),
	}
}

// Start registers the fixed jobs, syncs the definition schedules and starts
// the cron loop. Jobs run with ctx until Stop.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	if _, err := r.cron.AddFunc(r.cfg.TickSpec, r.tick); err != nil {
		return fmt.Errorf("invalid tick spec %q: %w", r.cfg.TickSpec, err)
	}
	if _, err := r.cron.AddFunc(r.cfg.RefreshSpec, r.refresh); err != nil {
		return fmt.Errorf("invalid refresh spec %q: %w", r.cfg.RefreshSpec, err)
	}
	if err := r.Sync(ctx); err != nil {
		return err
	}

	r.cron.Start()
	logrus.Infof("scheduler runner started (tick %s, refresh %s)", r.cfg.TickSpec, r.cfg.RefreshSpec)
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	logrus.Info("scheduler runner stopped")
}

func (r *Runner) jobContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

func (r *Runner) tick() {
	if _, err := r.scheduler.Tick(r.jobContext()); err != nil {
		logrus.Errorf("scheduler tick failed: %v", err)
	}
}

func (r *Runner) refresh() {
	ctx := r.jobContext()
	if err := r.Sync(ctx); err != nil {
		logrus.Errorf("failed to sync schedules: %v", err)
	}
	if err := r.EnrollSegmentEntries(ctx); err != nil {
		logrus.Errorf("segment entry pass failed: %v", err)
	}
}

// EnrollSegmentEntries runs one segment-entry pass over every ACTIVE
// SEGMENT_ENTRY journey, enrolling customers who newly match its segment.
func (r *Runner) EnrollSegmentEntries(ctx context.Context) error {
	scope := common.NewScope(ctx, "scheduler.segment_entry")
	defer scope.Finish()

	journeys, err := r.catalog.ListJourneys(scope.Ctx, store.JourneyFilter{
		Status:      journey.StatusActive,
		TriggerType: journey.TriggerSegmentEntry,
	})
	if err != nil {
		scope.TraceError(err)
		return err
	}

	for _, j := range journeys {
		if _, err := r.scheduler.EnrollNewMembers(scope.Ctx, j.ID, "segment_entry"); err != nil {
			scope.Log.Warnf("segment entry for journey %s failed: %v", j.ID, err)
		}
	}
	return nil
}

// Sync reconciles the cron entries of DATE_BASED journeys and scheduled
// incentives with the catalog. Entries whose spec changed are replaced.
func (r *Runner) Sync(ctx context.Context) error {
	want := make(map[string]string)
	runs := make(map[string]func())

	journeys, err := r.catalog.ListJourneys(ctx, store.JourneyFilter{
		Status:      journey.StatusActive,
		TriggerType: journey.TriggerDateBased,
	})
	if err != nil {
		return fmt.Errorf("failed to list date-based journeys: %w", err)
	}
	for _, j := range journeys {
		key := "journey:" + j.ID
		want[key] = j.Schedule
		runs[key] = r.enrollJob(j.ID)
	}

	if r.granter != nil {
		incentives, err := r.catalog.ListIncentives(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to list incentives: %w", err)
		}
		for _, inc := range incentives {
			if !inc.Active || inc.Schedule == "" {
				continue
			}
			key := "incentive:" + inc.ID
			want[key] = inc.Schedule
			runs[key] = r.grantJob(inc.ID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, job := range r.jobs {
		if spec, ok := want[key]; !ok || spec != job.spec {
			r.cron.Remove(job.id)
			delete(r.jobs, key)
		}
	}
	for key, spec := range want {
		if _, ok := r.jobs[key]; ok {
			continue
		}
		id, err := r.cron.AddFunc(spec, runs[key])
		if err != nil {
			logrus.Errorf("invalid schedule %q for %s: %v", spec, key, err)
			continue
		}
		r.jobs[key] = scheduledJob{id: id, spec: spec}
	}
	return nil
}

// Scheduled returns the keys of the scheduled definition jobs, sorted.
func (r *Runner) Scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.jobs))
	for key := range r.jobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r *Runner) enrollJob(journeyID string) func() {
	return func() {
		res, err := r.scheduler.EnrollSegment(r.jobContext(), journeyID, "schedule")
		if err != nil {
			logrus.Errorf("scheduled enrollment of journey %s failed: %v", journeyID, err)
			return
		}
		logrus.Infof("scheduled enrollment of journey %s: %d enrolled", journeyID, res.Succeeded)
	}
}

func (r *Runner) grantJob(incentiveID string) func() {
	return func() {
		_, err := r.granter.GrantToSegment(r.jobContext(), incentiveID, incentive.GrantContext{TriggeredBy: "schedule", Fresh: true})
		if err != nil {
			logrus.Errorf("scheduled grant of incentive %s failed: %v", incentiveID, err)
		}
	}
}
