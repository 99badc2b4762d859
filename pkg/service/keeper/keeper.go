// Package keeper runs the in-process automation agent. On every tick it
// advances ready accounts one round at a time until none is ready or the
// per-tick limit is reached.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/metrics"
	"github.com/amirasaad/accrual/pkg/service/scheduler"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// Tick results.
const (
	ResultAdvanced = "advanced"
	ResultIdle     = "idle"
	ResultSkipped  = "skipped"
	ResultError    = "error"
)

// Report summarises one tick.
type Report struct {
	Result   string
	Advanced []uint64
}

type Keeper struct {
	scheduler *scheduler.Service
	policy    *access.Policy
	identity  access.Identity
	schedule  cron.Schedule
	spec      string
	max       int
	metrics   *metrics.Metrics
	logger    *slog.Logger

	group singleflight.Group
	cron  *cron.Cron
}

// New validates the configured schedule. The keeper acts as the configured
// automation agent and stands down while that identity does not hold the role.
func New(deps config.Deps, sched *scheduler.Service) (*Keeper, error) {
	cfg := deps.Config.Keeper
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: keeper schedule %q: %w", domain.ErrValidation, cfg.Schedule, err)
	}
	max := cfg.MaxAdvancesPerTick
	if max <= 0 {
		max = 1
	}
	return &Keeper{
		scheduler: sched,
		policy:    deps.Policy,
		identity:  access.Identity(deps.Config.Roles.AutomationAgent),
		schedule:  schedule,
		spec:      cfg.Schedule,
		max:       max,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("service", "keeper"),
	}, nil
}

// Tick advances ready accounts. Concurrent calls share a single run.
func (k *Keeper) Tick(ctx context.Context) (Report, error) {
	v, err, shared := k.group.Do("tick", func() (any, error) {
		return k.tick(ctx)
	})
	report := v.(Report)
	if shared {
		k.logger.Debug("tick already running, joined")
	}
	return report, err
}

func (k *Keeper) tick(ctx context.Context) (report Report, err error) {
	defer func() { k.metrics.ObserveKeeperTick(report.Result) }()

	if !k.policy.Has(k.identity, access.RoleAutomationAgent) {
		k.logger.Debug("not the automation agent, skipping", "identity", k.identity)
		return Report{Result: ResultSkipped}, nil
	}

	report.Result = ResultIdle
	for range k.max {
		if err := ctx.Err(); err != nil {
			break
		}
		next, err := k.scheduler.FindNextReady(ctx)
		if err != nil {
			report.Result = ResultError
			return report, err
		}
		if next == nil {
			break
		}
		_, _, err = k.scheduler.AdvanceRound(ctx, k.identity, next.ID, next.Round())
		if errors.Is(err, domain.ErrStaleRound) || errors.Is(err, domain.ErrTiming) {
			// Another agent got there first.
			k.logger.Debug("lost advance race", "account_id", next.ID, "error", err)
			break
		}
		if err != nil {
			report.Result = ResultError
			return report, err
		}
		report.Advanced = append(report.Advanced, next.ID)
		report.Result = ResultAdvanced
	}
	if len(report.Advanced) > 0 {
		k.logger.Info("tick complete", "advanced", len(report.Advanced))
	}
	return report, nil
}

// Start runs Tick on the configured schedule until Stop.
func (k *Keeper) Start(ctx context.Context) {
	k.cron = cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	k.cron.Schedule(k.schedule, cron.FuncJob(func() {
		if _, err := k.Tick(ctx); err != nil {
			k.logger.Error("tick failed", "error", err)
		}
	}))
	k.cron.Start()
	k.logger.Info("keeper started", "schedule", k.spec, "identity", k.identity, "max_per_tick", k.max)
}

// Stop waits for a running tick to finish.
func (k *Keeper) Stop() {
	if k.cron == nil {
		return
	}
	<-k.cron.Stop().Done()
	k.logger.Info("keeper stopped")
}
