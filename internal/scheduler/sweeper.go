// Package scheduler finds matches that need settling and hands them to the
// settlement engine on a timer.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"betting-service/internal/catalog"
	"betting-service/internal/metrics"
	"betting-service/internal/models"
	"betting-service/internal/services"
)

const (
	DefaultSpec = "@every 5m"
	LockKey     = "betting:settlement-sweep"
)

type MatchFinder interface {
	FindSettleableMatches(ctx context.Context) ([]catalog.SettleableMatch, error)
}

type Dispatcher interface {
	DispatchSettle(ctx context.Context, matchID int) error
	DispatchVoid(ctx context.Context, matchID int) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Settler interface {
	SettleMatch(ctx context.Context, matchID int) (services.SettlementResult, error)
	VoidMatchBets(ctx context.Context, matchID int) (services.SettlementResult, error)
}

// InlineDispatcher runs settlement in the calling process.
type InlineDispatcher struct {
	Settlement Settler
}

func (d InlineDispatcher) DispatchSettle(ctx context.Context, matchID int) error {
	_, err := d.Settlement.SettleMatch(ctx, matchID)
	return err
}

func (d InlineDispatcher) DispatchVoid(ctx context.Context, matchID int) error {
	_, err := d.Settlement.VoidMatchBets(ctx, matchID)
	return err
}

type Sweeper struct {
	Finder     MatchFinder
	Dispatcher Dispatcher
	// Locker is optional; without it every replica sweeps.
	Locker  Locker
	LockTTL time.Duration
	Spec    string
	Log     *zap.Logger
}

func NewSweeper(finder MatchFinder, dispatcher Dispatcher, locker Locker, log *zap.Logger) *Sweeper {
	return &Sweeper{
		Finder:     finder,
		Dispatcher: dispatcher,
		Locker:     locker,
		LockTTL:    4 * time.Minute,
		Spec:       DefaultSpec,
		Log:        log,
	}
}

type SweepReport struct {
	Skipped    bool
	Matches    int
	Dispatched int
	Failed     int
}

// Sweep dispatches a settle for every finished match and a void for every
// cancelled or postponed one that still has pending selections.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	if s.Locker != nil {
		release, ok, err := s.Locker.Acquire(ctx, LockKey, s.LockTTL)
		if err != nil {
			return report, err
		}
		if !ok {
			report.Skipped = true
			s.Log.Debug("settlement sweep skipped, lock held elsewhere")
			return report, nil
		}
		defer release()
	}

	matches, err := s.Finder.FindSettleableMatches(ctx)
	if err != nil {
		return report, err
	}
	report.Matches = len(matches)

	for _, m := range matches {
		var err error
		switch m.Status {
		case models.MatchFinished:
			err = s.Dispatcher.DispatchSettle(ctx, m.MatchId)
		case models.MatchCancelled, models.MatchPostponed:
			err = s.Dispatcher.DispatchVoid(ctx, m.MatchId)
		default:
			continue
		}
		if err != nil {
			report.Failed++
			s.Log.Error("settlement dispatch failed",
				zap.Int("match_id", m.MatchId),
				zap.String("status", string(m.Status)),
				zap.Error(err),
			)
			continue
		}
		report.Dispatched++
	}
	return report, nil
}

// Start schedules Sweep on cron. The caller stops the returned cron.
func (s *Sweeper) Start() (*cron.Cron, error) {
	spec := s.Spec
	if spec == "" {
		spec = DefaultSpec
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		report, err := s.Sweep(context.Background())
		if err != nil {
			s.Log.Error("settlement sweep failed", zap.Error(err))
			return
		}
		if !report.Skipped {
			s.Log.Info("settlement sweep finished",
				zap.Int("matches", report.Matches),
				zap.Int("dispatched", report.Dispatched),
				zap.Int("failed", report.Failed),
			)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	s.Log.Info("settlement scheduler started", zap.String("spec", spec))
	return c, nil
}
