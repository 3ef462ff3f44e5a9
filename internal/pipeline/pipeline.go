// Package pipeline orchestrates period rebuilds: fetch slips and the active
// roster, resolve identities, build the period report and replace it in the
// store. It also serves the read paths that merge and compare stored
// reports.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/chapter-report/internal/aggregate"
	"github.com/sells-group/chapter-report/internal/classify"
	"github.com/sells-group/chapter-report/internal/compare"
	"github.com/sells-group/chapter-report/internal/identity"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
	"github.com/sells-group/chapter-report/internal/resilience"
	"github.com/sells-group/chapter-report/internal/store"
)

// EventSource delivers the raw slip events of one period.
type EventSource interface {
	FetchEvents(ctx context.Context, chapterID string, period model.Period) ([]model.RawEvent, error)
}

// RosterSource delivers the active roster of one period. An empty roster is
// allowed; the axis then holds only event participants.
type RosterSource interface {
	FetchActiveMembers(ctx context.Context, chapterID string, period model.Period) ([]model.RosterEntry, error)
}

// Options tunes a Service.
type Options struct {
	Classify       classify.Config
	Compare        compare.Options
	MaxConcurrency int
	// Retry applies to source fetches and the store write.
	Retry resilience.RetryConfig
	// Aliases seeds every rebuild. Aliases saved in the store override
	// entries with the same raw name.
	Aliases identity.Aliases
	Now     func() time.Time
}

// DefaultOptions returns the standard classification thresholds, top-5
// insights and four concurrent rebuilds.
func DefaultOptions() Options {
	return Options{
		Classify:       classify.DefaultConfig(),
		Compare:        compare.DefaultOptions(),
		MaxConcurrency: 4,
		Retry:          resilience.DefaultRetryConfig(),
		Now:            time.Now,
	}
}

// Service rebuilds and serves period reports.
type Service struct {
	events EventSource
	roster RosterSource
	store  store.Store
	opts   Options
	locks  *keyedMutex
}

// New creates a Service. Zero-valued options fall back to DefaultOptions.
func New(events EventSource, roster RosterSource, st store.Store, opts Options) *Service {
	def := DefaultOptions()
	if opts.Classify == (classify.Config{}) {
		opts.Classify = def.Classify
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = def.MaxConcurrency
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Service{
		events: events,
		roster: roster,
		store:  st,
		opts:   opts,
		locks:  newKeyedMutex(),
	}
}

// Rebuild recomputes one period from its sources and atomically replaces
// the stored report. Rebuilds of the same period are serialized.
func (s *Service) Rebuild(ctx context.Context, chapterID string, period model.Period) (*report.PeriodReport, error) {
	log := zap.L().With(zap.String("chapter", chapterID), zap.String("period", string(period)))

	unlock := s.locks.Lock(chapterID + "/" + string(period))
	defer unlock()

	start := time.Now()
	aliases, err := s.aliases(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	entries, err := resilience.DoVal(ctx, s.retry("fetch roster", chapterID, period),
		func(ctx context.Context) ([]model.RosterEntry, error) {
			return s.roster.FetchActiveMembers(ctx, chapterID, period)
		})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: fetch roster %s/%s", chapterID, period)
	}
	raw, err := resilience.DoVal(ctx, s.retry("fetch events", chapterID, period),
		func(ctx context.Context) ([]model.RawEvent, error) {
			return s.events.FetchEvents(ctx, chapterID, period)
		})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: fetch events %s/%s", chapterID, period)
	}

	resolver := identity.NewResolver(chapterID, aliases)
	for _, e := range entries {
		if _, err := resolver.Register(e); err != nil {
			return nil, err
		}
	}
	events, err := resolver.ResolveEvents(raw)
	if err != nil {
		return nil, err
	}

	rep, err := report.Build(chapterID, period, resolver, events, s.opts.Classify)
	if err != nil {
		return nil, err
	}
	rep.BuiltAt = s.opts.Now().UTC()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: rebuild cancelled")
	}
	snap := rep.Snapshot()
	err = resilience.Do(ctx, s.retry("replace report", chapterID, period), func(ctx context.Context) error {
		return s.store.ReplacePeriodReport(ctx, chapterID, period, snap)
	})
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: period rebuilt",
		zap.Int("members", rep.Axis.Len()),
		zap.Int("roster", len(entries)),
		zap.Int("events", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rep, nil
}

func (s *Service) retry(op, chapterID string, period model.Period) resilience.RetryConfig {
	cfg := s.opts.Retry
	cfg.OnRetry = resilience.RetryLogger(op, zap.String("chapter", chapterID), zap.String("period", string(period)))
	return cfg
}

// RebuildAll rebuilds periods concurrently, at most MaxConcurrency at a
// time. Results are in the order of periods. The first failure cancels the
// remaining rebuilds.
func (s *Service) RebuildAll(ctx context.Context, chapterID string, periods []model.Period) ([]*report.PeriodReport, error) {
	if len(periods) == 0 {
		return nil, &model.EmptyPeriodSetError{Op: "rebuild"}
	}

	out := make([]*report.PeriodReport, len(periods))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, p := range periods {
		g.Go(func() error {
			rep, err := s.Rebuild(gCtx, chapterID, p)
			if err != nil {
				return err
			}
			out[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Period loads one stored period report.
func (s *Service) Period(ctx context.Context, chapterID string, period model.Period) (*report.PeriodReport, error) {
	reps, err := s.store.LoadPeriodReports(ctx, chapterID, []model.Period{period})
	if err != nil {
		return nil, err
	}
	return reps[0], nil
}

// Periods lists the stored periods of a chapter.
func (s *Service) Periods(ctx context.Context, chapterID string) ([]model.Period, error) {
	return s.store.ListPeriods(ctx, chapterID)
}

// Aggregate merges the stored reports of periods.
func (s *Service) Aggregate(ctx context.Context, chapterID string, periods []model.Period) (*aggregate.Report, error) {
	periods = model.SortPeriods(periods)
	if len(periods) == 0 {
		return nil, &model.EmptyPeriodSetError{Op: "aggregate"}
	}
	reps, err := s.store.LoadPeriodReports(ctx, chapterID, periods)
	if err != nil {
		return nil, err
	}
	return aggregate.Merge(reps, s.opts.Classify)
}

// Compare diffs the stored reports of two periods.
func (s *Service) Compare(ctx context.Context, chapterID string, current, previous model.Period) (*compare.Result, error) {
	reps, err := s.store.LoadPeriodReports(ctx, chapterID, []model.Period{current, previous})
	if err != nil {
		return nil, err
	}
	return compare.Compare(reps[0], reps[1], s.opts.Compare)
}
