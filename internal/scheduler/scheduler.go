package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/ai776/daily-picks/internal/ai"
	"github.com/ai776/daily-picks/internal/logger"
	"github.com/ai776/daily-picks/internal/portfolio"
)

// Refresher is implemented by portfolio.Service.
type Refresher interface {
	RefreshMarketData(ctx context.Context) (portfolio.RefreshResult, error)
	RefreshNews(ctx context.Context) ([]ai.NewsItem, error)
}

// Scheduler refreshes market data (and optionally news) on a cron schedule.
type Scheduler struct {
	refresher Refresher
	spec      string
	news      bool
	cron      *cron.Cron
	logger    *logger.Logger
}

// New builds a scheduler. An empty spec disables scheduled refreshes.
func New(r Refresher, spec string, news bool, log *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{refresher: r, spec: spec, news: news, logger: log}
	if spec == "" {
		return s, nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	cl := log.Cron()
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	return s, nil
}

// Start schedules the refresh job. Runs use ctx until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron == nil {
		s.logger.Info("scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "news", s.news)
	return nil
}

// Stop stops scheduling and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce performs one refresh cycle. Panics are recovered and logged.
func (s *Scheduler) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in scheduler cycle", "panic", fmt.Sprint(r))
		}
	}()

	s.logger.Info("=== refresh cycle start ===")

	res, err := s.refresher.RefreshMarketData(ctx)
	switch {
	case errors.Is(err, portfolio.ErrRefreshInProgress):
		s.logger.Info("market refresh skipped: already running")
	case err != nil:
		s.logger.Error("market refresh failed", "error", err)
	default:
		s.logger.Info("market refresh done", "available", res.Available, "updated", res.Updated, "rate", res.ExchangeRate)
	}

	if s.news {
		items, err := s.refresher.RefreshNews(ctx)
		switch {
		case errors.Is(err, portfolio.ErrRefreshInProgress):
			s.logger.Info("news refresh skipped: already running")
		case err != nil:
			s.logger.Error("news refresh failed", "error", err)
		default:
			s.logger.Info("news refresh done", "items", len(items))
		}
	}

	s.logger.Info("=== refresh cycle end ===")
}
