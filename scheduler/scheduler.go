package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"optionsdesk/apperrors"
	"optionsdesk/config"
	"optionsdesk/logger"
)

// Activity intervals per the concurrency model: fetch ~1 Hz, signal
// ~0.2 Hz, risk heartbeat ~0.033 Hz.
const (
	fetchInterval  = 1 * time.Second
	signalInterval = 5 * time.Second
	riskInterval   = 30 * time.Second
)

// Scheduler runs the engine's activities on their cadences. Each
// activity is mutually exclusive with itself; different activities may
// interleave freely.
type Scheduler struct {
	engine *Engine
	cfg    *config.Config
	cron   *cron.Cron

	fetchGate  sync.Mutex
	signalGate sync.Mutex
	riskGate   sync.Mutex
}

// New builds a Scheduler over a wired Engine.
func New(cfg *config.Config, engine *Engine) *Scheduler {
	return &Scheduler{
		engine: engine,
		cfg:    cfg,
		cron:   cron.New(cron.WithLocation(cfg.Location)),
	}
}

// Run starts every activity and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	// Day-start at 09:10 and end-of-day at 15:35, weekdays only, in the
	// exchange time zone.
	if _, err := s.cron.AddFunc("10 9 * * 1-5", s.engine.DayStart); err != nil {
		return apperrors.Wrap(apperrors.ConfigInvalid, "registering day-start cron", err)
	}
	if _, err := s.cron.AddFunc("35 15 * * 1-5", s.engine.EndOfDay); err != nil {
		return apperrors.Wrap(apperrors.ConfigInvalid, "registering end-of-day cron", err)
	}
	s.cron.Start()
	defer s.cron.Stop()

	// A process started mid-session still needs the day's risk state.
	s.engine.DayStart()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.loop(ctx, fetchInterval, &s.fetchGate, s.fetch)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, signalInterval, &s.signalGate, s.generate)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, riskInterval, &s.riskGate, func(context.Context) { s.engine.RiskHeartbeat() })
	}()

	wg.Wait()
	return ctx.Err()
}

// loop ticks the activity at its interval. The gate enforces
// max-instances = 1: a tick that arrives while the previous run is
// still going is skipped, not queued.
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, gate *sync.Mutex, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !gate.TryLock() {
				continue
			}
			fn(ctx)
			gate.Unlock()
		}
	}
}

func (s *Scheduler) fetch(ctx context.Context) {
	if err := s.engine.FetchOnce(ctx); err != nil {
		// Transient by policy: log and let the next tick retry.
		logger.Debugf("fetch tick: %v", err)
	}
}

func (s *Scheduler) generate(ctx context.Context) {
	if _, _, err := s.engine.GenerateSignal(ctx); err != nil {
		if apperrors.Is(err, apperrors.BufferNotReady) {
			return // expected during warm-up
		}
		logger.Warnf("signal tick: %v", err)
	}
}
