package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/obs"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store"
	"github.com/aussiebroadwan/tasktrack/pkg/revocation"
)

// HousekeepingService periodically sweeps expired entries out of the
// revocation registry so it cannot grow without bound. When Users is set each
// run also refreshes the registered users gauge.
type HousekeepingService struct {
	Registry revocation.Registry
	Users    store.Users  // optional
	Metrics  *obs.Metrics // optional
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to five minutes.
func NewHousekeepingService(registry revocation.Registry, metrics *obs.Metrics, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &HousekeepingService{
		Registry: registry,
		Metrics:  metrics,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweeper in the background until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down and waits for an in-progress sweep to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep removes expired revocation entries once and reports the result.
func (s *HousekeepingService) Sweep(ctx context.Context) (removed, remaining int) {
	removed, err := s.Registry.Sweep(ctx, s.Now())
	if err != nil {
		s.Logger.Error("failed to sweep revocation registry", "error", err)
		return 0, -1
	}

	remaining, err = s.Registry.Len(ctx)
	if err != nil {
		s.Logger.Error("failed to count revocation entries", "error", err)
		remaining = -1
	}

	if s.Metrics != nil {
		s.Metrics.RevocationsSwept.Add(float64(removed))
		if remaining >= 0 {
			s.Metrics.RevocationEntries.Set(float64(remaining))
		}
	}

	s.Logger.Debug("revocation registry swept", "removed", removed, "remaining", remaining)
	s.countUsers(ctx)
	return removed, remaining
}

func (s *HousekeepingService) countUsers(ctx context.Context) {
	if s.Users == nil || s.Metrics == nil {
		return
	}
	n, err := s.Users.CountUsers(ctx)
	if err != nil {
		s.Logger.Error("failed to count users", "error", err)
		return
	}
	s.Metrics.RegisteredUsers.Set(float64(n))
}
