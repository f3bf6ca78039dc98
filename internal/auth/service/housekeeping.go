package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/store"
)

// HousekeepingService periodically removes expired rows that nothing will
// ever read again: lapsed refresh tokens, lapsed access tokens, and stale
// login-session values.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// cleanup interval. An interval of zero defaults to hourly.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background cleanup loop. Call Stop to terminate it.
func (s *HousekeepingService) Start() {
	go s.run()
}

// Stop signals the loop to exit and waits for the in-flight cleanup, if
// any, to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	// Run once on startup so a service that restarts rarely still gets
	// cleaned.
	s.cleanup()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup sweeps each table independently so one failure doesn't block the
// others.
func (s *HousekeepingService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx); err != nil {
		s.Logger.Error("housekeeping: refresh tokens", "err", err)
	}
	if err := s.Store.AccessTokens().DeleteExpiredAccessTokens(ctx); err != nil {
		s.Logger.Error("housekeeping: access tokens", "err", err)
	}
	if err := s.Store.Sessions().DeleteExpiredSessionValues(ctx); err != nil {
		s.Logger.Error("housekeeping: session values", "err", err)
	}
}
