// Package sweeper periodically removes expired refresh tokens.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/authflow/backend/models"
	"go.uber.org/zap"
)

// ExpiredTokenSweeper deletes expired refresh tokens and reports how many were removed
type ExpiredTokenSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// EventRecorder receives a tokens_swept event for every sweep that removed rows
type EventRecorder interface {
	Record(ctx context.Context, event *models.AuthEvent)
}

// Sweeper runs ExpiredTokenSweeper on a fixed interval in the background
type Sweeper struct {
	target   ExpiredTokenSweeper
	interval time.Duration
	recorder EventRecorder
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a Sweeper; call Start to begin sweeping
func New(target ExpiredTokenSweeper, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger,
	}
}

// WithRecorder makes the sweeper report removals to recorder
func (s *Sweeper) WithRecorder(recorder EventRecorder) *Sweeper {
	s.recorder = recorder
	return s
}

// Start launches the background loop. The first sweep runs immediately.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("sweeper already started")
	}
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.loop(ctx, s.done)

	s.logger.Info("started refresh token sweeper", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits up to timeout for an in-flight sweep
func (s *Sweeper) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("sweeper not started")
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		s.logger.Info("refresh token sweeper stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("sweeper stop timeout after %v", timeout)
	}
}

// RunOnce performs a single sweep
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	removed, err := s.target.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("refresh token sweep failed", zap.Error(err))
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("swept expired refresh tokens", zap.Int64("removed", removed))
		if s.recorder != nil {
			s.recorder.Record(ctx, models.NewAuthEvent(models.AuthActionTokensSwept).WithCount("removed", removed))
		}
	}
	return removed, nil
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		_, _ = s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
