// Package sweep periodically expires attempts that ran past their deadline.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mind-engage/mindengage-quiz/internal/logger"
)

// Expirer is satisfied by *quiz.Service.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

type Sweeper struct {
	log     *logger.Logger
	exp     Expirer
	cron    *cron.Cron
	timeout time.Duration
}

// New schedules the sweep with a cron spec such as "@every 1m".
func New(log *logger.Logger, exp Expirer, spec string) (*Sweeper, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Sweeper{
		log:     log.With("component", "sweep"),
		exp:     exp,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: 30 * time.Second,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("sweep: bad schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce performs one sweep.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.exp.ExpireOverdue(ctx)
	if err != nil {
		s.log.Error("expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("expiry sweep", "expired", n)
	}
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running sweep, or ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
