// Package jobs runs the background work of the server: rate warming and
// reconciliation of abandoned pending transactions.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"custody-wallet/internal/logger"
)

type Job interface {
	Start(ctx context.Context)
}

type Manager struct {
	jobs []Job
}

func New() *Manager {
	return &Manager{}
}

func (m *Manager) Register(job Job) {
	m.jobs = append(m.jobs, job)
}

// Start runs every registered job and blocks until ctx is done and all jobs
// have returned.
func (m *Manager) Start(ctx context.Context) {

	var wg sync.WaitGroup

	for _, job := range m.jobs {
		wg.Add(1)

		go func(j Job) {
			defer wg.Done()
			j.Start(ctx)
		}(job)
	}

	<-ctx.Done()
	wg.Wait()
}

// Ticker calls Fn every Interval until its context ends. Errors are logged
// and the next tick runs as usual.
type Ticker struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

func Every(name string, interval time.Duration, fn func(ctx context.Context) error) *Ticker {
	return &Ticker{Name: name, Interval: interval, Fn: fn}
}

func (t *Ticker) Start(ctx context.Context) {
	if t.Interval <= 0 {
		logger.Log.Info("job disabled", zap.String("job", t.Name))
		return
	}

	tick := time.NewTicker(t.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := t.Fn(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Warn("job failed", zap.String("job", t.Name), zap.Error(err))
			}
		}
	}
}
