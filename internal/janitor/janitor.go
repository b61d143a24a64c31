// Package janitor removes abandoned carts on a schedule.
package janitor

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xenking/merch-store/internal/domain/cart"
)

// Janitor deletes carts that have not been modified within the retention
// window.
type Janitor struct {
	storage   cart.Storage
	schedule  string
	retention time.Duration
	now       func() time.Time
	lg        *zap.Logger
}

// New creates a Janitor. schedule uses standard cron syntax or descriptors
// such as "@hourly".
func New(storage cart.Storage, schedule string, retention time.Duration, lg *zap.Logger) (*Janitor, error) {
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, errors.Wrapf(err, "parse schedule %q", schedule)
	}
	return &Janitor{
		storage:   storage,
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
		lg:        lg,
	}, nil
}

// Sweep deletes stale carts once and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)

	var n int
	err := j.storage.InTx(ctx, func(tx cart.Tx) error {
		var err error
		n, err = tx.Carts().DeleteStale(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete stale carts")
	}
	return n, nil
}

// Run sweeps on the configured schedule until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(j.schedule, func() {
		n, err := j.Sweep(ctx)
		if err != nil {
			j.lg.Error("Cart sweep failed", zap.Error(err))
			return
		}
		j.lg.Info("Cart sweep done", zap.Int("deleted", n))
	}); err != nil {
		return errors.Wrap(err, "schedule sweep")
	}

	j.lg.Info("Cart janitor started",
		zap.String("schedule", j.schedule),
		zap.Duration("retention", j.retention),
	)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
