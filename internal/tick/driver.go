// Package tick drives the shared 1 Hz clock that advances every running
// timer.
package tick

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/RobDeGeorge/fathertime/internal/timer"
)

// Driver wraps a gocron scheduler running a single fixed-interval job.
// Singleton mode guarantees a tick never overlaps with itself; the
// registry's lock guarantees it never overlaps with a command.
type Driver struct {
	scheduler gocron.Scheduler
	registry  *timer.Registry
}

// NewDriver creates the tick driver. interval is normally one second.
func NewDriver(registry *timer.Registry, interval time.Duration) (*Driver, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	d := &Driver{scheduler: s, registry: registry}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(d.tick),
		gocron.WithName("tick"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tick job: %w", err)
	}
	return d, nil
}

func (d *Driver) tick() {
	d.registry.Tick(time.Now())
}

// Start begins ticking.
func (d *Driver) Start(ctx context.Context) {
	slog.Info("starting tick driver")
	d.scheduler.Start()
}

// Stop gracefully shuts down the driver.
func (d *Driver) Stop(ctx context.Context) error {
	slog.Info("stopping tick driver")
	return d.scheduler.Shutdown()
}
