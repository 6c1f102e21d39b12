// Package scheduler hosts the in-process trigger that keeps slot
// materialization rolling ahead of the present. Deployments with an external
// scheduler disable it and call the materialize endpoint instead.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/orbitcal/orbitcal-api/internal/service"
)

// HorizonRoller runs the horizon service on a cron spec.
type HorizonRoller struct {
	cron    *cron.Cron
	horizon *service.HorizonService
	logger  *zap.Logger
}

// NewHorizonRoller wires the horizon service onto the cron spec.
func NewHorizonRoller(horizon *service.HorizonService, spec string, logger *zap.Logger) (*HorizonRoller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &HorizonRoller{
		cron:    cron.New(),
		horizon: horizon,
		logger:  logger,
	}
	_, err := r.cron.AddFunc(spec, r.run)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *HorizonRoller) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if _, err := r.horizon.Roll(ctx, time.Now().UTC()); err != nil {
		r.logger.Error("horizon roll failed", zap.Error(err))
	}
}

// Start begins cron scheduling.
func (r *HorizonRoller) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for a running roll to finish enqueueing.
func (r *HorizonRoller) Stop() {
	<-r.cron.Stop().Done()
}
