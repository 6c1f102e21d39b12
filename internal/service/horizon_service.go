package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/orbitcal/orbitcal-api/internal/models"
	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
	"github.com/orbitcal/orbitcal-api/pkg/jobs"
)

// HorizonService rolls the materialized window forward as time passes. The
// trigger passes its notion of "now" explicitly so runs stay reproducible;
// every enqueueed extension is idempotent, and a run overlapping a
// foreground edit simply skips the contended event until the next pass.
type HorizonService struct {
	events eventRepository
	store  *SlotStore
	queue  *jobs.Queue
	window time.Duration
	logger *zap.Logger
}

type horizonJobPayload struct {
	EventID string
	Through time.Time
}

// NewHorizonService constructs the service and its worker queue.
func NewHorizonService(events eventRepository, store *SlotStore, window time.Duration, workers int, logger *zap.Logger) *HorizonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 90 * 24 * time.Hour
	}
	s := &HorizonService{events: events, store: store, window: window, logger: logger}
	s.queue = jobs.NewQueue("horizon-roll", s.handle, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return s
}

// Start launches the queue workers.
func (s *HorizonService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue.
func (s *HorizonService) Stop() {
	s.queue.Stop()
}

// Roll enqueues a horizon extension for every series lagging now+window.
// Returns the number of series scheduled.
func (s *HorizonService) Roll(ctx context.Context, now time.Time) (int, error) {
	through := models.DateOnly(now.Add(s.window))
	stale, err := s.events.ListStaleHorizons(ctx, through)
	if err != nil {
		return 0, err
	}
	for i := range stale {
		job := jobs.Job{
			Type:    "materialize",
			Payload: horizonJobPayload{EventID: stale[i].ID, Through: through},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("horizon roll enqueue failed", zap.String("event_id", stale[i].ID), zap.Error(err))
		}
	}
	s.logger.Info("horizon roll scheduled",
		zap.Int("events", len(stale)),
		zap.String("through", models.FormatDate(through)))
	return len(stale), nil
}

func (s *HorizonService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(horizonJobPayload)
	if !ok {
		return errors.New("unexpected horizon job payload")
	}
	_, err := s.store.Materialize(ctx, payload.EventID, payload.Through)
	if err != nil && errors.Is(err, appErrors.ErrConcurrentModification) {
		// Another writer holds the event; the next roll will catch it up.
		s.logger.Info("horizon roll skipped locked event", zap.String("event_id", payload.EventID))
		return nil
	}
	return err
}
