package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/pkg/jobs"
)

// JobTypeBillRun identifies bill generation jobs on the queue.
const JobTypeBillRun = "bill_run"

// BillRunPayload is the queued form of a bill run.
type BillRunPayload struct {
	ReferenceDate time.Time
	Trigger       string
}

type billRunner interface {
	Run(ctx context.Context, referenceDate time.Time, trigger string) (*models.BillRunSummary, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) (string, error)
}

// BillSchedulerConfig configures the monthly bill run.
type BillSchedulerConfig struct {
	Enabled  bool
	Schedule string
	Timezone string
}

// BillScheduler enqueues bill runs on a cron schedule and executes queued
// runs. Runs triggered from the API go through the same queue.
type BillScheduler struct {
	cron     *cron.Cron
	runner   billRunner
	queue    jobQueue
	cfg      BillSchedulerConfig
	location *time.Location
	logger   *zap.Logger
}

// NewBillScheduler builds the scheduler. An unknown timezone is an error.
func NewBillScheduler(runner billRunner, cfg BillSchedulerConfig, logger *zap.Logger) (*BillScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("load bill timezone %q: %w", cfg.Timezone, err)
		}
	}
	return &BillScheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		runner:   runner,
		cfg:      cfg,
		location: loc,
		logger:   logger.With(zap.String("component", "bill_scheduler")),
	}, nil
}

// AttachQueue sets the queue that scheduled and async runs are pushed to.
func (s *BillScheduler) AttachQueue(q jobQueue) {
	s.queue = q
}

// Handle executes a queued bill run. It is the queue's job handler.
func (s *BillScheduler) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(BillRunPayload)
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	summary, err := s.runner.Run(ctx, payload.ReferenceDate, payload.Trigger)
	if err != nil {
		return err
	}
	s.logger.Info("queued bill run done",
		zap.String("job_id", job.ID),
		zap.Int("created", summary.Created),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

// BillRunKey identifies the billing month of a run so that one month is
// never queued twice at once.
func BillRunKey(referenceDate time.Time) string {
	return JobTypeBillRun + ":" + referenceDate.Format("2006-01")
}

// Enqueue schedules a bill run for referenceDate and returns the job id.
func (s *BillScheduler) Enqueue(referenceDate time.Time, trigger string) (string, error) {
	if s.queue == nil {
		return "", fmt.Errorf("bill queue not attached")
	}
	return s.queue.Enqueue(jobs.Job{
		Key:     BillRunKey(referenceDate),
		Type:    JobTypeBillRun,
		Payload: BillRunPayload{ReferenceDate: referenceDate, Trigger: trigger},
	})
}

// Start registers the cron entry when scheduling is enabled.
func (s *BillScheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("bill scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.tick); err != nil {
		return fmt.Errorf("schedule bill run %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.logger.Info("bill scheduler started", zap.String("schedule", s.cfg.Schedule), zap.String("timezone", s.location.String()))
	return nil
}

// Stop halts the cron and waits for a running tick to return.
func (s *BillScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *BillScheduler) tick() {
	ref := time.Now().In(s.location)
	ref = time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	id, err := s.Enqueue(ref, BillTriggerScheduled)
	if err != nil {
		s.logger.Error("enqueue scheduled bill run", zap.Error(err))
		return
	}
	s.logger.Info("scheduled bill run enqueued", zap.String("job_id", id))
}
