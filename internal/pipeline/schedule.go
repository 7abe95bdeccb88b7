package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/messaging"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

const scheduledSubmitTimeout = 30 * time.Second

// ParseSchedule accepts a standard five-field cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, models.NewValidationError("cron_schedule", err.Error(), spec)
	}
	return sched, nil
}

// Scheduler re-submits ingestion requests on their cron schedule. Each
// firing enqueues a one-off copy of the request on the job stream.
// Schedules live in memory and are keyed by pipeline name.
type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	jobs   messaging.JobSubmitter
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler(ctx context.Context, jobs messaging.JobSubmitter, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		ctx:     ctx,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		jobs:    jobs,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  log,
		entries: map[string]cron.EntryID{},
	}
}

// Start runs the schedule loop until Stop or until the scheduler's context
// is cancelled.
func (s *Scheduler) Start() {
	s.cron.Start()
	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()
}

// Stop halts the loop and waits for running submissions.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Register installs req's schedule, replacing any earlier schedule for the
// same pipeline name, and returns the next run time.
func (s *Scheduler) Register(req Request) (time.Time, error) {
	sched, err := ParseSchedule(req.CronSchedule)
	if err != nil {
		return time.Time{}, err
	}

	run := req
	run.CronSchedule = ""
	fire := cron.FuncJob(func() { s.submit(run) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[req.Name]; ok {
		s.cron.Remove(id)
	}
	s.entries[req.Name] = s.cron.Schedule(sched, fire)
	return sched.Next(s.now().UTC()), nil
}

// Scheduled returns the registered pipeline names with their next run.
func (s *Scheduler) Scheduled() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) submit(template Request) {
	run := template
	run.ID = template.ID + "-" + s.newID()
	run.SubmittedAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(s.ctx, scheduledSubmitTimeout)
	defer cancel()
	if err := s.jobs.Submit(ctx, messaging.SubjectIngestJob, run); err != nil {
		s.logger.Error().Err(err).Str("pipeline", run.Name).Msg("Scheduled ingestion submit failed")
		return
	}
	s.logger.Info().Str("pipeline", run.Name).Str("id", run.ID).Msg("Scheduled ingestion submitted")
}
