package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"MediaSentiment/internal/notifier"
	"MediaSentiment/internal/recorder"
)

// Runner is the job the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (*recorder.RunRecord, error)
	Last() (*recorder.RunRecord, error)
}

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("a run is already in progress")

// Scheduler runs the forecast on a cron schedule and on demand.
type Scheduler struct {
	Cron   *cron.Cron
	Runner Runner
	Ctx    context.Context

	running sync.Mutex
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		Runner: runner,
		Ctx:    ctx,
	}
}

// Register adds the forecast job under a cron expression.
func (s *Scheduler) Register(expr string) error {
	if _, err := s.Cron.AddFunc(expr, s.tick); err != nil {
		return fmt.Errorf("register forecast task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) tick() {
	if _, err := s.RunNow(); errors.Is(err, ErrBusy) {
		log.Warn().Msg("previous run still in progress, skipping tick")
	}
}

// RunNow executes one run unless another is in progress.
func (s *Scheduler) RunNow() (*recorder.RunRecord, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()
	return s.Runner.Run(s.Ctx)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/run":
		if _, err := s.RunNow(); errors.Is(err, ErrBusy) {
			return "⏳ " + ErrBusy.Error()
		}
		// the run already sent its own report
		return ""
	case "/last":
		run, err := s.Runner.Last()
		if errors.Is(err, recorder.ErrNoRuns) {
			return "No runs recorded yet."
		}
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatRun(run)
	default:
		return notifier.FormatHelp()
	}
}
