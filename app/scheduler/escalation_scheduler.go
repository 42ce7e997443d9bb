package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/dueflow/dueflow/app/services"
	"github.com/dueflow/dueflow/repository"
	"github.com/dueflow/dueflow/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EscalationScheduler drives the engine: a fast ticker that runs due
// executions through the runner, and a slower stall monitor that requeues
// executions the fast loop missed. One scheduler per process; the execution
// table is process-local and running a second instance against the same store
// would emit duplicate tasks.
type EscalationScheduler struct {
	table        *ExecutionTable
	runner       *EscalationRunner
	campaignRepo repository.CampaignRepository
	notifier     services.OperatorNotifier
	logger       *log.Logger

	tickInterval       time.Duration
	stallCheckInterval time.Duration
	stallThreshold     time.Duration
	requeueDelay       time.Duration
}

// NewEscalationScheduler creates the scheduler. Non-positive intervals fall
// back to the defaults (60s tick, 5m stall check, 1h stall threshold, 5m
// requeue delay).
func NewEscalationScheduler(
	table *ExecutionTable,
	runner *EscalationRunner,
	campaignRepo repository.CampaignRepository,
	notifier services.OperatorNotifier,
	logger *log.Logger,
	tickInterval, stallCheckInterval, stallThreshold, requeueDelay time.Duration,
) *EscalationScheduler {
	if tickInterval <= 0 {
		tickInterval = utils.DefaultTickInterval
	}
	if stallCheckInterval <= 0 {
		stallCheckInterval = utils.DefaultStallCheckInterval
	}
	if stallThreshold <= 0 {
		stallThreshold = utils.DefaultStallThreshold
	}
	if requeueDelay <= 0 {
		requeueDelay = utils.DefaultRequeueDelay
	}
	if logger == nil {
		logger = log.Default()
	}
	return &EscalationScheduler{
		table:              table,
		runner:             runner,
		campaignRepo:       campaignRepo,
		notifier:           notifier,
		logger:             logger,
		tickInterval:       tickInterval,
		stallCheckInterval: stallCheckInterval,
		stallThreshold:     stallThreshold,
		requeueDelay:       requeueDelay,
	}
}

// NewEngineLogger builds the engine's logger, writing to stdout and, when a
// path is given, to a rotated file as well
func NewEngineLogger(logPath string) *log.Logger {
	var w io.Writer = os.Stdout
	if logPath != "" {
		rotator := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, rotator)
	}
	return log.New(w, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the scheduler loop and the stall monitor in background
// goroutines and returns a stop function
func (s *EscalationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	go s.startStallMonitor(ctx)

	return cancel
}

// runOnce processes every due execution, sequentially in insertion order.
// Failures are isolated per execution so one broken campaign cannot halt the
// rest of the tick.
func (s *EscalationScheduler) runOnce(ctx context.Context) {
	schedulerTicksTotal.Inc()
	now := utils.UTCNow()

	for _, exec := range s.table.List() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if exec.ResumeIfExpired(now) {
			s.logger.Printf("scheduler: campaign %d pause expired, resuming", exec.CampaignID)
		}
		if !exec.IsDue(now) {
			continue
		}

		if err := s.runner.ProcessExecution(ctx, exec); err != nil {
			s.failExecution(ctx, exec, err)
		}
	}
}

// failExecution takes a broken execution out of rotation, records the reason
// on the campaign, and alerts the operator. There is no automatic un-fail;
// an operator resumes or recreates the campaign explicitly.
func (s *EscalationScheduler) failExecution(ctx context.Context, exec *CampaignExecution, cause error) {
	exec.MarkFailed()
	executionsFailedTotal.Inc()
	snap := exec.Snapshot()
	s.logger.Printf("scheduler: campaign %d execution failed: %v", snap.CampaignID, cause)

	if campaign, err := s.campaignRepo.ByID(ctx, snap.CampaignID); err == nil && campaign != nil {
		campaign.StatusReason = cause.Error()
		if uerr := s.campaignRepo.Update(ctx, campaign); uerr != nil {
			s.logger.Printf("scheduler: record failure reason for campaign %d: %v", snap.CampaignID, uerr)
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyExecutionFailed(snap.CampaignUUID.String(), snap.CustomerID, cause.Error())
	}
}

// startStallMonitor runs the slower liveness loop. It bounds the maximum
// delay a stuck campaign can suffer; it does not retry the failed operation
// itself.
func (s *EscalationScheduler) startStallMonitor(ctx context.Context) {
	ticker := time.NewTicker(s.stallCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkStalls()
		}
	}
}

func (s *EscalationScheduler) checkStalls() {
	now := utils.UTCNow()
	for _, exec := range s.table.List() {
		if !exec.RequeueIfStalled(now, s.stallThreshold, s.requeueDelay) {
			continue
		}
		stallRequeuesTotal.Inc()
		snap := exec.Snapshot()
		s.logger.Printf("scheduler: campaign %d stalled, requeued for %s", snap.CampaignID, snap.NextDue.Format(time.RFC3339))
		if s.notifier != nil {
			s.notifier.NotifyExecutionStalled(snap.CampaignUUID.String(), snap.CustomerID)
		}
	}
}
