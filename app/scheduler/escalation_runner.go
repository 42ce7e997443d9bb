package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dueflow/dueflow/app/services"
	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/repository"
	"github.com/dueflow/dueflow/utils"
)

// Completion reasons recorded on the campaign and on the completion metric
const (
	ReasonPaymentReceived = "payment_received"
	ReasonStepsExhausted  = "steps_exhausted"
	ReasonManual          = "manual"
)

// EscalationRunner advances one campaign execution by exactly one decision
// per invocation: no-op, skip a step, complete, defer, or emit a task and
// reschedule. The scheduler loop drives it; the campaign manager reuses its
// terminal transitions for explicit completion.
type EscalationRunner struct {
	campaignRepo repository.CampaignRepository
	paymentRepo  repository.PaymentRecordRepository
	customerRepo repository.CustomerRepository
	contextSvc   services.CustomerContextService
	evaluator    *ConditionEvaluator
	emitter      *TaskEmitter
	table        *ExecutionTable
	logger       *log.Logger
}

// NewEscalationRunner creates an escalation runner
func NewEscalationRunner(
	campaignRepo repository.CampaignRepository,
	paymentRepo repository.PaymentRecordRepository,
	customerRepo repository.CustomerRepository,
	contextSvc services.CustomerContextService,
	evaluator *ConditionEvaluator,
	emitter *TaskEmitter,
	table *ExecutionTable,
	logger *log.Logger,
) *EscalationRunner {
	if logger == nil {
		logger = log.Default()
	}
	return &EscalationRunner{
		campaignRepo: campaignRepo,
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		contextSvc:   contextSvc,
		evaluator:    evaluator,
		emitter:      emitter,
		table:        table,
		logger:       logger,
	}
}

// ProcessExecution runs one decision for the execution. The execution's
// mutex is held for the whole decision so a campaign is never processed by
// two callers concurrently. A returned error means the attempt failed in a
// way the caller should surface; the execution itself is left running and the
// scheduler decides whether to mark it failed.
func (r *EscalationRunner) ProcessExecution(ctx context.Context, exec *CampaignExecution) error {
	exec.mu.Lock()
	defer exec.mu.Unlock()

	now := utils.UTCNow()
	if exec.Status != ExecutionRunning || exec.NextDue.After(now) {
		return nil
	}

	campaign, err := r.campaignRepo.ByID(ctx, exec.CampaignID)
	if err != nil {
		return fmt.Errorf("runner: load campaign %d: %w", exec.CampaignID, err)
	}
	if campaign == nil {
		return fmt.Errorf("runner: campaign %d no longer exists", exec.CampaignID)
	}

	step, ok := campaign.StepAt(exec.CurrentStep)
	if !ok {
		return r.complete(ctx, exec, campaign, ReasonStepsExhausted, now)
	}

	payment, err := r.paymentRepo.ByID(ctx, exec.Context.PaymentRecordID)
	if err != nil {
		return fmt.Errorf("runner: load payment record %d: %w", exec.Context.PaymentRecordID, err)
	}
	if payment == nil {
		return fmt.Errorf("runner: payment record %d no longer exists", exec.Context.PaymentRecordID)
	}

	profile := r.refreshProfile(ctx, exec)
	facts := models.NewCustomerFacts(payment, profile, now)

	// A failing condition means the step does not apply here. Skip it without
	// consuming an attempt.
	if !r.evaluator.EvaluateAll(step.Conditions, facts) {
		stepsSkippedTotal.Inc()
		r.logger.Printf("runner: campaign %d step %d skipped on conditions", campaign.ID, step.StepNumber)
		return r.advance(ctx, exec, campaign, now)
	}

	if payment.Status == models.PaymentStatusPaid {
		campaign.Results.PaymentsReceived++
		campaign.Results.AmountCollected += payment.AmountPaid
		campaign.Results.SuccessfulContacts++
		return r.complete(ctx, exec, campaign, ReasonPaymentReceived, now)
	}

	if deferred := r.deferIfDailyLimitReached(exec, campaign, now); deferred {
		return nil
	}

	customer, err := r.customerRepo.ByID(ctx, campaign.CustomerID)
	if err != nil {
		return fmt.Errorf("runner: load customer %d: %w", campaign.CustomerID, err)
	}
	if customer == nil {
		return fmt.Errorf("runner: customer %d no longer exists", campaign.CustomerID)
	}

	// The attempt is consumed whether or not the emit succeeds; a contact we
	// tried to make still counts against the step's budget.
	exec.TasksCreated++
	exec.Context.ContactsToday++
	exec.Context.ContactDay = utils.UTCDayKey(now)
	campaign.Results.ContactsMade++

	priority := taskPriority(facts.RiskTier, step.StepNumber)
	_, emitErr := r.emitter.Emit(ctx, campaign, step, customer, payment, exec.TasksCreated, priority, now)
	if emitErr != nil {
		if uerr := r.campaignRepo.Update(ctx, campaign); uerr != nil {
			r.logger.Printf("runner: persist campaign %d after emit failure: %v", campaign.ID, uerr)
		}
		return emitErr
	}

	if exec.TasksCreated >= step.MaxAttempts {
		return r.advance(ctx, exec, campaign, now)
	}

	exec.NextDue = now.Add(retryInterval(step))
	if err := r.campaignRepo.Update(ctx, campaign); err != nil {
		return fmt.Errorf("runner: persist campaign %d: %w", campaign.ID, err)
	}
	return nil
}

// CompleteManually runs the terminal transition for an operator-initiated
// completion. Used by the campaign manager.
func (r *EscalationRunner) CompleteManually(ctx context.Context, exec *CampaignExecution, reason string) error {
	exec.mu.Lock()
	defer exec.mu.Unlock()

	campaign, err := r.campaignRepo.ByID(ctx, exec.CampaignID)
	if err != nil {
		return fmt.Errorf("runner: load campaign %d: %w", exec.CampaignID, err)
	}
	if campaign == nil {
		return fmt.Errorf("runner: campaign %d no longer exists", exec.CampaignID)
	}
	if reason == "" {
		reason = ReasonManual
	}
	return r.complete(ctx, exec, campaign, reason, utils.UTCNow())
}

// advance moves the execution to the next step, resetting the attempt
// counter, and completes the campaign when the ladder is exhausted. Called
// with exec.mu held.
func (r *EscalationRunner) advance(ctx context.Context, exec *CampaignExecution, campaign *models.Campaign, now time.Time) error {
	exec.CurrentStep++
	exec.TasksCreated = 0
	campaign.CurrentStep = exec.CurrentStep

	next, ok := campaign.StepAt(exec.CurrentStep)
	if !ok {
		return r.complete(ctx, exec, campaign, ReasonStepsExhausted, now)
	}

	exec.NextDue = now.Add(time.Duration(next.DelayHours) * time.Hour)
	if err := r.campaignRepo.Update(ctx, campaign); err != nil {
		return fmt.Errorf("runner: persist campaign %d: %w", campaign.ID, err)
	}
	return nil
}

// complete runs the terminal transition: persist the campaign as completed
// and drop the execution from the table. Called with exec.mu held.
func (r *EscalationRunner) complete(ctx context.Context, exec *CampaignExecution, campaign *models.Campaign, reason string, now time.Time) error {
	campaign.Status = models.CampaignStatusCompleted
	campaign.StatusReason = reason
	campaign.CurrentStep = exec.CurrentStep
	campaign.EndedAt = &now
	if err := r.campaignRepo.Update(ctx, campaign); err != nil {
		return fmt.Errorf("runner: complete campaign %d: %w", campaign.ID, err)
	}

	exec.Status = ExecutionCompleted
	r.table.Remove(exec.CampaignID)
	executionsCompletedTotal.WithLabelValues(reason).Inc()
	r.logger.Printf("runner: campaign %d completed, reason=%s", campaign.ID, reason)
	return nil
}

// deferIfDailyLimitReached pushes the next attempt to the next UTC midnight
// when the campaign's daily contact budget is spent. Called with exec.mu
// held.
func (r *EscalationRunner) deferIfDailyLimitReached(exec *CampaignExecution, campaign *models.Campaign, now time.Time) bool {
	limit := campaign.Config.MaxDailyContacts
	if limit <= 0 {
		return false
	}

	day := utils.UTCDayKey(now)
	if exec.Context.ContactDay != day {
		exec.Context.ContactDay = day
		exec.Context.ContactsToday = 0
	}
	if exec.Context.ContactsToday < limit {
		return false
	}

	exec.NextDue = utils.NextUTCMidnight(now)
	r.logger.Printf("runner: campaign %d hit daily contact limit %d, deferring to %s", campaign.ID, limit, exec.NextDue.Format(time.RFC3339))
	return true
}

// refreshProfile re-reads the customer snapshot, falling back to the cached
// copy when the context service is unavailable. Called with exec.mu held.
func (r *EscalationRunner) refreshProfile(ctx context.Context, exec *CampaignExecution) *models.CustomerProfile {
	profile, err := r.contextSvc.Snapshot(ctx, exec.CustomerID)
	if err != nil {
		r.logger.Printf("runner: customer context for %d unavailable, using cached snapshot: %v", exec.CustomerID, err)
		return exec.Context.Profile
	}
	if profile != nil {
		exec.Context.Profile = profile
	}
	return exec.Context.Profile
}

// taskPriority escalates from the medium default when the customer's risk is
// critical or the ladder has reached its later rungs
func taskPriority(risk models.RiskTier, stepNumber int) models.TaskPriority {
	if risk == models.RiskTierCritical || stepNumber >= utils.EscalatedPriorityStep {
		return models.TaskPriorityHigh
	}
	return models.TaskPriorityMedium
}

// retryInterval spreads retries within a step evenly across the step's delay
// budget, floored at one hour to avoid tight loops
func retryInterval(step models.EscalationStep) time.Duration {
	interval := time.Duration(step.DelayHours) * time.Hour
	if step.MaxAttempts > 0 {
		interval /= time.Duration(step.MaxAttempts)
	}
	if interval < utils.MinRetryInterval {
		interval = utils.MinRetryInterval
	}
	return interval
}
