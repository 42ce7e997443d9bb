package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/dueflow/dueflow/app/dto"
	"github.com/dueflow/dueflow/app/scheduler"
	"github.com/dueflow/dueflow/app/services"
	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/repository"
	"github.com/dueflow/dueflow/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CollectionFlow is the campaign manager: it owns the execution table's
// lifecycle, validates creation requests, and exposes the pause, resume,
// complete, and status operations
type CollectionFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCollectionCampaignRequest) (*dto.CollectionCampaignResponse, error)
	PauseCampaign(ctx context.Context, campaignUUID string, until *time.Time) error
	ResumeCampaign(ctx context.Context, campaignUUID string) error
	CompleteCampaign(ctx context.Context, campaignUUID string, reason string) error
	GetExecutionStatus(ctx context.Context, campaignUUID string) (*dto.ExecutionStatusResponse, error)
	ListActiveExecutions() []dto.ExecutionDTO
	RestoreExecutions(ctx context.Context) error
}

// CollectionFlowImpl implements CollectionFlow
type CollectionFlowImpl struct {
	campaignRepo repository.CampaignRepository
	customerRepo repository.CustomerRepository
	paymentRepo  repository.PaymentRecordRepository
	taskRepo     repository.TaskRepository
	contextSvc   services.CustomerContextService
	optimizer    *scheduler.StepOptimizer
	runner       *scheduler.EscalationRunner
	table        *scheduler.ExecutionTable
	db           *gorm.DB
	logger       *log.Logger
}

// NewCollectionFlow creates a new collection campaign flow
func NewCollectionFlow(
	campaignRepo repository.CampaignRepository,
	customerRepo repository.CustomerRepository,
	paymentRepo repository.PaymentRecordRepository,
	taskRepo repository.TaskRepository,
	contextSvc services.CustomerContextService,
	optimizer *scheduler.StepOptimizer,
	runner *scheduler.EscalationRunner,
	table *scheduler.ExecutionTable,
	db *gorm.DB,
	logger *log.Logger,
) *CollectionFlowImpl {
	if logger == nil {
		logger = log.Default()
	}
	return &CollectionFlowImpl{
		campaignRepo: campaignRepo,
		customerRepo: customerRepo,
		paymentRepo:  paymentRepo,
		taskRepo:     taskRepo,
		contextSvc:   contextSvc,
		optimizer:    optimizer,
		runner:       runner,
		table:        table,
		db:           db,
		logger:       logger,
	}
}

// CreateCampaign validates the request, optimizes the step template for the
// customer, persists the campaign, and registers its execution. Validation
// failures reject synchronously; the campaign is never created.
func (f *CollectionFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCollectionCampaignRequest) (*dto.CollectionCampaignResponse, error) {
	if req.Name == "" {
		return nil, NewBusinessError("CAMPAIGN_NAME_REQUIRED", "campaign name is required", ErrCampaignNameRequired)
	}
	if len(req.Steps) == 0 {
		return nil, NewBusinessError("CAMPAIGN_STEPS_REQUIRED", "at least one escalation step is required", ErrCampaignStepsRequired)
	}

	template := stepsFromDTO(req.Steps)
	for _, step := range template {
		if err := step.Validate(); err != nil {
			return nil, NewBusinessError("INVALID_ESCALATION_STEP", err.Error(), ErrInvalidEscalationStep)
		}
	}

	customer, err := f.customerRepo.ByUUID(ctx, req.CustomerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "failed to look up customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "customer not found", ErrCustomerNotFound)
	}
	if !customer.IsActive {
		return nil, NewBusinessError("CUSTOMER_INACTIVE", "customer is inactive", ErrCustomerInactive)
	}

	payment, err := f.paymentRepo.ByUUID(ctx, req.PaymentRecordUUID)
	if err != nil {
		return nil, NewBusinessError("PAYMENT_LOOKUP_FAILED", "failed to look up payment record", err)
	}
	if payment == nil {
		return nil, NewBusinessError("PAYMENT_NOT_FOUND", "payment record not found", ErrPaymentRecordNotFound)
	}
	if payment.Status == models.PaymentStatusPaid || payment.Status == models.PaymentStatusCancelled {
		return nil, NewBusinessError("PAYMENT_ALREADY_SETTLED", "payment record is already settled", ErrPaymentAlreadySettled)
	}

	// The profile read is best-effort; optimization degrades to the plain
	// template when the context service is unavailable.
	profile, err := f.contextSvc.Snapshot(ctx, customer.ID)
	if err != nil {
		f.logger.Printf("collection flow: customer context for %d unavailable, using default steps: %v", customer.ID, err)
		profile = nil
	}
	steps := f.optimizer.Optimize(template, profile, payment.Amount)

	now := utils.UTCNow()
	campaign := &models.Campaign{
		UUID:            uuid.New(),
		Name:            req.Name,
		CustomerID:      customer.ID,
		PaymentRecordID: payment.ID,
		Status:          models.CampaignStatusActive,
		Steps:           steps,
		CurrentStep:     0,
		StartedAt:       &now,
		Config:          configFromDTO(req.Config),
	}

	if err := f.withTransaction(ctx, func(txCtx context.Context) error {
		return f.campaignRepo.Save(txCtx, campaign)
	}); err != nil {
		return nil, NewBusinessError("CAMPAIGN_SAVE_FAILED", "failed to save campaign", err)
	}

	exec := &scheduler.CampaignExecution{
		CampaignID:   campaign.ID,
		CampaignUUID: campaign.UUID,
		CustomerID:   customer.ID,
		CurrentStep:  0,
		NextDue:      now.Add(time.Duration(steps[0].DelayHours) * time.Hour),
		Status:       scheduler.ExecutionRunning,
		Context: scheduler.ExecutionContext{
			PaymentRecordID: payment.ID,
			Profile:         profile,
			StartedAt:       now,
		},
	}
	f.table.Register(exec)

	f.logger.Printf("collection flow: campaign %s created for customer %d, %d steps, first due %s",
		campaign.UUID, customer.ID, len(steps), exec.NextDue.Format(time.RFC3339))
	return campaignToDTO(campaign), nil
}

// PauseCampaign suspends the campaign's execution. With a deadline, the
// scheduler resumes it automatically once the deadline passes.
func (f *CollectionFlowImpl) PauseCampaign(ctx context.Context, campaignUUID string, until *time.Time) error {
	campaign, exec, err := f.resolve(ctx, campaignUUID)
	if err != nil {
		return err
	}
	if !campaign.IsRunnable() {
		return NewBusinessError("CAMPAIGN_NOT_RUNNABLE", "campaign is not active or paused", ErrCampaignNotRunnable)
	}

	exec.Pause(until)
	campaign.Status = models.CampaignStatusPaused
	campaign.PausedUntil = utils.TimeToUTCPtr(until)
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return NewBusinessError("CAMPAIGN_UPDATE_FAILED", "failed to persist pause", err)
	}

	f.logger.Printf("collection flow: campaign %s paused", campaignUUID)
	return nil
}

// ResumeCampaign puts the campaign back in rotation, due immediately. It
// also clears a failed execution so operators can restart a broken campaign.
func (f *CollectionFlowImpl) ResumeCampaign(ctx context.Context, campaignUUID string) error {
	campaign, exec, err := f.resolve(ctx, campaignUUID)
	if err != nil {
		return err
	}
	if !campaign.IsRunnable() {
		return NewBusinessError("CAMPAIGN_NOT_RUNNABLE", "campaign is not active or paused", ErrCampaignNotRunnable)
	}

	exec.Resume()
	campaign.Status = models.CampaignStatusActive
	campaign.PausedUntil = nil
	campaign.StatusReason = ""
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return NewBusinessError("CAMPAIGN_UPDATE_FAILED", "failed to persist resume", err)
	}

	f.logger.Printf("collection flow: campaign %s resumed", campaignUUID)
	return nil
}

// CompleteCampaign closes the campaign and removes its execution. Terminal.
func (f *CollectionFlowImpl) CompleteCampaign(ctx context.Context, campaignUUID string, reason string) error {
	campaign, exec, err := f.resolve(ctx, campaignUUID)
	if err != nil {
		return err
	}
	if !campaign.IsRunnable() {
		return NewBusinessError("CAMPAIGN_NOT_RUNNABLE", "campaign is not active or paused", ErrCampaignNotRunnable)
	}

	if err := f.runner.CompleteManually(ctx, exec, reason); err != nil {
		return NewBusinessError("CAMPAIGN_COMPLETE_FAILED", "failed to complete campaign", err)
	}

	f.logger.Printf("collection flow: campaign %s completed manually", campaignUUID)
	return nil
}

// GetExecutionStatus returns the durable campaign alongside its live cursor
func (f *CollectionFlowImpl) GetExecutionStatus(ctx context.Context, campaignUUID string) (*dto.ExecutionStatusResponse, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "campaign not found", ErrCampaignNotFound)
	}

	resp := &dto.ExecutionStatusResponse{
		Campaign: *campaignToDTO(campaign),
	}
	if exec := f.table.Get(campaign.ID); exec != nil {
		snap := exec.Snapshot()
		execDTO := snapshotToDTO(snap)
		resp.Execution = &execDTO
		resp.IsActive = snap.Status == scheduler.ExecutionRunning
	}
	return resp, nil
}

// ListActiveExecutions returns every live execution in insertion order
func (f *CollectionFlowImpl) ListActiveExecutions() []dto.ExecutionDTO {
	execs := f.table.List()
	out := make([]dto.ExecutionDTO, 0, len(execs))
	for _, exec := range execs {
		out = append(out, snapshotToDTO(exec.Snapshot()))
	}
	return out
}

// RestoreExecutions rebuilds the execution table from durable campaigns at
// boot. Active campaigns become due immediately; attempt counts for the
// current step and today's contact count are recovered from the task log.
func (f *CollectionFlowImpl) RestoreExecutions(ctx context.Context) error {
	campaigns, err := f.campaignRepo.ListRunnable(ctx)
	if err != nil {
		return NewBusinessError("CAMPAIGN_RESTORE_FAILED", "failed to list runnable campaigns", err)
	}

	now := utils.UTCNow()
	for _, campaign := range campaigns {
		profile, perr := f.contextSvc.Snapshot(ctx, campaign.CustomerID)
		if perr != nil {
			f.logger.Printf("collection flow: restore campaign %d without profile: %v", campaign.ID, perr)
			profile = nil
		}

		startedAt := now
		if campaign.StartedAt != nil {
			startedAt = *campaign.StartedAt
		}

		exec := &scheduler.CampaignExecution{
			CampaignID:   campaign.ID,
			CampaignUUID: campaign.UUID,
			CustomerID:   campaign.CustomerID,
			CurrentStep:  campaign.CurrentStep,
			TasksCreated: f.countStepAttempts(ctx, campaign),
			NextDue:      now,
			Status:       scheduler.ExecutionRunning,
			Context: scheduler.ExecutionContext{
				PaymentRecordID: campaign.PaymentRecordID,
				Profile:         profile,
				StartedAt:       startedAt,
				ContactsToday:   f.countTodayContacts(ctx, campaign.ID, now),
				ContactDay:      utils.UTCDayKey(now),
			},
		}
		if campaign.Status == models.CampaignStatusPaused {
			exec.Status = scheduler.ExecutionPaused
			exec.PausedUntil = campaign.PausedUntil
		}
		f.table.Register(exec)
	}

	f.logger.Printf("collection flow: restored %d executions", len(campaigns))
	return nil
}

// withTransaction wraps fn in a database transaction. A nil db runs fn
// directly against the injected repositories.
func (f *CollectionFlowImpl) withTransaction(ctx context.Context, fn func(context.Context) error) error {
	if f.db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, f.db, fn)
}

// resolve loads the campaign and its live execution by public UUID
func (f *CollectionFlowImpl) resolve(ctx context.Context, campaignUUID string) (*models.Campaign, *scheduler.CampaignExecution, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "campaign not found", ErrCampaignNotFound)
	}
	exec := f.table.Get(campaign.ID)
	if exec == nil {
		return nil, nil, NewBusinessError("EXECUTION_NOT_FOUND", "execution not found", ErrExecutionNotFound)
	}
	return campaign, exec, nil
}

// countStepAttempts recovers how many tasks the current step has already
// consumed, so a restart does not grant the step a fresh attempt budget
func (f *CollectionFlowImpl) countStepAttempts(ctx context.Context, campaign *models.Campaign) int {
	step, ok := campaign.StepAt(campaign.CurrentStep)
	if !ok {
		return 0
	}
	tasks, err := f.taskRepo.ByCampaignID(ctx, campaign.ID, 100, 0)
	if err != nil {
		f.logger.Printf("collection flow: count step attempts for campaign %d: %v", campaign.ID, err)
		return 0
	}
	count := 0
	for _, task := range tasks {
		if task.StepNumber == step.StepNumber {
			count++
		}
	}
	return count
}

func (f *CollectionFlowImpl) countTodayContacts(ctx context.Context, campaignID uint, now time.Time) int {
	midnight := utils.NextUTCMidnight(now).Add(-24 * time.Hour)
	count, err := f.taskRepo.CountCreatedSince(ctx, campaignID, midnight)
	if err != nil {
		f.logger.Printf("collection flow: count today's contacts for campaign %d: %v", campaignID, err)
		return 0
	}
	return int(count)
}

func stepsFromDTO(in []dto.EscalationStepDTO) []models.EscalationStep {
	steps := make([]models.EscalationStep, 0, len(in))
	for i, s := range in {
		conditions := make([]models.EscalationCondition, 0, len(s.Conditions))
		for _, c := range s.Conditions {
			conditions = append(conditions, models.EscalationCondition{
				Kind:     models.ConditionKind(c.Kind),
				Operator: models.ConditionOperator(c.Operator),
				Value:    c.Value,
			})
		}
		steps = append(steps, models.EscalationStep{
			StepNumber:  i + 1,
			Channel:     models.Channel(s.Channel),
			TemplateID:  s.TemplateID,
			DelayHours:  s.DelayHours,
			MaxAttempts: s.MaxAttempts,
			Conditions:  conditions,
		})
	}
	return steps
}

func configFromDTO(in *dto.CampaignConfigDTO) models.CampaignConfig {
	if in == nil {
		return models.CampaignConfig{}
	}
	return models.CampaignConfig{
		MaxDailyContacts: in.MaxDailyContacts,
		CooldownHours:    in.CooldownHours,
		ComplianceFlags:  in.ComplianceFlags,
	}
}

func campaignToDTO(campaign *models.Campaign) *dto.CollectionCampaignResponse {
	steps := make([]dto.CampaignStepDTO, 0, len(campaign.Steps))
	for _, s := range campaign.Steps {
		conditions := make([]dto.EscalationConditionDTO, 0, len(s.Conditions))
		for _, c := range s.Conditions {
			conditions = append(conditions, dto.EscalationConditionDTO{
				Kind:     string(c.Kind),
				Operator: string(c.Operator),
				Value:    c.Value,
			})
		}
		steps = append(steps, dto.CampaignStepDTO{
			StepNumber:  s.StepNumber,
			Channel:     string(s.Channel),
			TemplateID:  s.TemplateID,
			DelayHours:  s.DelayHours,
			MaxAttempts: s.MaxAttempts,
			Conditions:  conditions,
		})
	}
	return &dto.CollectionCampaignResponse{
		UUID:         campaign.UUID.String(),
		Name:         campaign.Name,
		Status:       campaign.Status.String(),
		StatusReason: campaign.StatusReason,
		CurrentStep:  campaign.CurrentStep,
		Steps:        steps,
		StartedAt:    campaign.StartedAt,
		EndedAt:      campaign.EndedAt,
		PausedUntil:  campaign.PausedUntil,
		Results: dto.CampaignResultsDTO{
			ContactsMade:       campaign.Results.ContactsMade,
			SuccessfulContacts: campaign.Results.SuccessfulContacts,
			PaymentsReceived:   campaign.Results.PaymentsReceived,
			AmountCollected:    campaign.Results.AmountCollected,
		},
		CreatedAt: campaign.CreatedAt,
	}
}

func snapshotToDTO(snap scheduler.ExecutionSnapshot) dto.ExecutionDTO {
	return dto.ExecutionDTO{
		CampaignUUID: snap.CampaignUUID.String(),
		CustomerID:   snap.CustomerID,
		CurrentStep:  snap.CurrentStep,
		TasksCreated: snap.TasksCreated,
		NextDue:      snap.NextDue,
		Status:       string(snap.Status),
		PausedUntil:  snap.PausedUntil,
		StartedAt:    snap.StartedAt,
	}
}
