package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dueflow/dueflow/app/services"
	"github.com/dueflow/dueflow/models"
	testingutil "github.com/dueflow/dueflow/testing"
	"github.com/dueflow/dueflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerHarness struct {
	fixtures     *testingutil.TestFixtures
	campaignRepo *testingutil.FakeCampaignRepository
	paymentRepo  *testingutil.FakePaymentRecordRepository
	customerRepo *testingutil.FakeCustomerRepository
	taskRepo     *testingutil.FakeTaskRepository
	dispatcher   *services.MockTaskDispatcher
	contextSvc   *testingutil.StubCustomerContextService
	table        *ExecutionTable
	runner       *EscalationRunner
}

func newRunnerHarness() *runnerHarness {
	h := &runnerHarness{
		fixtures:     testingutil.NewTestFixtures(),
		campaignRepo: testingutil.NewFakeCampaignRepository(),
		paymentRepo:  testingutil.NewFakePaymentRecordRepository(),
		customerRepo: testingutil.NewFakeCustomerRepository(),
		taskRepo:     testingutil.NewFakeTaskRepository(),
		dispatcher:   services.NewMockTaskDispatcher(),
		contextSvc:   &testingutil.StubCustomerContextService{},
		table:        NewExecutionTable(),
	}
	emitter := NewTaskEmitter(h.taskRepo, h.dispatcher, "support@example.com", nil)
	h.runner = NewEscalationRunner(
		h.campaignRepo,
		h.paymentRepo,
		h.customerRepo,
		h.contextSvc,
		NewConditionEvaluator(nil),
		emitter,
		h.table,
		nil,
	)
	return h
}

// setup seeds a customer, an overdue payment, and an active campaign over the
// given steps, and registers a due execution for it.
func (h *runnerHarness) setup(tier models.RiskTier, steps []models.EscalationStep) (*models.Campaign, *CampaignExecution) {
	customer := h.fixtures.CreateTestCustomer(tier)
	payment := h.fixtures.CreateOverduePayment(customer.ID, 150000, 12)
	campaign := h.fixtures.CreateTestCampaign(customer, payment, steps)

	h.customerRepo.Seed(customer)
	h.paymentRepo.Seed(payment)
	h.campaignRepo.Seed(campaign)
	h.contextSvc.Profile = testingutil.ProfileFor(customer)

	exec := &CampaignExecution{
		CampaignID:   campaign.ID,
		CampaignUUID: campaign.UUID,
		CustomerID:   customer.ID,
		NextDue:      utils.UTCNow().Add(-time.Minute),
		Status:       ExecutionRunning,
		Context: ExecutionContext{
			PaymentRecordID: payment.ID,
			StartedAt:       utils.UTCNow(),
		},
	}
	h.table.Register(exec)
	return campaign, exec
}

func TestEscalationRunner_ProcessExecution(t *testing.T) {
	ctx := context.Background()

	t.Run("emits one task and reschedules within the step", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "firm_reminder", DelayHours: 48, MaxAttempts: 2},
		}
		campaign, exec := h.setup(models.RiskTierMedium, steps)

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.Equal(t, 1, h.dispatcher.Count())
		assert.Equal(t, 1, exec.TasksCreated)
		assert.Equal(t, 0, exec.CurrentStep, "one attempt left, step not advanced")
		assert.WithinDuration(t, utils.UTCNow().Add(24*time.Hour), exec.NextDue, 5*time.Second,
			"48h delay over 2 attempts retries in 24h")

		task := h.dispatcher.Last()
		require.NotNil(t, task)
		assert.Equal(t, models.TaskTypeEmail, task.Type)
		assert.Equal(t, 1, task.Attempt)
		assert.Equal(t, campaign.ID, task.CampaignID)
		assert.Equal(t, "firm_reminder", task.Context.TemplateID)
		assert.Equal(t, "12", task.Context.Variables["days_overdue"])
	})

	t.Run("retry interval never drops below one hour", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelSMS, TemplateID: "quick_nudge", DelayHours: 0, MaxAttempts: 3},
		}
		_, exec := h.setup(models.RiskTierMedium, steps)

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.WithinDuration(t, utils.UTCNow().Add(time.Hour), exec.NextDue, 5*time.Second)
	})

	t.Run("exhausting attempts advances and resets the counter", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "gentle_reminder", DelayHours: 0, MaxAttempts: 1},
			{StepNumber: 2, Channel: models.ChannelPhone, TemplateID: "collection_call", DelayHours: 72, MaxAttempts: 2},
		}
		campaign, exec := h.setup(models.RiskTierMedium, steps)

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.Equal(t, 1, exec.CurrentStep)
		assert.Equal(t, 0, exec.TasksCreated)
		assert.WithinDuration(t, utils.UTCNow().Add(72*time.Hour), exec.NextDue, 5*time.Second)

		stored, err := h.campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.CurrentStep)
		assert.Equal(t, 1, stored.Results.ContactsMade)
	})

	t.Run("not due yet is a no-op", func(t *testing.T) {
		h := newRunnerHarness()
		_, exec := h.setup(models.RiskTierMedium, testingutil.DefaultStepLadder())
		exec.NextDue = utils.UTCNow().Add(time.Hour)

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))
		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.Equal(t, 0, h.dispatcher.Count())
		assert.Equal(t, 0, exec.TasksCreated)
	})

	t.Run("paid payment completes the campaign wherever the ladder stands", func(t *testing.T) {
		h := newRunnerHarness()
		campaign, exec := h.setup(models.RiskTierMedium, testingutil.DefaultStepLadder())
		exec.CurrentStep = 1
		h.paymentRepo.MarkPaid(exec.Context.PaymentRecordID, utils.UTCNow())

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.Equal(t, ExecutionCompleted, exec.Status)
		assert.Nil(t, h.table.Get(campaign.ID), "completed executions leave the table")
		assert.Equal(t, 0, h.dispatcher.Count())

		stored, err := h.campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
		assert.Equal(t, ReasonPaymentReceived, stored.StatusReason)
		require.NotNil(t, stored.EndedAt)
		assert.Equal(t, 1, stored.Results.PaymentsReceived)
		assert.Equal(t, int64(150000), stored.Results.AmountCollected)
	})

	t.Run("running past the last step completes without a task", func(t *testing.T) {
		h := newRunnerHarness()
		steps := testingutil.DefaultStepLadder()
		campaign, exec := h.setup(models.RiskTierMedium, steps)
		exec.CurrentStep = len(steps)

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.Equal(t, 0, h.dispatcher.Count())
		stored, err := h.campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
		assert.Equal(t, ReasonStepsExhausted, stored.StatusReason)
	})

	t.Run("failing conditions skip the step without consuming attempts", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{
				StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "late_stage", DelayHours: 0, MaxAttempts: 3,
				Conditions: []models.EscalationCondition{
					{Kind: models.ConditionDaysOverdue, Operator: models.OperatorGreater, Value: float64(30)},
				},
			},
			{StepNumber: 2, Channel: models.ChannelSMS, TemplateID: "sms_nudge", DelayHours: 24, MaxAttempts: 1},
		}
		_, exec := h.setup(models.RiskTierMedium, steps)

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.Equal(t, 0, h.dispatcher.Count())
		assert.Equal(t, 1, exec.CurrentStep, "skipped straight to the next step")
		assert.Equal(t, 0, exec.TasksCreated)
		assert.WithinDuration(t, utils.UTCNow().Add(24*time.Hour), exec.NextDue, 5*time.Second)
	})

	t.Run("dispatch failure consumes the attempt and surfaces the error", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "gentle_reminder", DelayHours: 24, MaxAttempts: 2},
		}
		campaign, exec := h.setup(models.RiskTierMedium, steps)
		h.dispatcher.FailWith = errors.New("queue unavailable")

		err := h.runner.ProcessExecution(ctx, exec)
		require.Error(t, err)

		assert.Equal(t, 1, exec.TasksCreated, "a failed contact still spends the attempt")

		tasks := h.taskRepo.All()
		require.Len(t, tasks, 1)
		assert.Equal(t, models.TaskStatusFailed, tasks[0].Status)
		assert.Contains(t, tasks[0].LastError, "queue unavailable")

		stored, serr := h.campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, serr)
		assert.Equal(t, 1, stored.Results.ContactsMade)
	})

	t.Run("daily contact limit defers to next utc midnight", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "gentle_reminder", DelayHours: 0, MaxAttempts: 5},
		}
		campaign, exec := h.setup(models.RiskTierMedium, steps)
		campaign.Config.MaxDailyContacts = 1
		require.NoError(t, h.campaignRepo.Update(ctx, campaign))

		now := utils.UTCNow()
		exec.Context.ContactsToday = 1
		exec.Context.ContactDay = utils.UTCDayKey(now)

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.Equal(t, 0, h.dispatcher.Count())
		assert.Equal(t, utils.NextUTCMidnight(now), exec.NextDue)

		// A new day resets the counter and lets the attempt through.
		exec.Context.ContactDay = "2020-01-01"
		exec.NextDue = now.Add(-time.Minute)
		require.NoError(t, h.runner.ProcessExecution(ctx, exec))
		assert.Equal(t, 1, h.dispatcher.Count())
		assert.Equal(t, 1, exec.Context.ContactsToday)
	})

	t.Run("critical risk escalates task priority", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelPhone, TemplateID: "collection_call", DelayHours: 0, MaxAttempts: 1},
		}
		_, exec := h.setup(models.RiskTierCritical, steps)

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		task := h.dispatcher.Last()
		require.NotNil(t, task)
		assert.Equal(t, models.TaskPriorityHigh, task.Priority)
	})

	t.Run("late ladder steps escalate priority regardless of risk", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "s1", DelayHours: 0, MaxAttempts: 1},
			{StepNumber: 2, Channel: models.ChannelEmail, TemplateID: "s2", DelayHours: 0, MaxAttempts: 1},
			{StepNumber: 3, Channel: models.ChannelEmail, TemplateID: "s3", DelayHours: 0, MaxAttempts: 1},
			{StepNumber: 4, Channel: models.ChannelPhone, TemplateID: "s4", DelayHours: 0, MaxAttempts: 1},
		}
		_, exec := h.setup(models.RiskTierLow, steps)
		exec.CurrentStep = 3

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		task := h.dispatcher.Last()
		require.NotNil(t, task)
		assert.Equal(t, models.TaskPriorityHigh, task.Priority)
	})

	t.Run("profile refresh failure falls back to cached snapshot", func(t *testing.T) {
		h := newRunnerHarness()
		steps := []models.EscalationStep{
			{
				StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "gentle_reminder", DelayHours: 0, MaxAttempts: 1,
				Conditions: []models.EscalationCondition{
					{Kind: models.ConditionCustomerRiskLevel, Operator: models.OperatorEquals, Value: "high"},
				},
			},
		}
		_, exec := h.setup(models.RiskTierMedium, steps)
		exec.Context.Profile = &models.CustomerProfile{CustomerID: exec.CustomerID, RiskTier: models.RiskTierHigh}
		h.contextSvc.Err = errors.New("cache down")

		require.NoError(t, h.runner.ProcessExecution(ctx, exec))

		assert.Equal(t, 1, h.dispatcher.Count(), "cached high risk profile satisfies the condition")
	})
}

func TestEscalationRunner_CompleteManually(t *testing.T) {
	ctx := context.Background()
	h := newRunnerHarness()
	campaign, exec := h.setup(models.RiskTierMedium, testingutil.DefaultStepLadder())

	require.NoError(t, h.runner.CompleteManually(ctx, exec, ""))

	stored, err := h.campaignRepo.ByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, stored.Status)
	assert.Equal(t, ReasonManual, stored.StatusReason)
	assert.Equal(t, ExecutionCompleted, exec.Status)
	assert.Equal(t, 0, h.table.Len())
}
