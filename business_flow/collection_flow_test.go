package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/dueflow/dueflow/app/dto"
	"github.com/dueflow/dueflow/app/scheduler"
	"github.com/dueflow/dueflow/app/services"
	"github.com/dueflow/dueflow/models"
	testingutil "github.com/dueflow/dueflow/testing"
	"github.com/dueflow/dueflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flowHarness struct {
	fixtures     *testingutil.TestFixtures
	campaignRepo *testingutil.FakeCampaignRepository
	customerRepo *testingutil.FakeCustomerRepository
	paymentRepo  *testingutil.FakePaymentRecordRepository
	taskRepo     *testingutil.FakeTaskRepository
	contextSvc   *testingutil.StubCustomerContextService
	table        *scheduler.ExecutionTable
	flow         *CollectionFlowImpl
}

func newFlowHarness() *flowHarness {
	h := &flowHarness{
		fixtures:     testingutil.NewTestFixtures(),
		campaignRepo: testingutil.NewFakeCampaignRepository(),
		customerRepo: testingutil.NewFakeCustomerRepository(),
		paymentRepo:  testingutil.NewFakePaymentRecordRepository(),
		taskRepo:     testingutil.NewFakeTaskRepository(),
		contextSvc:   &testingutil.StubCustomerContextService{},
		table:        scheduler.NewExecutionTable(),
	}
	emitter := scheduler.NewTaskEmitter(h.taskRepo, services.NewMockTaskDispatcher(), "support@example.com", nil)
	runner := scheduler.NewEscalationRunner(
		h.campaignRepo,
		h.paymentRepo,
		h.customerRepo,
		h.contextSvc,
		scheduler.NewConditionEvaluator(nil),
		emitter,
		h.table,
		nil,
	)
	h.flow = NewCollectionFlow(
		h.campaignRepo,
		h.customerRepo,
		h.paymentRepo,
		h.taskRepo,
		h.contextSvc,
		scheduler.NewStepOptimizer(),
		runner,
		h.table,
		nil,
		nil,
	)
	return h
}

func (h *flowHarness) seedCustomerAndPayment(tier models.RiskTier) (*models.Customer, *models.PaymentRecord) {
	customer := h.fixtures.CreateTestCustomer(tier)
	payment := h.fixtures.CreateOverduePayment(customer.ID, 150000, 10)
	h.customerRepo.Seed(customer)
	h.paymentRepo.Seed(payment)
	h.contextSvc.Profile = testingutil.ProfileFor(customer)
	return customer, payment
}

func validRequest(customer *models.Customer, payment *models.PaymentRecord) *dto.CreateCollectionCampaignRequest {
	return &dto.CreateCollectionCampaignRequest{
		Name:              "Q3 Overdue Invoices",
		CustomerUUID:      customer.UUID.String(),
		PaymentRecordUUID: payment.UUID.String(),
		Steps: []dto.EscalationStepDTO{
			{Channel: "email", TemplateID: "gentle_reminder", DelayHours: 0, MaxAttempts: 1},
			{Channel: "email", TemplateID: "firm_reminder", DelayHours: 48, MaxAttempts: 2},
			{Channel: "phone", TemplateID: "collection_call", DelayHours: 72, MaxAttempts: 2},
		},
	}
}

func TestCollectionFlow_CreateCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active campaign and registers its execution", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)

		resp, err := h.flow.CreateCampaign(ctx, validRequest(customer, payment))
		require.NoError(t, err)
		require.NotNil(t, resp)

		assert.Equal(t, "active", resp.Status)
		assert.Equal(t, 0, resp.CurrentStep)
		require.Len(t, resp.Steps, 3)
		assert.NotNil(t, resp.StartedAt)

		campaign, cerr := h.campaignRepo.ByUUID(ctx, resp.UUID)
		require.NoError(t, cerr)
		require.NotNil(t, campaign)

		exec := h.table.Get(campaign.ID)
		require.NotNil(t, exec)
		assert.Equal(t, scheduler.ExecutionRunning, exec.Status)
		assert.Equal(t, payment.ID, exec.Context.PaymentRecordID)
		assert.True(t, exec.IsDue(utils.UTCNow().Add(time.Second)), "zero delay first step is due immediately")
	})

	t.Run("first step delay pushes the first due time out", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)
		req := validRequest(customer, payment)
		req.Steps[0].DelayHours = 24

		resp, err := h.flow.CreateCampaign(ctx, req)
		require.NoError(t, err)

		campaign, _ := h.campaignRepo.ByUUID(ctx, resp.UUID)
		exec := h.table.Get(campaign.ID)
		require.NotNil(t, exec)
		assert.WithinDuration(t, utils.UTCNow().Add(24*time.Hour), exec.Snapshot().NextDue, 5*time.Second)
	})

	t.Run("steps are optimized for the customer before persisting", func(t *testing.T) {
		h := newFlowHarness()
		customer, _ := h.seedCustomerAndPayment(models.RiskTierCritical)
		payment := h.fixtures.CreateOverduePayment(customer.ID, 600000, 10)
		h.paymentRepo.Seed(payment)

		resp, err := h.flow.CreateCampaign(ctx, validRequest(customer, payment))
		require.NoError(t, err)

		require.Len(t, resp.Steps, 4)
		assert.Equal(t, "urgent_collection_call", resp.Steps[0].TemplateID)
		assert.Equal(t, "phone", resp.Steps[0].Channel)
	})

	t.Run("missing profile degrades to the plain template", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierCritical)
		h.contextSvc.Err = assert.AnError

		resp, err := h.flow.CreateCampaign(ctx, validRequest(customer, payment))
		require.NoError(t, err)
		assert.Len(t, resp.Steps, 3, "no profile means no risk adjustments")
	})

	t.Run("validation failures reject synchronously", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)

		t.Run("missing name", func(t *testing.T) {
			req := validRequest(customer, payment)
			req.Name = ""
			_, err := h.flow.CreateCampaign(ctx, req)
			require.Error(t, err)
		})

		t.Run("no steps", func(t *testing.T) {
			req := validRequest(customer, payment)
			req.Steps = nil
			_, err := h.flow.CreateCampaign(ctx, req)
			require.Error(t, err)
		})

		t.Run("invalid step", func(t *testing.T) {
			req := validRequest(customer, payment)
			req.Steps[0].Channel = "fax"
			_, err := h.flow.CreateCampaign(ctx, req)
			require.Error(t, err)
		})

		assert.Equal(t, 0, h.table.Len(), "no execution is registered on rejection")
	})

	t.Run("unknown customer", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)
		req := validRequest(customer, payment)
		req.CustomerUUID = "9f2c9c5e-0000-4000-8000-000000000000"

		_, err := h.flow.CreateCampaign(ctx, req)
		require.Error(t, err)
		assert.True(t, IsCustomerNotFound(err))
	})

	t.Run("inactive customer", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)
		customer.IsActive = false
		h.customerRepo.Seed(customer)

		_, err := h.flow.CreateCampaign(ctx, validRequest(customer, payment))
		require.Error(t, err)
		assert.True(t, IsCustomerInactive(err))
	})

	t.Run("settled payment", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)
		h.paymentRepo.MarkPaid(payment.ID, utils.UTCNow())

		_, err := h.flow.CreateCampaign(ctx, validRequest(customer, payment))
		require.Error(t, err)
		assert.True(t, IsPaymentAlreadySettled(err))
	})
}

func TestCollectionFlow_PauseResumeComplete(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, h *flowHarness) string {
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)
		resp, err := h.flow.CreateCampaign(ctx, validRequest(customer, payment))
		require.NoError(t, err)
		return resp.UUID
	}

	t.Run("pause and resume round trip", func(t *testing.T) {
		h := newFlowHarness()
		campaignUUID := create(t, h)
		until := utils.UTCNow().Add(48 * time.Hour)

		require.NoError(t, h.flow.PauseCampaign(ctx, campaignUUID, &until))

		campaign, _ := h.campaignRepo.ByUUID(ctx, campaignUUID)
		assert.Equal(t, models.CampaignStatusPaused, campaign.Status)
		require.NotNil(t, campaign.PausedUntil)

		exec := h.table.Get(campaign.ID)
		assert.Equal(t, scheduler.ExecutionPaused, exec.Snapshot().Status)

		require.NoError(t, h.flow.ResumeCampaign(ctx, campaignUUID))

		campaign, _ = h.campaignRepo.ByUUID(ctx, campaignUUID)
		assert.Equal(t, models.CampaignStatusActive, campaign.Status)
		assert.Nil(t, campaign.PausedUntil)

		snap := h.table.Get(campaign.ID).Snapshot()
		assert.Equal(t, scheduler.ExecutionRunning, snap.Status)
		assert.False(t, snap.NextDue.After(utils.UTCNow()), "resume makes the campaign due immediately")
	})

	t.Run("complete is terminal", func(t *testing.T) {
		h := newFlowHarness()
		campaignUUID := create(t, h)

		require.NoError(t, h.flow.CompleteCampaign(ctx, campaignUUID, "customer disputed the invoice"))

		campaign, _ := h.campaignRepo.ByUUID(ctx, campaignUUID)
		assert.Equal(t, models.CampaignStatusCompleted, campaign.Status)
		assert.Equal(t, "customer disputed the invoice", campaign.StatusReason)
		assert.Equal(t, 0, h.table.Len())

		err := h.flow.PauseCampaign(ctx, campaignUUID, nil)
		require.Error(t, err, "completed campaigns cannot be paused")
	})

	t.Run("unknown campaign", func(t *testing.T) {
		h := newFlowHarness()
		err := h.flow.ResumeCampaign(ctx, "9f2c9c5e-0000-4000-8000-000000000000")
		require.Error(t, err)
		assert.True(t, IsCampaignNotFound(err))
	})
}

func TestCollectionFlow_GetExecutionStatus(t *testing.T) {
	ctx := context.Background()
	h := newFlowHarness()
	customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)

	resp, err := h.flow.CreateCampaign(ctx, validRequest(customer, payment))
	require.NoError(t, err)

	status, err := h.flow.GetExecutionStatus(ctx, resp.UUID)
	require.NoError(t, err)
	assert.Equal(t, resp.UUID, status.Campaign.UUID)
	require.NotNil(t, status.Execution)
	assert.True(t, status.IsActive)
	assert.Equal(t, "running", status.Execution.Status)

	listed := h.flow.ListActiveExecutions()
	require.Len(t, listed, 1)
	assert.Equal(t, resp.UUID, listed[0].CampaignUUID)
}

func TestCollectionFlow_RestoreExecutions(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds cursors from durable state", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)

		steps := testingutil.DefaultStepLadder()
		campaign := h.fixtures.CreateTestCampaign(customer, payment, steps)
		campaign.CurrentStep = 1
		h.campaignRepo.Seed(campaign)

		// One attempt of step 2 already went out today.
		require.NoError(t, h.taskRepo.Save(ctx, &models.Task{
			CampaignID: campaign.ID,
			CustomerID: customer.ID,
			Type:       models.TaskTypeEmail,
			Status:     models.TaskStatusPending,
			StepNumber: 2,
			Attempt:    1,
			CreatedAt:  utils.UTCNow(),
		}))

		require.NoError(t, h.flow.RestoreExecutions(ctx))

		exec := h.table.Get(campaign.ID)
		require.NotNil(t, exec)
		snap := exec.Snapshot()
		assert.Equal(t, 1, snap.CurrentStep)
		assert.Equal(t, 1, snap.TasksCreated, "restart never grants a fresh attempt budget")
		assert.Equal(t, scheduler.ExecutionRunning, snap.Status)
		assert.False(t, snap.NextDue.After(utils.UTCNow()), "restored campaigns are due immediately")
		assert.Equal(t, 1, exec.Context.ContactsToday)
	})

	t.Run("paused campaigns restore paused", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)

		campaign := h.fixtures.CreateTestCampaign(customer, payment, testingutil.DefaultStepLadder())
		campaign.Status = models.CampaignStatusPaused
		until := utils.UTCNow().Add(24 * time.Hour)
		campaign.PausedUntil = &until
		h.campaignRepo.Seed(campaign)

		require.NoError(t, h.flow.RestoreExecutions(ctx))

		exec := h.table.Get(campaign.ID)
		require.NotNil(t, exec)
		snap := exec.Snapshot()
		assert.Equal(t, scheduler.ExecutionPaused, snap.Status)
		require.NotNil(t, snap.PausedUntil)
	})

	t.Run("completed campaigns are not restored", func(t *testing.T) {
		h := newFlowHarness()
		customer, payment := h.seedCustomerAndPayment(models.RiskTierMedium)

		campaign := h.fixtures.CreateTestCampaign(customer, payment, testingutil.DefaultStepLadder())
		campaign.Status = models.CampaignStatusCompleted
		h.campaignRepo.Seed(campaign)

		require.NoError(t, h.flow.RestoreExecutions(ctx))
		assert.Equal(t, 0, h.table.Len())
	})
}
