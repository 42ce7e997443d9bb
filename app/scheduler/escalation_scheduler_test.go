package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/dueflow/dueflow/app/services"
	"github.com/dueflow/dueflow/models"
	testingutil "github.com/dueflow/dueflow/testing"
	"github.com/dueflow/dueflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalationScheduler_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("processes due executions and skips the rest", func(t *testing.T) {
		h := newRunnerHarness()
		notifier := services.NewMockOperatorNotifier()
		sched := NewEscalationScheduler(h.table, h.runner, h.campaignRepo, notifier, nil, 0, 0, 0, 0)

		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "gentle_reminder", DelayHours: 0, MaxAttempts: 2},
		}
		_, due := h.setup(models.RiskTierMedium, steps)
		_, notDue := h.setup(models.RiskTierMedium, steps)
		notDue.NextDue = utils.UTCNow().Add(time.Hour)

		sched.runOnce(ctx)

		assert.Equal(t, 1, h.dispatcher.Count())
		assert.Equal(t, 1, due.TasksCreated)
		assert.Equal(t, 0, notDue.TasksCreated)
		assert.Empty(t, notifier.Failed)
	})

	t.Run("resumes expired pauses during the tick", func(t *testing.T) {
		h := newRunnerHarness()
		sched := NewEscalationScheduler(h.table, h.runner, h.campaignRepo, nil, nil, 0, 0, 0, 0)

		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelSMS, TemplateID: "sms_nudge", DelayHours: 0, MaxAttempts: 1},
		}
		_, exec := h.setup(models.RiskTierMedium, steps)
		past := utils.UTCNow().Add(-time.Minute)
		exec.Pause(&past)

		sched.runOnce(ctx)

		assert.Equal(t, 1, h.dispatcher.Count(), "expired pause resumes and runs in the same tick")
	})

	t.Run("a broken execution fails without halting the tick", func(t *testing.T) {
		h := newRunnerHarness()
		notifier := services.NewMockOperatorNotifier()
		sched := NewEscalationScheduler(h.table, h.runner, h.campaignRepo, notifier, nil, 0, 0, 0, 0)

		steps := []models.EscalationStep{
			{StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "gentle_reminder", DelayHours: 0, MaxAttempts: 2},
		}
		broken, brokenExec := h.setup(models.RiskTierMedium, steps)
		_, healthy := h.setup(models.RiskTierMedium, steps)

		// Point the broken execution at a payment record that no longer exists.
		brokenExec.Context.PaymentRecordID = 9999

		sched.runOnce(ctx)

		assert.Equal(t, ExecutionFailed, brokenExec.Status)
		assert.Equal(t, 1, healthy.TasksCreated, "the healthy campaign still ran")
		require.Len(t, notifier.Failed, 1)
		assert.Contains(t, notifier.Failed[0], broken.UUID.String())

		stored, err := h.campaignRepo.ByID(ctx, broken.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusActive, stored.Status, "a failed execution does not complete the campaign")
		assert.NotEmpty(t, stored.StatusReason)

		// Failed executions stay visible but are never picked up again.
		sched.runOnce(ctx)
		assert.NotNil(t, h.table.Get(broken.ID))
		assert.Equal(t, 0, brokenExec.TasksCreated)
	})
}

func TestEscalationScheduler_CheckStalls(t *testing.T) {
	h := newRunnerHarness()
	notifier := services.NewMockOperatorNotifier()
	sched := NewEscalationScheduler(h.table, h.runner, h.campaignRepo, notifier, nil, 0, 0, time.Hour, 5*time.Minute)

	campaign, exec := h.setup(models.RiskTierMedium, testingutil.DefaultStepLadder())
	exec.CurrentStep = 1
	exec.TasksCreated = 1
	exec.NextDue = utils.UTCNow().Add(-2 * time.Hour)

	sched.checkStalls()

	assert.True(t, exec.NextDue.After(utils.UTCNow()), "stalled execution moved forward")
	assert.Equal(t, 1, exec.CurrentStep)
	assert.Equal(t, 1, exec.TasksCreated)
	require.Len(t, notifier.Stalled, 1)
	assert.Contains(t, notifier.Stalled[0], campaign.UUID.String())

	// A second pass right away finds nothing stalled.
	sched.checkStalls()
	assert.Len(t, notifier.Stalled, 1)
}

func TestEscalationScheduler_StartStop(t *testing.T) {
	h := newRunnerHarness()
	sched := NewEscalationScheduler(h.table, h.runner, h.campaignRepo, nil, nil, 10*time.Millisecond, time.Hour, 0, 0)

	steps := []models.EscalationStep{
		{StepNumber: 1, Channel: models.ChannelEmail, TemplateID: "gentle_reminder", DelayHours: 0, MaxAttempts: 1},
	}
	_, exec := h.setup(models.RiskTierMedium, steps)

	stop := sched.Start(context.Background())
	defer stop()

	require.Eventually(t, func() bool {
		return h.dispatcher.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, ExecutionCompleted, exec.Status)
	assert.Equal(t, 0, h.table.Len())
}
