package scheduler

import (
	"testing"

	"github.com/dueflow/dueflow/models"
	testingutil "github.com/dueflow/dueflow/testing"
	"github.com/dueflow/dueflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepOptimizer_Optimize(t *testing.T) {
	optimizer := NewStepOptimizer()

	t.Run("nil profile only renumbers", func(t *testing.T) {
		template := testingutil.DefaultStepLadder()
		template[0].StepNumber = 7

		steps := optimizer.Optimize(template, nil, 100000)
		require.Len(t, steps, 3)
		for i, s := range steps {
			assert.Equal(t, i+1, s.StepNumber)
		}
		assert.Equal(t, 48, steps[1].DelayHours)
	})

	t.Run("elevated risk compresses delays with a floor", func(t *testing.T) {
		profile := &models.CustomerProfile{RiskTier: models.RiskTierHigh}

		steps := optimizer.Optimize(testingutil.DefaultStepLadder(), profile, 100000)
		require.Len(t, steps, 3)
		assert.Equal(t, utils.HighRiskDelayFloorHours, steps[0].DelayHours, "zero delay rises to the floor")
		assert.Equal(t, 33, steps[1].DelayHours, "48h scales to 33h")
		assert.Equal(t, 50, steps[2].DelayHours, "72h scales to 50h")
	})

	t.Run("medium risk keeps template delays", func(t *testing.T) {
		profile := &models.CustomerProfile{RiskTier: models.RiskTierMedium}

		steps := optimizer.Optimize(testingutil.DefaultStepLadder(), profile, 100000)
		assert.Equal(t, 0, steps[0].DelayHours)
		assert.Equal(t, 48, steps[1].DelayHours)
	})

	t.Run("high value elevated risk prepends urgent call", func(t *testing.T) {
		profile := &models.CustomerProfile{RiskTier: models.RiskTierCritical}

		steps := optimizer.Optimize(testingutil.DefaultStepLadder(), profile, 600000)
		require.Len(t, steps, 4)
		assert.Equal(t, models.ChannelPhone, steps[0].Channel)
		assert.Equal(t, "urgent_collection_call", steps[0].TemplateID)
		assert.Equal(t, 0, steps[0].DelayHours)
		assert.Equal(t, 2, steps[0].MaxAttempts)
		assert.Equal(t, 1, steps[0].StepNumber)
		assert.Equal(t, "gentle_reminder", steps[1].TemplateID)
	})

	t.Run("urgent call needs the amount strictly above the threshold", func(t *testing.T) {
		profile := &models.CustomerProfile{RiskTier: models.RiskTierCritical}

		steps := optimizer.Optimize(testingutil.DefaultStepLadder(), profile, utils.HighValuePaymentMinorUnits)
		assert.Len(t, steps, 3)
	})

	t.Run("preferred channel steps move to the front", func(t *testing.T) {
		phone := models.ChannelPhone
		profile := &models.CustomerProfile{RiskTier: models.RiskTierLow, PreferredChannel: &phone}

		steps := optimizer.Optimize(testingutil.DefaultStepLadder(), profile, 100000)
		require.Len(t, steps, 3)
		assert.Equal(t, "collection_call", steps[0].TemplateID)
		assert.Equal(t, "gentle_reminder", steps[1].TemplateID, "relative order within a group is preserved")
		assert.Equal(t, "firm_reminder", steps[2].TemplateID)
		for i, s := range steps {
			assert.Equal(t, i+1, s.StepNumber)
		}
	})

	t.Run("frequent late payer loses a day per step floored at zero", func(t *testing.T) {
		profile := &models.CustomerProfile{
			RiskTier:         models.RiskTierLow,
			BehaviorPatterns: []string{utils.BehaviorPatternFrequentLate},
		}

		steps := optimizer.Optimize(testingutil.DefaultStepLadder(), profile, 100000)
		assert.Equal(t, 0, steps[0].DelayHours)
		assert.Equal(t, 24, steps[1].DelayHours)
		assert.Equal(t, 48, steps[2].DelayHours)
	})

	t.Run("adjustments stack in order", func(t *testing.T) {
		email := models.ChannelEmail
		profile := &models.CustomerProfile{
			RiskTier:         models.RiskTierHigh,
			PreferredChannel: &email,
			BehaviorPatterns: []string{utils.BehaviorPatternFrequentLate},
		}

		steps := optimizer.Optimize(testingutil.DefaultStepLadder(), profile, 700000)
		require.Len(t, steps, 4)
		// Risk scaling and the urgent prepend run first, then the email steps
		// move ahead of both phone steps, then each delay loses 24h.
		assert.Equal(t, "gentle_reminder", steps[0].TemplateID)
		assert.Equal(t, 0, steps[0].DelayHours)
		assert.Equal(t, "firm_reminder", steps[1].TemplateID)
		assert.Equal(t, 9, steps[1].DelayHours)
		assert.Equal(t, "urgent_collection_call", steps[2].TemplateID)
		assert.Equal(t, 0, steps[2].DelayHours)
		assert.Equal(t, "collection_call", steps[3].TemplateID)
		assert.Equal(t, 26, steps[3].DelayHours)
	})

	t.Run("input template is never mutated", func(t *testing.T) {
		template := testingutil.DefaultStepLadder()
		template[1].Conditions = []models.EscalationCondition{
			{Kind: models.ConditionDaysOverdue, Operator: models.OperatorGreater, Value: float64(5)},
		}
		profile := &models.CustomerProfile{
			RiskTier:         models.RiskTierCritical,
			BehaviorPatterns: []string{utils.BehaviorPatternFrequentLate},
		}

		_ = optimizer.Optimize(template, profile, 900000)

		assert.Equal(t, 1, template[0].StepNumber)
		assert.Equal(t, 48, template[1].DelayHours)
		assert.Len(t, template[1].Conditions, 1)
	})
}
