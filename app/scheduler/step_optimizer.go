package scheduler

import (
	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/utils"
)

// StepOptimizer customizes a default escalation-step template for one
// customer at campaign creation time. All adjustments are deterministic and
// pure over the inputs; the optimized list fully replaces the template before
// the campaign is persisted and is never touched again mid-run.
type StepOptimizer struct{}

// NewStepOptimizer creates a step optimizer
func NewStepOptimizer() *StepOptimizer {
	return &StepOptimizer{}
}

// Optimize applies the risk, channel-preference, and behavior adjustments in
// order and returns a renumbered copy of the steps. The input slice is never
// mutated. A nil profile returns the template unchanged apart from
// renumbering.
func (o *StepOptimizer) Optimize(template []models.EscalationStep, profile *models.CustomerProfile, paymentAmount int64) []models.EscalationStep {
	steps := copySteps(template)
	if profile == nil {
		return renumber(steps)
	}

	if profile.RiskTier.IsElevated() {
		for i := range steps {
			scaled := steps[i].DelayHours * utils.HighRiskDelayPercent / 100
			if scaled < utils.HighRiskDelayFloorHours {
				scaled = utils.HighRiskDelayFloorHours
			}
			steps[i].DelayHours = scaled
		}
		if paymentAmount > utils.HighValuePaymentMinorUnits {
			urgent := models.EscalationStep{
				Channel:     models.ChannelPhone,
				TemplateID:  "urgent_collection_call",
				DelayHours:  0,
				MaxAttempts: 2,
			}
			steps = append([]models.EscalationStep{urgent}, steps...)
		}
	}

	if profile.PreferredChannel != nil && profile.PreferredChannel.Valid() {
		steps = partitionByChannel(steps, *profile.PreferredChannel)
	}

	if profile.HasBehaviorPattern(utils.BehaviorPatternFrequentLate) {
		for i := range steps {
			reduced := steps[i].DelayHours - utils.LatePayerDelayReductionHours
			if reduced < 0 {
				reduced = 0
			}
			steps[i].DelayHours = reduced
		}
	}

	return renumber(steps)
}

// partitionByChannel moves steps on the preferred channel ahead of the rest,
// preserving relative order within each group
func partitionByChannel(steps []models.EscalationStep, preferred models.Channel) []models.EscalationStep {
	matched := make([]models.EscalationStep, 0, len(steps))
	rest := make([]models.EscalationStep, 0, len(steps))
	for _, s := range steps {
		if s.Channel == preferred {
			matched = append(matched, s)
		} else {
			rest = append(rest, s)
		}
	}
	return append(matched, rest...)
}

func renumber(steps []models.EscalationStep) []models.EscalationStep {
	for i := range steps {
		steps[i].StepNumber = i + 1
	}
	return steps
}

func copySteps(steps []models.EscalationStep) []models.EscalationStep {
	out := make([]models.EscalationStep, len(steps))
	copy(out, steps)
	for i := range out {
		if len(steps[i].Conditions) > 0 {
			out[i].Conditions = append([]models.EscalationCondition(nil), steps[i].Conditions...)
		}
	}
	return out
}
