package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/dueflow/dueflow/models"
)

// ConditionEvaluator decides whether an escalation step applies to the
// current state of a customer and payment. Evaluation is pure over the
// supplied facts; the only side effect is a log line for malformed rules.
type ConditionEvaluator struct {
	logger *log.Logger
}

// NewConditionEvaluator creates a condition evaluator
func NewConditionEvaluator(logger *log.Logger) *ConditionEvaluator {
	if logger == nil {
		logger = log.Default()
	}
	return &ConditionEvaluator{logger: logger}
}

// EvaluateAll reports whether every condition holds. An empty list holds
// trivially. A single false condition means the step does not apply.
func (e *ConditionEvaluator) EvaluateAll(conditions []models.EscalationCondition, facts models.CustomerFacts) bool {
	for _, cond := range conditions {
		if !e.Evaluate(cond, facts) {
			return false
		}
	}
	return true
}

// Evaluate checks one condition against the facts. An unknown condition kind
// evaluates to true so a malformed rule can never deadlock a campaign.
func (e *ConditionEvaluator) Evaluate(cond models.EscalationCondition, facts models.CustomerFacts) bool {
	actual, known := factValue(cond.Kind, facts)
	if !known {
		e.logger.Printf("condition: unknown kind %q, treating as satisfied", cond.Kind)
		return true
	}

	switch cond.Operator {
	case models.OperatorEquals:
		return equals(actual, cond.Value)
	case models.OperatorGreater:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b
	case models.OperatorLess:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b
	case models.OperatorContains:
		return strings.Contains(stringify(actual), stringify(cond.Value))
	case models.OperatorIn:
		list, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if equals(actual, item) {
				return true
			}
		}
		return false
	default:
		e.logger.Printf("condition: unknown operator %q, treating as unsatisfied", cond.Operator)
		return false
	}
}

// factValue resolves the actual value for a condition kind. The second return
// is false for kinds the evaluator does not recognize.
func factValue(kind models.ConditionKind, facts models.CustomerFacts) (any, bool) {
	switch kind {
	case models.ConditionDaysOverdue:
		return facts.DaysOverdue, true
	case models.ConditionPaymentAmount:
		return facts.PaymentAmount, true
	case models.ConditionCustomerRiskLevel:
		return string(facts.RiskTier), true
	case models.ConditionResponseRate:
		return facts.ResponseRate, true
	case models.ConditionTimeOfDay:
		return facts.HourOfDay, true
	default:
		return nil, false
	}
}

// equals compares numerically when both sides parse as numbers, otherwise by
// stringified equality. Risk tiers and channels compare as plain strings.
func equals(actual, expected any) bool {
	a, aok := toFloat(actual)
	b, bok := toFloat(expected)
	if aok && bok {
		return a == b
	}
	return stringify(actual) == stringify(expected)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
