package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Channel represents an outreach channel
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
	ChannelSMS   Channel = "sms"
)

// String returns the string representation of the channel
func (c Channel) String() string {
	return string(c)
}

// Valid checks if the channel is valid
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPhone, ChannelSMS:
		return true
	default:
		return false
	}
}

// ConditionKind identifies the fact a condition is evaluated against
type ConditionKind string

const (
	ConditionDaysOverdue       ConditionKind = "days_overdue"
	ConditionPaymentAmount     ConditionKind = "payment_amount"
	ConditionCustomerRiskLevel ConditionKind = "customer_risk_level"
	ConditionResponseRate      ConditionKind = "response_rate"
	ConditionTimeOfDay         ConditionKind = "time_of_day"
)

// ConditionOperator is the comparison applied between fact and expected value
type ConditionOperator string

const (
	OperatorEquals   ConditionOperator = "="
	OperatorGreater  ConditionOperator = ">"
	OperatorLess     ConditionOperator = "<"
	OperatorContains ConditionOperator = "contains"
	OperatorIn       ConditionOperator = "in"
)

// EscalationCondition gates entry into an escalation step. Value carries the
// JSON-typed expected value (number, string, or list for the "in" operator).
type EscalationCondition struct {
	Kind     ConditionKind     `json:"kind"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value"`
}

// EscalationStep is one rung of a campaign's escalation ladder. Steps are
// immutable once the campaign is persisted.
type EscalationStep struct {
	StepNumber  int                   `json:"step_number"`
	Channel     Channel               `json:"channel"`
	TemplateID  string                `json:"template_id"`
	DelayHours  int                   `json:"delay_hours"`
	MaxAttempts int                   `json:"max_attempts"`
	Conditions  []EscalationCondition `json:"conditions,omitempty"`
}

// Validate checks the step for structural problems at campaign creation
func (s EscalationStep) Validate() error {
	if !s.Channel.Valid() {
		return fmt.Errorf("invalid channel: %s", s.Channel)
	}
	if s.TemplateID == "" {
		return fmt.Errorf("template id is required")
	}
	if s.DelayHours < 0 {
		return fmt.Errorf("delay hours must be non-negative")
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	return nil
}

// EscalationStepList is the ordered step list persisted as JSONB on a campaign
type EscalationStepList []EscalationStep

// Value implements the driver.Valuer interface for EscalationStepList
func (l EscalationStepList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for EscalationStepList
func (l *EscalationStepList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into EscalationStepList", value)
	}

	return json.Unmarshal(bytes, l)
}
