package dto

import (
	"time"
)

// EscalationConditionDTO gates entry into an escalation step
type EscalationConditionDTO struct {
	Kind     string `json:"kind" validate:"required,oneof=days_overdue payment_amount customer_risk_level response_rate time_of_day"`
	Operator string `json:"operator" validate:"required,oneof== > < contains in"`
	Value    any    `json:"value" validate:"required"`
}

// EscalationStepDTO describes one rung of the requested escalation ladder
type EscalationStepDTO struct {
	Channel     string                   `json:"channel" validate:"required,oneof=email phone sms"`
	TemplateID  string                   `json:"template_id" validate:"required,max=255"`
	DelayHours  int                      `json:"delay_hours" validate:"gte=0"`
	MaxAttempts int                      `json:"max_attempts" validate:"min=1,max=10"`
	Conditions  []EscalationConditionDTO `json:"conditions,omitempty" validate:"omitempty,dive"`
}

// CampaignConfigDTO carries optional campaign-level guardrails
type CampaignConfigDTO struct {
	MaxDailyContacts int      `json:"max_daily_contacts" validate:"gte=0"`
	CooldownHours    int      `json:"cooldown_hours" validate:"gte=0"`
	ComplianceFlags  []string `json:"compliance_flags,omitempty"`
}

// CreateCollectionCampaignRequest creates a campaign against one overdue payment
type CreateCollectionCampaignRequest struct {
	Name              string              `json:"name" validate:"required,min=1,max=255"`
	CustomerUUID      string              `json:"customer_uuid" validate:"required,uuid"`
	PaymentRecordUUID string              `json:"payment_record_uuid" validate:"required,uuid"`
	Steps             []EscalationStepDTO `json:"steps" validate:"required,min=1,dive"`
	Config            *CampaignConfigDTO  `json:"config,omitempty" validate:"omitempty"`
}

// PauseCampaignRequest optionally bounds the pause; a nil until pauses until
// an explicit resume
type PauseCampaignRequest struct {
	Until *time.Time `json:"until,omitempty"`
}

// CompleteCampaignRequest records why the campaign was closed
type CompleteCampaignRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=255"`
}

// CampaignStepDTO echoes an optimized step back to the caller
type CampaignStepDTO struct {
	StepNumber  int                      `json:"step_number"`
	Channel     string                   `json:"channel"`
	TemplateID  string                   `json:"template_id"`
	DelayHours  int                      `json:"delay_hours"`
	MaxAttempts int                      `json:"max_attempts"`
	Conditions  []EscalationConditionDTO `json:"conditions,omitempty"`
}

// CampaignResultsDTO reports accumulated campaign outcomes
type CampaignResultsDTO struct {
	ContactsMade       int   `json:"contacts_made"`
	SuccessfulContacts int   `json:"successful_contacts"`
	PaymentsReceived   int   `json:"payments_received"`
	AmountCollected    int64 `json:"amount_collected"`
}

// CollectionCampaignResponse is the public view of a campaign
type CollectionCampaignResponse struct {
	UUID         string             `json:"uuid"`
	Name         string             `json:"name"`
	Status       string             `json:"status"`
	StatusReason string             `json:"status_reason,omitempty"`
	CurrentStep  int                `json:"current_step"`
	Steps        []CampaignStepDTO  `json:"steps"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	EndedAt      *time.Time         `json:"ended_at,omitempty"`
	PausedUntil  *time.Time         `json:"paused_until,omitempty"`
	Results      CampaignResultsDTO `json:"results"`
	CreatedAt    time.Time          `json:"created_at"`
}

// ExecutionDTO is the public view of a live execution cursor
type ExecutionDTO struct {
	CampaignUUID string     `json:"campaign_uuid"`
	CustomerID   uint       `json:"customer_id"`
	CurrentStep  int        `json:"current_step"`
	TasksCreated int        `json:"tasks_created"`
	NextDue      time.Time  `json:"next_due"`
	Status       string     `json:"status"`
	PausedUntil  *time.Time `json:"paused_until,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
}

// ExecutionStatusResponse pairs the durable campaign with its runtime cursor
type ExecutionStatusResponse struct {
	Campaign  CollectionCampaignResponse `json:"campaign"`
	Execution *ExecutionDTO              `json:"execution,omitempty"`
	IsActive  bool                       `json:"is_active"`
}
