package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of a collection campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused,
		CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// CampaignConfig holds per-campaign operational limits, persisted as JSONB
type CampaignConfig struct {
	MaxDailyContacts int      `json:"max_daily_contacts,omitempty"`
	CooldownHours    int      `json:"cooldown_hours,omitempty"`
	ComplianceFlags  []string `json:"compliance_flags,omitempty"`
}

// Value implements the driver.Valuer interface for CampaignConfig
func (c CampaignConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for CampaignConfig
func (c *CampaignConfig) Scan(value any) error {
	if value == nil {
		*c = CampaignConfig{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignConfig", value)
	}

	return json.Unmarshal(bytes, c)
}

// CampaignResults accumulates outcome counters over the campaign lifetime,
// persisted as JSONB
type CampaignResults struct {
	ContactsMade       int   `json:"contacts_made"`
	SuccessfulContacts int   `json:"successful_contacts"`
	PaymentsReceived   int   `json:"payments_received"`
	AmountCollected    int64 `json:"amount_collected"` // minor units
}

// Value implements the driver.Valuer interface for CampaignResults
func (r CampaignResults) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for CampaignResults
func (r *CampaignResults) Scan(value any) error {
	if value == nil {
		*r = CampaignResults{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignResults", value)
	}

	return json.Unmarshal(bytes, r)
}

// Campaign represents a customer-specific collection outreach sequence tied
// to one payment record. CurrentStep is a valid index into Steps while the
// campaign is active, or len(Steps) only transiently right before completion.
type Campaign struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex:uk_campaigns_uuid;not null;default:gen_random_uuid()" json:"uuid"`
	Name string    `gorm:"type:varchar(255);not null" json:"name"`

	CustomerID      uint `gorm:"not null;index:idx_campaigns_customer_id" json:"customer_id"`
	PaymentRecordID uint `gorm:"not null;index:idx_campaigns_payment_record_id" json:"payment_record_id"`

	Status       CampaignStatus     `gorm:"type:varchar(20);not null;default:'draft';index:idx_campaigns_status" json:"status"`
	StatusReason string             `gorm:"type:text" json:"status_reason"`
	Steps        EscalationStepList `gorm:"type:jsonb;not null;default:'[]'" json:"steps"`
	CurrentStep  int                `gorm:"not null;default:0" json:"current_step"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	PausedUntil *time.Time `json:"paused_until,omitempty"`

	Config  CampaignConfig  `gorm:"type:jsonb;default:'{}'" json:"config"`
	Results CampaignResults `gorm:"type:jsonb;default:'{}'" json:"results"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Customer      *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	PaymentRecord *PaymentRecord `gorm:"foreignKey:PaymentRecordID" json:"payment_record,omitempty"`
}

// TableName returns the table name for the Campaign model
func (Campaign) TableName() string {
	return "campaigns"
}

// StepAt returns the escalation step at the given index, or false when the
// index is past the end of the ladder
func (c *Campaign) StepAt(index int) (EscalationStep, bool) {
	if index < 0 || index >= len(c.Steps) {
		return EscalationStep{}, false
	}
	return c.Steps[index], true
}

// IsRunnable reports whether the campaign should have a live execution
func (c *Campaign) IsRunnable() bool {
	return c.Status == CampaignStatusActive || c.Status == CampaignStatusPaused
}

// CampaignFilter represents filter criteria for campaign queries
type CampaignFilter struct {
	ID              *uint           `json:"id,omitempty"`
	UUID            *uuid.UUID      `json:"uuid,omitempty"`
	CustomerID      *uint           `json:"customer_id,omitempty"`
	PaymentRecordID *uint           `json:"payment_record_id,omitempty"`
	Status          *CampaignStatus `json:"status,omitempty"`
}
