package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RiskTier represents a customer's collection risk classification
type RiskTier string

const (
	RiskTierLow      RiskTier = "low"
	RiskTierMedium   RiskTier = "medium"
	RiskTierHigh     RiskTier = "high"
	RiskTierCritical RiskTier = "critical"
)

// String returns the string representation of the risk tier
func (r RiskTier) String() string {
	return string(r)
}

// Valid checks if the risk tier is valid
func (r RiskTier) Valid() bool {
	switch r {
	case RiskTierLow, RiskTierMedium, RiskTierHigh, RiskTierCritical:
		return true
	default:
		return false
	}
}

// IsElevated reports whether the tier triggers accelerated escalation
func (r RiskTier) IsElevated() bool {
	return r == RiskTierHigh || r == RiskTierCritical
}

// Scan implements the sql.Scanner interface for RiskTier
func (r *RiskTier) Scan(value any) error {
	if value == nil {
		*r = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*r = RiskTier(v)
	case []byte:
		*r = RiskTier(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RiskTier", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RiskTier
func (r RiskTier) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid RiskTier: %s", r)
	}
	return string(r), nil
}

// Customer represents a debtor the engine reaches out to. Risk and behavior
// fields are maintained by the external risk-scoring pipeline and read-only
// from the engine's point of view.
type Customer struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex:uk_customers_uuid;not null;default:gen_random_uuid()" json:"uuid"`

	ContactName string `gorm:"type:varchar(255);not null" json:"contact_name"`
	Email       string `gorm:"type:varchar(255);index:idx_customers_email" json:"email"`
	Phone       string `gorm:"type:varchar(20)" json:"phone"`

	RiskTier         RiskTier       `gorm:"type:varchar(20);not null;default:'medium';index:idx_customers_risk_tier" json:"risk_tier"`
	PreferredChannel *Channel       `gorm:"type:varchar(10)" json:"preferred_channel,omitempty"`
	BehaviorPatterns pq.StringArray `gorm:"type:text[]" json:"behavior_patterns"`
	ResponseRate     float64        `gorm:"not null;default:0" json:"response_rate"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName returns the table name for the Customer model
func (Customer) TableName() string {
	return "customers"
}

// HasBehaviorPattern reports whether the pattern is present in the
// customer's behavioral history
func (c *Customer) HasBehaviorPattern(pattern string) bool {
	for _, p := range c.BehaviorPatterns {
		if p == pattern {
			return true
		}
	}
	return false
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Email    *string    `json:"email,omitempty"`
	RiskTier *RiskTier  `json:"risk_tier,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
