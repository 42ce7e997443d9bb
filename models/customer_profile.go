package models

import (
	"time"
)

// CustomerProfile is the read-only risk/behavior snapshot served by the
// customer-context service. It is captured once at campaign creation for the
// step optimizer and refreshed at condition-evaluation time when available.
type CustomerProfile struct {
	CustomerID       uint     `json:"customer_id"`
	RiskTier         RiskTier `json:"risk_tier"`
	PreferredChannel *Channel `json:"preferred_channel,omitempty"`
	BehaviorPatterns []string `json:"behavior_patterns,omitempty"`
	ResponseRate     float64  `json:"response_rate"`
}

// HasBehaviorPattern reports whether the pattern is present in the snapshot
func (p *CustomerProfile) HasBehaviorPattern(pattern string) bool {
	for _, candidate := range p.BehaviorPatterns {
		if candidate == pattern {
			return true
		}
	}
	return false
}

// CustomerFacts are the externally supplied facts a condition is evaluated
// against. Amounts are in minor units.
type CustomerFacts struct {
	DaysOverdue   int
	PaymentAmount int64
	RiskTier      RiskTier
	ResponseRate  float64
	HourOfDay     int
}

// NewCustomerFacts assembles evaluation facts from a payment record, an
// optional profile snapshot, and the evaluation instant. A nil profile leaves
// risk and response-rate facts at their zero values; the evaluator's fail-open
// behavior keeps a missing context service from deadlocking a campaign.
func NewCustomerFacts(payment *PaymentRecord, profile *CustomerProfile, now time.Time) CustomerFacts {
	facts := CustomerFacts{
		HourOfDay: now.UTC().Hour(),
	}
	if payment != nil {
		facts.DaysOverdue = payment.DaysOverdueAt(now)
		facts.PaymentAmount = payment.Amount
	}
	if profile != nil {
		facts.RiskTier = profile.RiskTier
		facts.ResponseRate = profile.ResponseRate
	}
	return facts
}
