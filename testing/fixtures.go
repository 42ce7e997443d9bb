// Package testing provides test fixtures and in-memory fakes for exercising
// the escalation engine without a database.
package testing

import (
	"fmt"

	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for building test data in memory
type TestFixtures struct {
	nextID uint
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures() *TestFixtures {
	return &TestFixtures{}
}

func (tf *TestFixtures) id() uint {
	tf.nextID++
	return tf.nextID
}

// CreateTestCustomer builds a customer with the specified risk tier
func (tf *TestFixtures) CreateTestCustomer(tier models.RiskTier) *models.Customer {
	id := tf.id()
	return &models.Customer{
		ID:           id,
		UUID:         uuid.New(),
		ContactName:  fmt.Sprintf("Test Customer %d", id),
		Email:        fmt.Sprintf("customer%d@example.com", id),
		Phone:        fmt.Sprintf("+1555000%04d", id),
		RiskTier:     tier,
		ResponseRate: 0.5,
		IsActive:     true,
		CreatedAt:    utils.UTCNow(),
		UpdatedAt:    utils.UTCNow(),
	}
}

// CreateOverduePayment builds an overdue payment record for the customer
func (tf *TestFixtures) CreateOverduePayment(customerID uint, amount int64, daysOverdue int) *models.PaymentRecord {
	id := tf.id()
	now := utils.UTCNow()
	return &models.PaymentRecord{
		ID:            id,
		UUID:          uuid.New(),
		CustomerID:    customerID,
		InvoiceNumber: fmt.Sprintf("INV-%06d", id),
		Amount:        amount,
		Currency:      "USD",
		DueDate:       now.AddDate(0, 0, -daysOverdue),
		Status:        models.PaymentStatusOverdue,
		PaymentLink:   fmt.Sprintf("https://pay.example.com/%d", id),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DefaultStepLadder returns a three step escalation ladder: a gentle email,
// a firmer email, then a phone call.
func DefaultStepLadder() []models.EscalationStep {
	return []models.EscalationStep{
		{
			StepNumber:  1,
			Channel:     models.ChannelEmail,
			TemplateID:  "gentle_reminder",
			DelayHours:  0,
			MaxAttempts: 1,
		},
		{
			StepNumber:  2,
			Channel:     models.ChannelEmail,
			TemplateID:  "firm_reminder",
			DelayHours:  48,
			MaxAttempts: 2,
		},
		{
			StepNumber:  3,
			Channel:     models.ChannelPhone,
			TemplateID:  "collection_call",
			DelayHours:  72,
			MaxAttempts: 2,
		},
	}
}

// CreateTestCampaign builds an active campaign over the given steps
func (tf *TestFixtures) CreateTestCampaign(customer *models.Customer, payment *models.PaymentRecord, steps []models.EscalationStep) *models.Campaign {
	id := tf.id()
	now := utils.UTCNow()
	return &models.Campaign{
		ID:              id,
		UUID:            uuid.New(),
		Name:            fmt.Sprintf("Collection Campaign %d", id),
		CustomerID:      customer.ID,
		PaymentRecordID: payment.ID,
		Status:          models.CampaignStatusActive,
		Steps:           steps,
		CurrentStep:     0,
		StartedAt:       utils.ToPtr(now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ProfileFor derives the snapshot the engine would cache for a customer
func ProfileFor(customer *models.Customer) *models.CustomerProfile {
	return &models.CustomerProfile{
		CustomerID:       customer.ID,
		RiskTier:         customer.RiskTier,
		PreferredChannel: customer.PreferredChannel,
		BehaviorPatterns: customer.BehaviorPatterns,
		ResponseRate:     customer.ResponseRate,
	}
}

// FactsAt builds evaluation facts without going through a payment record
func FactsAt(daysOverdue int, amount int64, tier models.RiskTier, responseRate float64, hourOfDay int) models.CustomerFacts {
	return models.CustomerFacts{
		DaysOverdue:   daysOverdue,
		PaymentAmount: amount,
		RiskTier:      tier,
		ResponseRate:  responseRate,
		HourOfDay:     hourOfDay,
	}
}

