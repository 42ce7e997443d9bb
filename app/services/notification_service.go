package services

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// OperatorNotifier alerts the operations team about campaigns that need
// manual attention. Failures here are logged, never propagated: a broken
// alert channel must not take the engine down with it.
type OperatorNotifier interface {
	NotifyExecutionFailed(campaignUUID string, customerID uint, reason string)
	NotifyExecutionStalled(campaignUUID string, customerID uint)
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, message string) error
}

// EmailOperatorNotifier sends operator alerts by email
type EmailOperatorNotifier struct {
	provider     EmailProvider
	operatorAddr string
	logger       *log.Logger
}

// NewEmailOperatorNotifier creates an email-backed operator notifier
func NewEmailOperatorNotifier(provider EmailProvider, operatorAddr string, logger *log.Logger) *EmailOperatorNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &EmailOperatorNotifier{
		provider:     provider,
		operatorAddr: operatorAddr,
		logger:       logger,
	}
}

// NotifyExecutionFailed alerts the operator that a campaign execution failed
func (n *EmailOperatorNotifier) NotifyExecutionFailed(campaignUUID string, customerID uint, reason string) {
	subject := fmt.Sprintf("Collection campaign %s failed", campaignUUID)
	body := fmt.Sprintf("Campaign %s for customer %d stopped with error: %s\nManual review required before the campaign can be resumed.", campaignUUID, customerID, reason)
	n.send(subject, body)
}

// NotifyExecutionStalled alerts the operator that a campaign execution was requeued by the stall monitor
func (n *EmailOperatorNotifier) NotifyExecutionStalled(campaignUUID string, customerID uint) {
	subject := fmt.Sprintf("Collection campaign %s stalled", campaignUUID)
	body := fmt.Sprintf("Campaign %s for customer %d missed its scheduled run and was requeued.", campaignUUID, customerID)
	n.send(subject, body)
}

func (n *EmailOperatorNotifier) send(subject, body string) {
	if n.provider == nil {
		n.logger.Printf("operator notify: email provider not configured, dropping alert: %s", subject)
		return
	}
	if !strings.Contains(n.operatorAddr, "@") {
		n.logger.Printf("operator notify: invalid operator address %q, dropping alert: %s", n.operatorAddr, subject)
		return
	}
	if err := n.provider.SendEmail(n.operatorAddr, subject, body); err != nil {
		n.logger.Printf("operator notify: send failed: %v", err)
	}
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(email, subject, message string) error {
	log.Printf("Email sent to %s with subject '%s': %s", email, subject, message)
	return nil
}

// MockOperatorNotifier records alerts in memory for tests
type MockOperatorNotifier struct {
	mu      sync.Mutex
	Failed  []string
	Stalled []string
}

// NewMockOperatorNotifier creates an in-memory operator notifier
func NewMockOperatorNotifier() *MockOperatorNotifier {
	return &MockOperatorNotifier{}
}

func (n *MockOperatorNotifier) NotifyExecutionFailed(campaignUUID string, _ uint, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Failed = append(n.Failed, fmt.Sprintf("%s: %s", campaignUUID, reason))
}

func (n *MockOperatorNotifier) NotifyExecutionStalled(campaignUUID string, _ uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Stalled = append(n.Stalled, campaignUUID)
}

var (
	_ OperatorNotifier = (*EmailOperatorNotifier)(nil)
	_ OperatorNotifier = (*MockOperatorNotifier)(nil)
)
