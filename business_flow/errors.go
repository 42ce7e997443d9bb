// Package businessflow contains the core business logic and use cases for collection campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerInactive = errors.New("customer is inactive")

	// Payment-related errors
	ErrPaymentRecordNotFound = errors.New("payment record not found")
	ErrPaymentAlreadySettled = errors.New("payment record is already settled")

	// Campaign-related errors
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrCampaignNotRunnable   = errors.New("campaign is not active or paused")
	ErrCampaignStepsRequired = errors.New("at least one escalation step is required")
	ErrCampaignNameRequired  = errors.New("campaign name is required")
	ErrInvalidEscalationStep = errors.New("invalid escalation step")

	// Execution-related errors
	ErrExecutionNotFound = errors.New("execution not found")
)

// BusinessError wraps business logic errors with additional context
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsCustomerInactive(err error) bool {
	return errors.Is(err, ErrCustomerInactive)
}

func IsPaymentRecordNotFound(err error) bool {
	return errors.Is(err, ErrPaymentRecordNotFound)
}

func IsPaymentAlreadySettled(err error) bool {
	return errors.Is(err, ErrPaymentAlreadySettled)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignNotRunnable(err error) bool {
	return errors.Is(err, ErrCampaignNotRunnable)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
