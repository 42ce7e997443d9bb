package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus represents the status of a payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusOverdue   PaymentStatus = "overdue"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// String returns the string representation of the status
func (s PaymentStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusOverdue, PaymentStatusPaid,
		PaymentStatusPartial, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PaymentStatus
func (s *PaymentStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = PaymentStatus(v)
	case []byte:
		*s = PaymentStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PaymentStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PaymentStatus
func (s PaymentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid PaymentStatus: %s", s)
	}
	return string(s), nil
}

// PaymentRecord represents an invoice a collection campaign is chasing.
// Amounts are stored in minor units (cents).
type PaymentRecord struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex:uk_payment_records_uuid;not null;default:gen_random_uuid()" json:"uuid"`

	CustomerID uint `gorm:"not null;index:idx_payment_records_customer_id" json:"customer_id"`

	InvoiceNumber string `gorm:"type:varchar(255);uniqueIndex:uk_payment_records_invoice;not null" json:"invoice_number"`
	Amount        int64  `gorm:"not null" json:"amount"`
	AmountPaid    int64  `gorm:"not null;default:0" json:"amount_paid"`
	Currency      string `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	DueDate time.Time     `gorm:"not null;index:idx_payment_records_due_date" json:"due_date"`
	Status  PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_payment_records_status" json:"status"`
	PaidAt  *time.Time    `json:"paid_at,omitempty"`

	PaymentLink string `gorm:"type:text" json:"payment_link"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName returns the table name for the PaymentRecord model
func (PaymentRecord) TableName() string {
	return "payment_records"
}

// DaysOverdueAt returns whole days past the due date at the given instant,
// clamped at zero
func (p *PaymentRecord) DaysOverdueAt(now time.Time) int {
	overdue := now.UTC().Sub(p.DueDate.UTC())
	if overdue <= 0 {
		return 0
	}
	return int(overdue / (24 * time.Hour))
}

// PaymentRecordFilter represents filter criteria for payment record queries
type PaymentRecordFilter struct {
	ID         *uint          `json:"id,omitempty"`
	UUID       *uuid.UUID     `json:"uuid,omitempty"`
	CustomerID *uint          `json:"customer_id,omitempty"`
	Status     *PaymentStatus `json:"status,omitempty"`
}
