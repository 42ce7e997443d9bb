// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/dueflow/dueflow/models"
)

// contextKey is the type for repository context keys
type contextKey string

// TxContextKey carries an in-flight transaction through a context
const TxContextKey contextKey = "tx"

// CampaignRepository defines operations for collection campaigns
type CampaignRepository interface {
	ByID(ctx context.Context, id uint) (*models.Campaign, error)
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error)
	ListRunnable(ctx context.Context) ([]*models.Campaign, error)
	Save(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, campaign *models.Campaign) error
}

// TaskRepository defines operations for dispatchable outreach tasks
type TaskRepository interface {
	ByID(ctx context.Context, id uint) (*models.Task, error)
	ByUUID(ctx context.Context, uuid string) (*models.Task, error)
	ByCampaignID(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Task, error)
	CountCreatedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error)
	Save(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, taskID uint, status models.TaskStatus, lastError string) error
}

// PaymentRecordRepository defines operations for payment records. The engine
// only ever reads payment state; writes belong to the billing system.
type PaymentRecordRepository interface {
	ByID(ctx context.Context, id uint) (*models.PaymentRecord, error)
	ByUUID(ctx context.Context, uuid string) (*models.PaymentRecord, error)
	StatusByID(ctx context.Context, id uint) (models.PaymentStatus, error)
	Save(ctx context.Context, record *models.PaymentRecord) error
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	ByID(ctx context.Context, id uint) (*models.Customer, error)
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
	Save(ctx context.Context, customer *models.Customer) error
}
