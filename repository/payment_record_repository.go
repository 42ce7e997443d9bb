package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/utils"
	"gorm.io/gorm"
)

// PaymentRecordRepositoryImpl implements the PaymentRecordRepository interface
type PaymentRecordRepositoryImpl struct {
	*BaseRepository[models.PaymentRecord]
}

// NewPaymentRecordRepository creates a new payment record repository
func NewPaymentRecordRepository(db *gorm.DB) PaymentRecordRepository {
	return &PaymentRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PaymentRecord](db),
	}
}

// ByUUID retrieves a payment record by UUID
func (r *PaymentRecordRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.PaymentRecord, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	db := r.getDB(ctx)

	var record models.PaymentRecord
	err = db.Where("uuid = ?", parsedUUID).Last(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment record by UUID %s: %w", uuid, err)
	}

	return &record, nil
}

// StatusByID retrieves only the payment status, the hot read on every runner
// decision
func (r *PaymentRecordRepositoryImpl) StatusByID(ctx context.Context, id uint) (models.PaymentStatus, error) {
	db := r.getDB(ctx)

	var status models.PaymentStatus
	err := db.Model(&models.PaymentRecord{}).
		Where("id = ?", id).
		Pluck("status", &status).Error
	if err != nil {
		return "", fmt.Errorf("failed to read payment status for record %d: %w", id, err)
	}
	if status == "" {
		return "", fmt.Errorf("payment record %d not found", id)
	}

	return status, nil
}

var _ PaymentRecordRepository = (*PaymentRecordRepositoryImpl)(nil)
