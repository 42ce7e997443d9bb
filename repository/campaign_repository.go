package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign](db),
	}
}

// ByID retrieves a campaign by ID
func (r *CampaignRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaign models.Campaign
	err := db.Last(&campaign, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign by ID %d: %w", id, err)
	}

	return &campaign, nil
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.CampaignFilter{UUID: &parsedUUID}
	campaigns, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(campaigns) == 0 {
		return nil, nil
	}

	return campaigns[0], nil
}

// ByFilter retrieves campaigns matching the filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx).Model(&models.Campaign{})

	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.PaymentRecordID != nil {
		db = db.Where("payment_record_id = ?", *filter.PaymentRecordID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}

	if orderBy != "" {
		db = db.Order(orderBy)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var campaigns []*models.Campaign
	if err := db.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}

	return campaigns, nil
}

// ListRunnable retrieves all campaigns that should have a live execution
// (active or paused), used to rebuild the execution table on process start
func (r *CampaignRepositoryImpl) ListRunnable(ctx context.Context) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	err := db.Where("status IN ?", []models.CampaignStatus{
		models.CampaignStatusActive,
		models.CampaignStatusPaused,
	}).Order("id ASC").Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runnable campaigns: %w", err)
	}

	return campaigns, nil
}

// Update persists campaign mutations (cursor advances, status transitions,
// result counters)
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign *models.Campaign) error {
	campaign.UpdatedAt = utils.UTCNow()
	return r.BaseRepository.Update(ctx, campaign)
}

var _ CampaignRepository = (*CampaignRepositoryImpl)(nil)
