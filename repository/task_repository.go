package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/utils"
	"gorm.io/gorm"
)

// TaskRepositoryImpl implements the TaskRepository interface
type TaskRepositoryImpl struct {
	*BaseRepository[models.Task]
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &TaskRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Task](db),
	}
}

// ByUUID retrieves a task by UUID
func (r *TaskRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Task, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	db := r.getDB(ctx)

	var task models.Task
	err = db.Where("uuid = ?", parsedUUID).Last(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find task by UUID %s: %w", uuid, err)
	}

	return &task, nil
}

// ByCampaignID retrieves tasks for a campaign, newest first
func (r *TaskRepositoryImpl) ByCampaignID(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Task, error) {
	db := r.getDB(ctx).Where("campaign_id = ?", campaignID).Order("created_at DESC")

	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var tasks []*models.Task
	if err := db.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to find tasks for campaign %d: %w", campaignID, err)
	}

	return tasks, nil
}

// CountCreatedSince counts tasks created for a campaign since the given
// instant, used for the daily contact guard
func (r *TaskRepositoryImpl) CountCreatedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Task{}).
		Where("campaign_id = ? AND created_at >= ?", campaignID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks for campaign %d: %w", campaignID, err)
	}

	return count, nil
}

// UpdateStatus updates a task's dispatch status and last error
func (r *TaskRepositoryImpl) UpdateStatus(ctx context.Context, taskID uint, status models.TaskStatus, lastError string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]any{
			"status":     status,
			"last_error": lastError,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update task %d status: %w", taskID, err)
	}

	return nil
}

var _ TaskRepository = (*TaskRepositoryImpl)(nil)
