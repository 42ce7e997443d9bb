package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/repository"
	"github.com/dueflow/dueflow/utils"
	"github.com/redis/go-redis/v9"
)

// CustomerContextService resolves the customer profile used by condition
// evaluation and step optimization. Lookups go through a redis cache when one
// is configured; a missing or unreachable cache degrades to a direct database
// read, and a missing customer yields a nil profile so the evaluator can fall
// back to its defaults.
type CustomerContextService interface {
	Snapshot(ctx context.Context, customerID uint) (*models.CustomerProfile, error)
	Invalidate(ctx context.Context, customerID uint)
}

// CustomerContextServiceImpl implements CustomerContextService
type CustomerContextServiceImpl struct {
	customerRepo repository.CustomerRepository
	rc           *redis.Client
	cacheTTL     time.Duration
	logger       *log.Logger
}

// NewCustomerContextService creates a customer context service. rc may be nil
// to disable caching.
func NewCustomerContextService(
	customerRepo repository.CustomerRepository,
	rc *redis.Client,
	cacheTTL time.Duration,
	logger *log.Logger,
) *CustomerContextServiceImpl {
	if logger == nil {
		logger = log.Default()
	}
	return &CustomerContextServiceImpl{
		customerRepo: customerRepo,
		rc:           rc,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// Snapshot returns the current profile for the customer, or nil when the
// customer does not exist
func (s *CustomerContextServiceImpl) Snapshot(ctx context.Context, customerID uint) (*models.CustomerProfile, error) {
	if profile := s.fromCache(ctx, customerID); profile != nil {
		return profile, nil
	}

	customer, err := s.customerRepo.ByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer context: load customer %d: %w", customerID, err)
	}
	if customer == nil {
		return nil, nil
	}

	profile := &models.CustomerProfile{
		CustomerID:       customer.ID,
		RiskTier:         customer.RiskTier,
		PreferredChannel: customer.PreferredChannel,
		BehaviorPatterns: append([]string(nil), customer.BehaviorPatterns...),
		ResponseRate:     customer.ResponseRate,
	}

	s.toCache(ctx, customerID, profile)
	return profile, nil
}

// Invalidate drops the cached profile for the customer
func (s *CustomerContextServiceImpl) Invalidate(ctx context.Context, customerID uint) {
	if s.rc == nil {
		return
	}
	if err := s.rc.Del(ctx, s.cacheKey(customerID)).Err(); err != nil {
		s.logger.Printf("customer context: invalidate customer %d: %v", customerID, err)
	}
}

func (s *CustomerContextServiceImpl) cacheKey(customerID uint) string {
	return fmt.Sprintf("%s%d", utils.CustomerContextCacheKey, customerID)
}

func (s *CustomerContextServiceImpl) fromCache(ctx context.Context, customerID uint) *models.CustomerProfile {
	if s.rc == nil {
		return nil
	}

	raw, err := s.rc.Get(ctx, s.cacheKey(customerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Printf("customer context: cache read customer %d: %v", customerID, err)
		}
		return nil
	}

	var profile models.CustomerProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		s.logger.Printf("customer context: cache decode customer %d: %v", customerID, err)
		return nil
	}
	return &profile
}

func (s *CustomerContextServiceImpl) toCache(ctx context.Context, customerID uint, profile *models.CustomerProfile) {
	if s.rc == nil {
		return
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		s.logger.Printf("customer context: cache encode customer %d: %v", customerID, err)
		return
	}
	if err := s.rc.Set(ctx, s.cacheKey(customerID), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Printf("customer context: cache write customer %d: %v", customerID, err)
	}
}

var _ CustomerContextService = (*CustomerContextServiceImpl)(nil)
