package testing

import (
	"context"
	"sync"
	"time"

	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/repository"
)

// FakeCampaignRepository is an in-memory CampaignRepository
type FakeCampaignRepository struct {
	mu        sync.Mutex
	byID      map[uint]*models.Campaign
	nextID    uint
	SaveErr   error
	UpdateErr error
}

// NewFakeCampaignRepository creates an empty in-memory campaign repository
func NewFakeCampaignRepository() *FakeCampaignRepository {
	return &FakeCampaignRepository{byID: make(map[uint]*models.Campaign)}
}

// Seed inserts a campaign without bumping timestamps
func (r *FakeCampaignRepository) Seed(campaign *models.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if campaign.ID == 0 {
		r.nextID++
		campaign.ID = r.nextID
	} else if campaign.ID > r.nextID {
		r.nextID = campaign.ID
	}
	cp := *campaign
	r.byID[campaign.ID] = &cp
}

func (r *FakeCampaignRepository) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *FakeCampaignRepository) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.UUID.String() == uuid {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeCampaignRepository) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.byID {
		if filter.ID != nil && c.ID != *filter.ID {
			continue
		}
		if filter.UUID != nil && c.UUID != *filter.UUID {
			continue
		}
		if filter.CustomerID != nil && c.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.PaymentRecordID != nil && c.PaymentRecordID != *filter.PaymentRecordID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *FakeCampaignRepository) ListRunnable(ctx context.Context) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.byID {
		if c.Status == models.CampaignStatusActive || c.Status == models.CampaignStatusPaused {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FakeCampaignRepository) Save(ctx context.Context, campaign *models.Campaign) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if campaign.ID == 0 {
		r.nextID++
		campaign.ID = r.nextID
	}
	cp := *campaign
	r.byID[campaign.ID] = &cp
	return nil
}

func (r *FakeCampaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *campaign
	r.byID[campaign.ID] = &cp
	return nil
}

// FakeTaskRepository is an in-memory TaskRepository
type FakeTaskRepository struct {
	mu      sync.Mutex
	tasks   []*models.Task
	nextID  uint
	SaveErr error
}

// NewFakeTaskRepository creates an empty in-memory task repository
func NewFakeTaskRepository() *FakeTaskRepository {
	return &FakeTaskRepository{}
}

// All returns copies of every stored task in insertion order
func (r *FakeTaskRepository) All() []*models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func (r *FakeTaskRepository) ByID(ctx context.Context, id uint) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeTaskRepository) ByUUID(ctx context.Context, uuid string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.UUID.String() == uuid {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeTaskRepository) ByCampaignID(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Task
	for _, t := range r.tasks {
		if t.CampaignID == campaignID {
			cp := *t
			matched = append(matched, &cp)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *FakeTaskRepository) CountCreatedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, t := range r.tasks {
		if t.CampaignID == campaignID && !t.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *FakeTaskRepository) Save(ctx context.Context, task *models.Task) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == 0 {
		r.nextID++
		task.ID = r.nextID
	}
	cp := *task
	r.tasks = append(r.tasks, &cp)
	return nil
}

func (r *FakeTaskRepository) UpdateStatus(ctx context.Context, taskID uint, status models.TaskStatus, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == taskID {
			t.Status = status
			t.LastError = lastError
			return nil
		}
	}
	return nil
}

// FakePaymentRecordRepository is an in-memory PaymentRecordRepository
type FakePaymentRecordRepository struct {
	mu   sync.Mutex
	byID map[uint]*models.PaymentRecord
}

// NewFakePaymentRecordRepository creates an empty in-memory payment repository
func NewFakePaymentRecordRepository() *FakePaymentRecordRepository {
	return &FakePaymentRecordRepository{byID: make(map[uint]*models.PaymentRecord)}
}

// Seed inserts a payment record
func (r *FakePaymentRecordRepository) Seed(record *models.PaymentRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.byID[record.ID] = &cp
}

// MarkPaid flips a seeded record to paid with the amount fully settled
func (r *FakePaymentRecordRepository) MarkPaid(id uint, paidAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byID[id]; ok {
		rec.Status = models.PaymentStatusPaid
		rec.AmountPaid = rec.Amount
		rec.PaidAt = &paidAt
	}
}

func (r *FakePaymentRecordRepository) ByID(ctx context.Context, id uint) (*models.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *FakePaymentRecordRepository) ByUUID(ctx context.Context, uuid string) (*models.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byID {
		if rec.UUID.String() == uuid {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakePaymentRecordRepository) StatusByID(ctx context.Context, id uint) (models.PaymentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return "", nil
	}
	return rec.Status, nil
}

func (r *FakePaymentRecordRepository) Save(ctx context.Context, record *models.PaymentRecord) error {
	r.Seed(record)
	return nil
}

// FakeCustomerRepository is an in-memory CustomerRepository
type FakeCustomerRepository struct {
	mu   sync.Mutex
	byID map[uint]*models.Customer
}

// NewFakeCustomerRepository creates an empty in-memory customer repository
func NewFakeCustomerRepository() *FakeCustomerRepository {
	return &FakeCustomerRepository{byID: make(map[uint]*models.Customer)}
}

// Seed inserts a customer
func (r *FakeCustomerRepository) Seed(customer *models.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *customer
	r.byID[customer.ID] = &cp
}

func (r *FakeCustomerRepository) ByID(ctx context.Context, id uint) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *FakeCustomerRepository) ByUUID(ctx context.Context, uuid string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.UUID.String() == uuid {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *FakeCustomerRepository) Save(ctx context.Context, customer *models.Customer) error {
	r.Seed(customer)
	return nil
}

// StubCustomerContextService returns a fixed profile for every customer
type StubCustomerContextService struct {
	Profile     *models.CustomerProfile
	Err         error
	Invalidated []uint
}

func (s *StubCustomerContextService) Snapshot(ctx context.Context, customerID uint) (*models.CustomerProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Profile, nil
}

func (s *StubCustomerContextService) Invalidate(ctx context.Context, customerID uint) {
	s.Invalidated = append(s.Invalidated, customerID)
}

var (
	_ repository.CampaignRepository      = (*FakeCampaignRepository)(nil)
	_ repository.TaskRepository          = (*FakeTaskRepository)(nil)
	_ repository.PaymentRecordRepository = (*FakePaymentRecordRepository)(nil)
	_ repository.CustomerRepository      = (*FakeCustomerRepository)(nil)
)
