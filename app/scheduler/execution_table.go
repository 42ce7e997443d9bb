// Package scheduler implements the escalation engine: the execution table,
// condition evaluation, step optimization, task emission, the per-campaign
// runner, and the ticking scheduler that drives them.
package scheduler

import (
	"sync"
	"time"

	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/utils"
	"github.com/google/uuid"
)

// ExecutionStatus is the runtime status of an in-memory campaign execution
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionPaused    ExecutionStatus = "paused"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// ExecutionContext is the opaque bag of facts the runner carries between
// ticks so it does not re-read them from the store every time
type ExecutionContext struct {
	PaymentRecordID uint
	Profile         *models.CustomerProfile
	StartedAt       time.Time

	// Daily contact accounting for the MaxDailyContacts guard. ContactDay is
	// the UTC day key the counter belongs to; a new day resets the counter.
	ContactsToday int
	ContactDay    string
}

// CampaignExecution is the live cursor for one active campaign. It is a cache
// of "where we are"; every durable fact lives on the Campaign and Task rows,
// so a lost execution is rebuilt from the store on restart.
type CampaignExecution struct {
	mu sync.Mutex

	CampaignID   uint
	CampaignUUID uuid.UUID
	CustomerID   uint
	CurrentStep  int
	TasksCreated int
	NextDue      time.Time
	Status       ExecutionStatus
	PausedUntil  *time.Time
	Context      ExecutionContext
}

// Pause suspends the execution. A nil until keeps it paused until an explicit
// resume; otherwise the scheduler auto-resumes once the deadline passes.
func (e *CampaignExecution) Pause(until *time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Status = ExecutionPaused
	e.PausedUntil = utils.TimeToUTCPtr(until)
}

// Resume puts the execution back in rotation and makes it due immediately
func (e *CampaignExecution) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Status = ExecutionRunning
	e.PausedUntil = nil
	e.NextDue = utils.UTCNow()
}

// ResumeIfExpired resumes a paused execution whose pause deadline has passed.
// Returns true if the execution transitioned back to running.
func (e *CampaignExecution) ResumeIfExpired(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != ExecutionPaused || e.PausedUntil == nil {
		return false
	}
	if e.PausedUntil.After(now) {
		return false
	}
	e.Status = ExecutionRunning
	e.PausedUntil = nil
	e.NextDue = now
	return true
}

// RequeueIfStalled gives a missed execution another chance: if it is running
// and its due time is older than threshold, NextDue moves to now+delay. Step
// index and attempt counts are left untouched.
func (e *CampaignExecution) RequeueIfStalled(now time.Time, threshold, delay time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != ExecutionRunning {
		return false
	}
	if now.Sub(e.NextDue) <= threshold {
		return false
	}
	e.NextDue = now.Add(delay)
	return true
}

// MarkFailed takes the execution out of rotation after an unrecoverable tick
// error. The execution stays in the table so status queries can see it; only
// an explicit resume puts it back in rotation.
func (e *CampaignExecution) MarkFailed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Status = ExecutionFailed
}

// IsDue reports whether the scheduler should run this execution now
func (e *CampaignExecution) IsDue(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Status == ExecutionRunning && !e.NextDue.After(now)
}

// ExecutionSnapshot is a copy of an execution's state safe to hand outside
// the engine (status queries, listings)
type ExecutionSnapshot struct {
	CampaignID      uint
	CampaignUUID    uuid.UUID
	CustomerID      uint
	PaymentRecordID uint
	CurrentStep     int
	TasksCreated    int
	NextDue         time.Time
	Status          ExecutionStatus
	PausedUntil     *time.Time
	StartedAt       time.Time
}

// Snapshot returns a consistent copy of the execution's state
func (e *CampaignExecution) Snapshot() ExecutionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ExecutionSnapshot{
		CampaignID:      e.CampaignID,
		CampaignUUID:    e.CampaignUUID,
		CustomerID:      e.CustomerID,
		PaymentRecordID: e.Context.PaymentRecordID,
		CurrentStep:     e.CurrentStep,
		TasksCreated:    e.TasksCreated,
		NextDue:         e.NextDue,
		Status:          e.Status,
		PausedUntil:     e.PausedUntil,
		StartedAt:       e.Context.StartedAt,
	}
}

// ExecutionTable holds the live executions for this process, keyed by
// campaign id. It is an injected dependency, constructed once in main and in
// each test, never a package-level singleton. Iteration follows insertion
// order.
type ExecutionTable struct {
	mu    sync.RWMutex
	byID  map[uint]*CampaignExecution
	order []uint
}

// NewExecutionTable creates an empty execution table
func NewExecutionTable() *ExecutionTable {
	return &ExecutionTable{
		byID: make(map[uint]*CampaignExecution),
	}
}

// Register adds or replaces the execution for its campaign id
func (t *ExecutionTable) Register(exec *CampaignExecution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byID[exec.CampaignID]; !exists {
		t.order = append(t.order, exec.CampaignID)
	}
	t.byID[exec.CampaignID] = exec
	activeExecutionsGauge.Set(float64(len(t.byID)))
}

// Remove drops the execution for the campaign id, if present
func (t *ExecutionTable) Remove(campaignID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byID[campaignID]; !exists {
		return
	}
	delete(t.byID, campaignID)
	for i, id := range t.order {
		if id == campaignID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	activeExecutionsGauge.Set(float64(len(t.byID)))
}

// Get returns the execution for the campaign id, or nil
func (t *ExecutionTable) Get(campaignID uint) *CampaignExecution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[campaignID]
}

// List returns all executions in insertion order
func (t *ExecutionTable) List() []*CampaignExecution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*CampaignExecution, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// Len returns the number of live executions
func (t *ExecutionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
