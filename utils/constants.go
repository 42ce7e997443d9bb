package utils

import (
	"time"
)

// Scheduler timing constants
const (
	// DefaultTickInterval is how often the scheduler scans for due executions
	DefaultTickInterval = time.Minute

	// DefaultStallCheckInterval is how often the stall monitor runs
	DefaultStallCheckInterval = 5 * time.Minute

	// DefaultStallThreshold is how far past due an execution must be to count as stalled
	DefaultStallThreshold = time.Hour

	// DefaultRequeueDelay is how far in the future a stalled execution is rescheduled
	DefaultRequeueDelay = 5 * time.Minute

	// MinRetryInterval is the floor on the spacing between attempts within a step
	MinRetryInterval = time.Hour
)

// Step optimization constants
const (
	// HighRiskDelayPercent scales step delays for high/critical risk customers
	HighRiskDelayPercent = 70

	// HighRiskDelayFloorHours is the floor applied after high-risk scaling
	HighRiskDelayFloorHours = 24

	// LatePayerDelayReductionHours is subtracted from every delay for frequent late payers
	LatePayerDelayReductionHours = 24

	// HighValuePaymentMinorUnits is the amount (minor units) above which an
	// urgent phone step is prepended for high/critical risk customers ($5,000.00)
	HighValuePaymentMinorUnits = 500000
)

// Task priority constants
const (
	// EscalatedPriorityStep is the step number from which tasks are emitted at high priority
	EscalatedPriorityStep = 4
)

// Behavior pattern identifiers reported by the customer-context service
const (
	BehaviorPatternFrequentLate = "frequent_late_payment"
	BehaviorPatternPartialPayer = "partial_payer"
	BehaviorPatternUnresponsive = "unresponsive"
)

// Cache and queue keys
const (
	// CustomerContextCacheKey is the cache key prefix for customer-context snapshots
	CustomerContextCacheKey = "context:customer:"

	// DefaultTaskQueueKey is the redis list the task dispatcher pushes onto
	DefaultTaskQueueKey = "collection:tasks"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// USDCurrency is the default invoice currency
const USDCurrency = "USD"
