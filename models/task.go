package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskType identifies the kind of outreach work a task carries. Types map
// one-to-one from channels.
type TaskType string

const (
	TaskTypeEmail     TaskType = "email"
	TaskTypePhoneCall TaskType = "phone_call"
	TaskTypeSMS       TaskType = "sms"
)

// TaskTypeForChannel maps an outreach channel to its task type
func TaskTypeForChannel(channel Channel) (TaskType, error) {
	switch channel {
	case ChannelEmail:
		return TaskTypeEmail, nil
	case ChannelPhone:
		return TaskTypePhoneCall, nil
	case ChannelSMS:
		return TaskTypeSMS, nil
	default:
		return "", fmt.Errorf("no task type for channel %q", channel)
	}
}

// TaskPriority represents the urgency assigned to a task
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid checks if the priority is valid
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// TaskStatus represents the dispatch lifecycle of a task. The engine only
// ever writes pending and failed; the remaining states belong to the channel
// workers consuming the queue.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid checks if the status is valid
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TaskStatus
func (s *TaskStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = TaskStatus(v)
	case []byte:
		*s = TaskStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TaskStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TaskStatus
func (s TaskStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid TaskStatus: %s", s)
	}
	return string(s), nil
}

// EmailTaskMetadata carries email-specific delivery fields
type EmailTaskMetadata struct {
	ToAddress string `json:"to_address"`
}

// SMSTaskMetadata carries SMS-specific delivery fields
type SMSTaskMetadata struct {
	PhoneNumber string `json:"phone_number"`
}

// PhoneTaskMetadata carries voice-call-specific delivery fields
type PhoneTaskMetadata struct {
	PhoneNumber string `json:"phone_number"`
	ContactName string `json:"contact_name"`
}

// TaskContext is the channel-agnostic payload handed to the dispatch
// collaborator, persisted as JSONB. Exactly one of the channel metadata
// pointers is set, matching Channel; ChannelMetadata resolves the union.
type TaskContext struct {
	PaymentRecordID uint              `json:"payment_record_id"`
	TemplateID      string            `json:"template_id"`
	Channel         Channel           `json:"channel"`
	Variables       map[string]string `json:"variables"`

	Email *EmailTaskMetadata `json:"email,omitempty"`
	SMS   *SMSTaskMetadata   `json:"sms,omitempty"`
	Phone *PhoneTaskMetadata `json:"phone,omitempty"`
}

// ChannelMetadata returns the metadata for the context's channel, enforcing
// the one-of invariant
func (c TaskContext) ChannelMetadata() (any, error) {
	switch c.Channel {
	case ChannelEmail:
		if c.Email == nil {
			return nil, fmt.Errorf("email task context missing email metadata")
		}
		return c.Email, nil
	case ChannelSMS:
		if c.SMS == nil {
			return nil, fmt.Errorf("sms task context missing sms metadata")
		}
		return c.SMS, nil
	case ChannelPhone:
		if c.Phone == nil {
			return nil, fmt.Errorf("phone task context missing phone metadata")
		}
		return c.Phone, nil
	default:
		return nil, fmt.Errorf("unknown channel %q in task context", c.Channel)
	}
}

// Value implements the driver.Valuer interface for TaskContext
func (c TaskContext) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for TaskContext
func (c *TaskContext) Scan(value any) error {
	if value == nil {
		*c = TaskContext{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TaskContext", value)
	}

	return json.Unmarshal(bytes, c)
}

// Task is one concrete, dispatchable unit of outreach work derived from a
// step attempt. The engine never retries a task; each attempt within a step's
// budget creates a new task.
type Task struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex:uk_tasks_uuid;not null;default:gen_random_uuid()" json:"uuid"`

	Type     TaskType     `gorm:"type:varchar(20);not null;index:idx_tasks_type" json:"type"`
	Priority TaskPriority `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Status   TaskStatus   `gorm:"type:varchar(20);not null;default:'pending';index:idx_tasks_status" json:"status"`

	CustomerID uint `gorm:"not null;index:idx_tasks_customer_id" json:"customer_id"`
	CampaignID uint `gorm:"not null;index:idx_tasks_campaign_id" json:"campaign_id"`

	Context TaskContext `gorm:"type:jsonb;not null;default:'{}'" json:"context"`

	StepNumber  int    `gorm:"not null" json:"step_number"`
	Attempt     int    `gorm:"not null;default:1" json:"attempt"`
	MaxAttempts int    `gorm:"not null;default:1" json:"max_attempts"`
	LastError   string `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName returns the table name for the Task model
func (Task) TableName() string {
	return "tasks"
}

// TaskFilter represents filter criteria for task queries
type TaskFilter struct {
	ID         *uint       `json:"id,omitempty"`
	UUID       *uuid.UUID  `json:"uuid,omitempty"`
	CampaignID *uint       `json:"campaign_id,omitempty"`
	CustomerID *uint       `json:"customer_id,omitempty"`
	Type       *TaskType   `json:"type,omitempty"`
	Status     *TaskStatus `json:"status,omitempty"`
}
