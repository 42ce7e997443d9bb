package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/dueflow/dueflow/app/services"
	"github.com/dueflow/dueflow/models"
	"github.com/dueflow/dueflow/repository"
	"github.com/dueflow/dueflow/utils"
)

// TaskEmitter turns a chosen escalation step into a persisted, dispatched
// task. Persist happens first; a task that cannot be stored is never handed
// to the dispatcher, and a task that cannot be dispatched is marked failed so
// the attempt is still accounted for.
type TaskEmitter struct {
	taskRepo       repository.TaskRepository
	dispatcher     services.TaskDispatcher
	supportContact string
	logger         *log.Logger
}

// NewTaskEmitter creates a task emitter
func NewTaskEmitter(taskRepo repository.TaskRepository, dispatcher services.TaskDispatcher, supportContact string, logger *log.Logger) *TaskEmitter {
	if logger == nil {
		logger = log.Default()
	}
	return &TaskEmitter{
		taskRepo:       taskRepo,
		dispatcher:     dispatcher,
		supportContact: supportContact,
		logger:         logger,
	}
}

// Emit builds, persists, and dispatches one task for the step attempt. The
// returned error means the attempt failed; the caller still counts it against
// the step's attempt budget.
func (e *TaskEmitter) Emit(
	ctx context.Context,
	campaign *models.Campaign,
	step models.EscalationStep,
	customer *models.Customer,
	payment *models.PaymentRecord,
	attempt int,
	priority models.TaskPriority,
	now time.Time,
) (*models.Task, error) {
	taskType, err := models.TaskTypeForChannel(step.Channel)
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}

	taskCtx := models.TaskContext{
		PaymentRecordID: payment.ID,
		TemplateID:      step.TemplateID,
		Channel:         step.Channel,
		Variables:       e.buildVariables(customer, payment, now),
	}
	switch step.Channel {
	case models.ChannelEmail:
		taskCtx.Email = &models.EmailTaskMetadata{ToAddress: customer.Email}
	case models.ChannelSMS:
		taskCtx.SMS = &models.SMSTaskMetadata{PhoneNumber: customer.Phone}
	case models.ChannelPhone:
		taskCtx.Phone = &models.PhoneTaskMetadata{
			PhoneNumber: customer.Phone,
			ContactName: customer.ContactName,
		}
	}

	task := &models.Task{
		Type:        taskType,
		Priority:    priority,
		Status:      models.TaskStatusPending,
		CustomerID:  customer.ID,
		CampaignID:  campaign.ID,
		Context:     taskCtx,
		StepNumber:  step.StepNumber,
		Attempt:     attempt,
		MaxAttempts: step.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.taskRepo.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("emit: save task for campaign %d step %d: %w", campaign.ID, step.StepNumber, err)
	}

	if err := e.dispatcher.Dispatch(ctx, task); err != nil {
		if uerr := e.taskRepo.UpdateStatus(ctx, task.ID, models.TaskStatusFailed, err.Error()); uerr != nil {
			e.logger.Printf("emit: mark task %d failed: %v", task.ID, uerr)
		}
		return nil, fmt.Errorf("emit: dispatch task for campaign %d step %d: %w", campaign.ID, step.StepNumber, err)
	}

	tasksEmittedTotal.WithLabelValues(string(step.Channel)).Inc()
	return task, nil
}

// buildVariables resolves the template variables shared by every channel
func (e *TaskEmitter) buildVariables(customer *models.Customer, payment *models.PaymentRecord, now time.Time) map[string]string {
	return map[string]string{
		"contact_name":    customer.ContactName,
		"invoice_number":  payment.InvoiceNumber,
		"amount":          utils.FormatMinorUnits(payment.Amount),
		"currency":        payment.Currency,
		"due_date":        payment.DueDate.UTC().Format("2006-01-02"),
		"days_overdue":    strconv.Itoa(payment.DaysOverdueAt(now)),
		"support_contact": e.supportContact,
		"payment_link":    payment.PaymentLink,
	}
}
