// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/dueflow/dueflow/app/dto"
	businessflow "github.com/dueflow/dueflow/business_flow"
	"github.com/dueflow/dueflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CollectionHandlerInterface defines the contract for collection campaign handlers
type CollectionHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	ResumeCampaign(c fiber.Ctx) error
	CompleteCampaign(c fiber.Ctx) error
	GetExecutionStatus(c fiber.Ctx) error
	ListActiveExecutions(c fiber.Ctx) error
}

// CollectionHandler handles collection-campaign HTTP requests
type CollectionHandler struct {
	collectionFlow businessflow.CollectionFlow
	validator      *validator.Validate
}

// NewCollectionHandler creates a new collection campaign handler
func NewCollectionHandler(collectionFlow businessflow.CollectionFlow) *CollectionHandler {
	return &CollectionHandler{
		collectionFlow: collectionFlow,
		validator:      validator.New(),
	}
}

func (h *CollectionHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CollectionHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCampaign handles the campaign creation process
func (h *CollectionHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCollectionCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.collectionFlow.CreateCampaign(h.createRequestContext(c, "/api/v1/campaigns"), &req)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsCustomerInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Customer is inactive", "CUSTOMER_INACTIVE", nil)
		}
		if businessflow.IsPaymentRecordNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Payment record not found", "PAYMENT_NOT_FOUND", nil)
		}
		if businessflow.IsPaymentAlreadySettled(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Payment record is already settled", "PAYMENT_ALREADY_SETTLED", nil)
		}

		log.Println("Campaign creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// PauseCampaign suspends a running campaign, optionally until a deadline
func (h *CollectionHandler) PauseCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	var req dto.PauseCampaignRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	err := h.collectionFlow.PauseCampaign(h.createRequestContext(c, "/api/v1/campaigns/pause"), campaignUUID, req.Until)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsExecutionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Execution not found", "EXECUTION_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignNotRunnable(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign is not active or paused", "CAMPAIGN_NOT_RUNNABLE", nil)
		}

		log.Println("Campaign pause failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign pause failed", "CAMPAIGN_PAUSE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign paused successfully", nil)
}

// ResumeCampaign puts a paused or failed campaign back in rotation
func (h *CollectionHandler) ResumeCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	err := h.collectionFlow.ResumeCampaign(h.createRequestContext(c, "/api/v1/campaigns/resume"), campaignUUID)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsExecutionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Execution not found", "EXECUTION_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignNotRunnable(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign is not active or paused", "CAMPAIGN_NOT_RUNNABLE", nil)
		}

		log.Println("Campaign resume failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign resume failed", "CAMPAIGN_RESUME_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign resumed successfully", nil)
}

// CompleteCampaign closes a campaign manually
func (h *CollectionHandler) CompleteCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	var req dto.CompleteCampaignRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	err := h.collectionFlow.CompleteCampaign(h.createRequestContext(c, "/api/v1/campaigns/complete"), campaignUUID, req.Reason)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsExecutionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Execution not found", "EXECUTION_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignNotRunnable(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign is not active or paused", "CAMPAIGN_NOT_RUNNABLE", nil)
		}

		log.Println("Campaign completion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign completion failed", "CAMPAIGN_COMPLETE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign completed successfully", nil)
}

// GetExecutionStatus returns the campaign with its live execution cursor
func (h *CollectionHandler) GetExecutionStatus(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	result, err := h.collectionFlow.GetExecutionStatus(h.createRequestContext(c, "/api/v1/campaigns/status"), campaignUUID)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}

		log.Println("Execution status lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Execution status lookup failed", "STATUS_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Execution status retrieved successfully", result)
}

// ListActiveExecutions returns every live execution
func (h *CollectionHandler) ListActiveExecutions(c fiber.Ctx) error {
	executions := h.collectionFlow.ListActiveExecutions()
	return h.SuccessResponse(c, fiber.StatusOK, "Active executions retrieved successfully", fiber.Map{
		"executions": executions,
		"count":      len(executions),
	})
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *CollectionHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *CollectionHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)

	return ctx
}
