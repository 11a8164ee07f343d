package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"transferhub/internal/models"
	"transferhub/internal/services/transfer"
	"transferhub/internal/utils/response"
	"transferhub/internal/validation"
)

// TransferHandler exposes the transfer API endpoints.
type TransferHandler struct {
	service *transfer.Service
	rdb     *redis.Client
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(s *transfer.Service, rdb *redis.Client) *TransferHandler {
	return &TransferHandler{service: s, rdb: rdb}
}

type transferRequest struct {
	SenderAccountID        string          `json:"senderAccountId"`
	SenderAccountNumber    string          `json:"senderAccountNumber"`
	SenderBankCode         string          `json:"senderBankCode"`
	RecipientAccountID     string          `json:"recipientAccountId"`
	RecipientBankCode      string          `json:"recipientBankCode"`
	RecipientName          string          `json:"recipientName"`
	RecipientAccountNumber string          `json:"recipientAccountNumber"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	Type                   string          `json:"type"`
	Narration              string          `json:"narration"`
	ScheduledFor           *time.Time      `json:"scheduledFor"`
}

func (r *transferRequest) validate(v *validation.Validator) {
	v.Required("senderAccountId", r.SenderAccountID)
	v.TransferAmount("amount", r.Amount)
	v.TransferType("type", r.Type)
	v.RecipientName("recipientName", r.RecipientName)
	v.AccountNumber("recipientAccountNumber", r.RecipientAccountNumber)
	v.Narration("narration", r.Narration)
	v.InterbankFields(r.Type, r.RecipientBankCode)
}

func (r *transferRequest) toInput() transfer.CreateTransferInput {
	return transfer.CreateTransferInput{
		SenderAccountID:        r.SenderAccountID,
		SenderAccountNumber:    r.SenderAccountNumber,
		SenderBankCode:         r.SenderBankCode,
		RecipientAccountID:     r.RecipientAccountID,
		RecipientBankCode:      r.RecipientBankCode,
		RecipientName:          r.RecipientName,
		RecipientAccountNumber: r.RecipientAccountNumber,
		Amount:                 r.Amount,
		Currency:               r.Currency,
		Type:                   r.Type,
		Narration:              r.Narration,
		ScheduledFor:           r.ScheduledFor,
	}
}

// CreateTransfer handles POST /api/v1/transfers.
func (h *TransferHandler) CreateTransfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	v := validation.New()
	req.validate(v)
	if !v.Valid() {
		return validationErrors(c, v)
	}

	t, err := h.service.CreateTransfer(c.UserContext(), req.toInput())
	if err != nil {
		return transferError(c, err)
	}
	return response.Created(c, "transfer accepted", t)
}

type bulkTransferRequest struct {
	SenderAccountID string `json:"senderAccountId"`
	Transfers       []struct {
		RecipientAccountID     string          `json:"recipientAccountId"`
		RecipientBankCode      string          `json:"recipientBankCode"`
		RecipientName          string          `json:"recipientName"`
		RecipientAccountNumber string          `json:"recipientAccountNumber"`
		Amount                 decimal.Decimal `json:"amount"`
		Currency               string          `json:"currency"`
		Type                   string          `json:"type"`
		Narration              string          `json:"narration"`
	} `json:"transfers"`
}

// CreateBulkTransfer handles POST /api/v1/transfers/bulk.
func (h *TransferHandler) CreateBulkTransfer(c *fiber.Ctx) error {
	var req bulkTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	v := validation.New()
	v.Required("senderAccountId", req.SenderAccountID)
	v.Check(len(req.Transfers) >= 1 && len(req.Transfers) <= validation.MaxBulkTransfers,
		"transfers", fmt.Sprintf("must contain between 1 and %d transfers", validation.MaxBulkTransfers))
	for i, item := range req.Transfers {
		prefix := fmt.Sprintf("transfers[%d].", i)
		v.TransferAmount(prefix+"amount", item.Amount)
		v.TransferType(prefix+"type", item.Type)
		v.RecipientName(prefix+"recipientName", item.RecipientName)
		v.AccountNumber(prefix+"recipientAccountNumber", item.RecipientAccountNumber)
		v.Narration(prefix+"narration", item.Narration)
		v.InterbankFields(item.Type, item.RecipientBankCode)
	}
	if !v.Valid() {
		return validationErrors(c, v)
	}

	input := transfer.CreateBulkTransferInput{SenderAccountID: req.SenderAccountID}
	for _, item := range req.Transfers {
		input.Transfers = append(input.Transfers, transfer.BulkTransferItemInput{
			RecipientAccountID:     item.RecipientAccountID,
			RecipientBankCode:      item.RecipientBankCode,
			RecipientName:          item.RecipientName,
			RecipientAccountNumber: item.RecipientAccountNumber,
			Amount:                 item.Amount,
			Currency:               item.Currency,
			Type:                   item.Type,
			Narration:              item.Narration,
		})
	}

	b, err := h.service.CreateBulkTransfer(c.UserContext(), input)
	if err != nil {
		return transferError(c, err)
	}
	return response.Created(c, "bulk transfer accepted", b)
}

type recurringTransferRequest struct {
	SenderAccountID        string          `json:"senderAccountId"`
	RecipientAccountID     string          `json:"recipientAccountId"`
	RecipientBankCode      string          `json:"recipientBankCode"`
	RecipientName          string          `json:"recipientName"`
	RecipientAccountNumber string          `json:"recipientAccountNumber"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	Frequency              string          `json:"frequency"`
	EndDate                *time.Time      `json:"endDate"`
	Narration              string          `json:"narration"`
}

// CreateRecurringTransfer handles POST /api/v1/transfers/recurring.
func (h *TransferHandler) CreateRecurringTransfer(c *fiber.Ctx) error {
	var req recurringTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	v := validation.New()
	v.Required("senderAccountId", req.SenderAccountID)
	v.TransferAmount("amount", req.Amount)
	v.RecipientName("recipientName", req.RecipientName)
	v.AccountNumber("recipientAccountNumber", req.RecipientAccountNumber)
	v.Narration("narration", req.Narration)
	v.Frequency("frequency", req.Frequency)
	if req.EndDate != nil {
		v.Check(req.EndDate.After(time.Now()), "endDate", "must be in the future")
	}
	if !v.Valid() {
		return validationErrors(c, v)
	}

	rt, err := h.service.CreateRecurringTransfer(c.UserContext(), transfer.CreateRecurringTransferInput{
		SenderAccountID:        req.SenderAccountID,
		RecipientAccountID:     req.RecipientAccountID,
		RecipientBankCode:      req.RecipientBankCode,
		RecipientName:          req.RecipientName,
		RecipientAccountNumber: req.RecipientAccountNumber,
		Amount:                 req.Amount,
		Currency:               req.Currency,
		Frequency:              req.Frequency,
		EndDate:                req.EndDate,
		Narration:              req.Narration,
	})
	if err != nil {
		return transferError(c, err)
	}
	return response.Created(c, "recurring transfer created", rt)
}

// GetTransfer handles GET /api/v1/transfers/:id.
func (h *TransferHandler) GetTransfer(c *fiber.Ctx) error {
	t, err := h.service.GetTransfer(c.UserContext(), c.Params("id"))
	if err != nil {
		return transferError(c, err)
	}
	return response.Success(c, "transfer retrieved", t)
}

// GetTransferStatus handles GET /api/v1/transfers/:id/status.
func (h *TransferHandler) GetTransferStatus(c *fiber.Ctx) error {
	t, err := h.service.GetTransfer(c.UserContext(), c.Params("id"))
	if err != nil {
		return transferError(c, err)
	}
	return response.Success(c, "transfer status retrieved", fiber.Map{
		"id":            t.ID,
		"reference":     t.Reference,
		"status":        t.Status,
		"processedAt":   t.ProcessedAt,
		"failureReason": t.FailureReason,
	})
}

// GetBulkTransfer handles GET /api/v1/transfers/bulk/:id. The response
// includes the latest batch progress snapshot while a run is in flight.
func (h *TransferHandler) GetBulkTransfer(c *fiber.Ctx) error {
	b, err := h.service.GetBulkTransfer(c.UserContext(), c.Params("id"))
	if err != nil {
		return transferError(c, err)
	}

	payload := fiber.Map{"bulkTransfer": b}
	if b.Status == models.BulkStatusProcessing && h.rdb != nil {
		if data, err := h.rdb.Get(c.UserContext(), fmt.Sprintf("bulk:progress:%s", b.ID)).Bytes(); err == nil {
			var progress transfer.BulkProgress
			if json.Unmarshal(data, &progress) == nil {
				payload["progress"] = progress
			}
		}
	}
	return response.Success(c, "bulk transfer retrieved", payload)
}

// CancelTransfer handles POST /api/v1/transfers/:id/cancel.
func (h *TransferHandler) CancelTransfer(c *fiber.Ctx) error {
	t, err := h.service.CancelTransfer(c.UserContext(), c.Params("id"))
	if err != nil {
		return transferError(c, err)
	}
	return response.Success(c, "transfer cancelled", t)
}

func validationErrors(c *fiber.Ctx, v *validation.Validator) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "validation failed",
		"data":    fiber.Map{"errors": v.Errors},
	})
}

// transferError maps service errors onto HTTP responses. Validation
// failures carry their reason code in the envelope.
func transferError(c *fiber.Ctx, err error) error {
	if ve, ok := transfer.AsValidationError(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": ve.Message,
			"data":    fiber.Map{"code": ve.Code},
		})
	}

	switch {
	case errors.Is(err, transfer.ErrTransferNotFound), errors.Is(err, transfer.ErrBulkNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, transfer.ErrNotCancellable):
		return response.Conflict(c, err.Error())
	}
	return response.ServerError(c, "something went wrong")
}
