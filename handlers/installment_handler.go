package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-marketplace/models"
	"ticket-marketplace/services"
)

type InstallmentHandler struct {
	installments *services.InstallmentService
}

func NewInstallmentHandler(installments *services.InstallmentService) *InstallmentHandler {
	return &InstallmentHandler{installments: installments}
}

// Checkout - Open an installment purchase with a monthly payment schedule
func (h *InstallmentHandler) Checkout(e *core.RequestEvent) error {
	var req models.InstallmentCheckoutRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if err := validate.Struct(req); err != nil {
		return apis.NewBadRequestError("Validation failed", err)
	}

	resp, err := h.installments.Checkout(e.Request.Context(), req)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, resp)
}

// GenerateReference - Issue or reuse a payable reference for one installment
func (h *InstallmentHandler) GenerateReference(e *core.RequestEvent) error {
	installmentID := e.Request.PathValue("installmentId")
	if installmentID == "" {
		return apis.NewBadRequestError("Missing installment id", nil)
	}

	ref, err := h.installments.GenerateReference(e.Request.Context(), installmentID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, ref)
}

// PendingPayments - List the buyer's installment plans with money outstanding
func (h *InstallmentHandler) PendingPayments(e *core.RequestEvent) error {
	email := e.Request.URL.Query().Get("email")
	if email == "" {
		return apis.NewBadRequestError("Missing email query parameter", nil)
	}

	payments, err := h.installments.PendingPayments(e.Request.Context(), email)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"pending_payments": payments,
		"count":            len(payments),
	})
}
