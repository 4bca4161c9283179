package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/pocketbase/pocketbase/apis"

	"ticket-marketplace/internal/status"
)

var validate = validator.New()

// apiError maps service-level failures onto transport status codes. Stock
// and quantity violations carry their details to the client; anything
// unrecognized stays a generic 400 so internals never leak.
func apiError(err error) error {
	var stock *status.InsufficientStockError
	var limit *status.QuantityLimitError

	switch {
	case errors.As(err, &stock):
		return apis.NewBadRequestError(stock.Error(), map[string]any{
			"ticket_type_id": stock.TicketTypeID,
			"requested":      stock.Requested,
			"available":      stock.Available,
		})
	case errors.As(err, &limit):
		return apis.NewBadRequestError(limit.Error(), nil)
	case errors.Is(err, status.ErrOrganizerNotEnabled):
		return apis.NewBadRequestError("Organizer is not ready to receive payments", nil)
	case errors.Is(err, status.ErrTicketUnavailable):
		return apis.NewBadRequestError("Tickets are not available for sale", nil)
	case errors.Is(err, status.ErrAlreadySettled):
		return apis.NewBadRequestError("Installment is already paid", nil)
	case errors.Is(err, status.ErrRateLimited):
		return apis.NewApiError(429, "Too many reference requests, try again later", nil)
	case errors.Is(err, status.ErrGatewayUnavailable):
		return apis.NewApiError(502, "Payment gateway is unavailable", nil)
	default:
		return apis.NewBadRequestError("Request failed", err)
	}
}
