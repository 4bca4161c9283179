package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/services"
)

// A signature failure is the sender's problem, not an auth handshake:
// the gateway expects a 400 and will not retry.
func TestHandleWebhook_BadSignature(t *testing.T) {
	h := NewWebhookHandler(services.NewWebhookService(nil, nil, nil, "whsec_test"))

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook",
		strings.NewReader(`{"id":"evt_1","type":"payment.succeeded","data":{}}`))
	req.Header.Set(SignatureHeader, "deadbeef")

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = httptest.NewRecorder()

	err := h.HandleWebhook(e)
	require.Error(t, err)

	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}
