package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/internal/status"
)

const testSecret = "whsec_test"

func signedBody(t *testing.T, ev map[string]any) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body, Hmac256(body, []byte(testSecret))
}

func TestParseEvent_ValidSignature(t *testing.T) {
	body, sig := signedBody(t, map[string]any{
		"id":   "evt_1",
		"type": EventPaymentSucceeded,
		"data": map[string]any{
			"payment_id": "pay_1",
			"amount":     "110.30",
			"metadata":   map[string]any{"registration_ids": "reg1,reg2"},
		},
	})

	ev, err := ParseEvent(body, sig, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventPaymentSucceeded, ev.Type)

	data, err := ev.Payment()
	require.NoError(t, err)
	assert.Equal(t, "pay_1", data.PaymentID)
	assert.Equal(t, []string{"reg1", "reg2"}, data.Metadata.RegistrationIDList())
}

func TestParseEvent_RejectsBadSignature(t *testing.T) {
	body, sig := signedBody(t, map[string]any{"id": "evt_1", "type": EventPaymentFailed})

	// Tampered body
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = 'X'
	_, err := ParseEvent(tampered, sig, testSecret)
	assert.ErrorIs(t, err, status.ErrSignatureMismatch)

	// Wrong secret
	_, err = ParseEvent(body, sig, "other-secret")
	assert.ErrorIs(t, err, status.ErrSignatureMismatch)

	// Missing signature
	_, err = ParseEvent(body, "", testSecret)
	assert.ErrorIs(t, err, status.ErrSignatureMismatch)
}

func TestParseEvent_RejectsMalformedEnvelope(t *testing.T) {
	body := []byte(`not json at all`)
	sig := Hmac256(body, []byte(testSecret))
	_, err := ParseEvent(body, sig, testSecret)
	assert.Error(t, err)

	body, sig = signedBody(t, map[string]any{"type": EventPaymentSucceeded})
	_, err = ParseEvent(body, sig, testSecret)
	assert.Error(t, err)
}

func TestRegistrationIDList(t *testing.T) {
	tests := []struct {
		raw      string
		expected []string
	}{
		{"", nil},
		{"reg1", []string{"reg1"}},
		{"reg1,reg2,reg3", []string{"reg1", "reg2", "reg3"}},
		{" reg1 , reg2 ", []string{"reg1", "reg2"}},
		{"reg1,,reg2,", []string{"reg1", "reg2"}},
	}

	for _, tt := range tests {
		m := PaymentMetadata{RegistrationIDs: tt.raw}
		assert.Equal(t, tt.expected, m.RegistrationIDList(), "raw %q", tt.raw)
	}
}

func TestEventTypedDecoders(t *testing.T) {
	accountData, _ := json.Marshal(map[string]any{
		"account_id":        "acct_1",
		"details_submitted": true,
		"charges_enabled":   true,
		"payouts_enabled":   false,
	})
	ev := &Event{ID: "evt_2", Type: EventAccountUpdated, Data: accountData}

	account, err := ev.Account()
	require.NoError(t, err)
	assert.Equal(t, "acct_1", account.AccountID)
	assert.True(t, account.DetailsSubmitted)
	assert.False(t, account.PayoutsEnabled)

	// Payment decoding requires a payment id
	ev = &Event{ID: "evt_3", Type: EventPaymentSucceeded, Data: []byte(`{"amount":"10"}`)}
	_, err = ev.Payment()
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	sig := Hmac256(body, []byte(testSecret))

	assert.True(t, VerifySignature(body, sig, testSecret))
	assert.False(t, VerifySignature(body, sig, "wrong"))
	assert.False(t, VerifySignature([]byte(`{}`), sig, testSecret))
}
