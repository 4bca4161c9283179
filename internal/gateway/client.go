package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ClientConfig struct {
	BaseURL    string `json:"baseUrl" mapstructure:"base_url"`
	MerchantID string `json:"merchantId" mapstructure:"merchant_id"`
	ClientID   string `json:"clientId" mapstructure:"client_id"`
	ClientKey  string `json:"clientKey" mapstructure:"client_key"`
	HMACKey    string `json:"hmacKey" mapstructure:"hmac_key"`
}

type Client struct {
	// baseURL is the base url of the gateway backend.
	baseURL string

	// merchantID is the platform's own merchant account id.
	merchantID string

	// clientID is the api client id of the gateway backend.
	clientID string

	// clientKey is the api client key of the gateway backend.
	clientKey string

	// hmacKey signs every outbound request body.
	hmacKey string

	// accessToken is used to authenticate with the gateway backend.
	accessToken string

	// mu is used to lock access token.
	mu sync.Mutex

	// toggleTokenRefresher is used to notify token refresher to refresh token.
	toggleTokenRefresher chan struct{}

	// hc is the http client.
	hc *http.Client
}

// newClient creates new instance of the gateway api client.
func newClient(_ context.Context, c *ClientConfig) *Client {
	return &Client{
		baseURL:    c.BaseURL,
		merchantID: c.MerchantID,
		clientID:   c.ClientID,
		clientKey:  c.ClientKey,
		hmacKey:    c.HMACKey,

		// make a buffered channel to avoid blocking.
		toggleTokenRefresher: make(chan struct{}, 1),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// notifyAccessTokenExpired do infinite loop with period of time
// to perform auto renew token from the gateway backend with
// exponential backOff strategy.
func (c *Client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return

		case <-ticker.C:

		case <-c.toggleTokenRefresher:
			log.Println("notifyAccessTokenExpired: toggleTokenRefresher => token refreshed")
		}

		// reconnect with exponential backOff strategy
		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)

				break Retry

			default:
				log.Printf("notifyAccessTokenExpired: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

// setAccessToken set access token to client.
func (c *Client) setAccessToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
}

// getAccessToken get access token from client.
func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect makes http call to perform authentication with the gateway backend.
func (c *Client) connect(ctx context.Context) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{
		"requestId":    uuid.NewString(),
		"clientId":     c.clientID,
		"clientSecret": c.clientKey,
	})

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AccessToken string `json:"accessToken"`
			TokenType   string `json:"tokenType"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/auth/token", reqBody, false, &reply); err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("connect: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return fmt.Sprintf("%s %s", reply.Data.TokenType, reply.Data.AccessToken), nil
}

type SessionRequest struct {
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	PlatformFee        decimal.Decimal   `json:"applicationFee"`
	DestinationAccount string            `json:"destinationAccount"`
	SuccessURL         string            `json:"successUrl"`
	CancelURL          string            `json:"cancelUrl"`
	Metadata           PaymentMetadata   `json:"metadata"`
	LineItems          []SessionLineItem `json:"lineItems"`
}

type SessionLineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Session struct {
	ID        string    `json:"sessionId"`
	URL       string    `json:"sessionUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// createCheckoutSession opens a hosted checkout session with split routing:
// the platform fee stays on the platform account, the remainder goes to the
// organizer's sub-merchant account.
func (c *Client) createCheckoutSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	body, err := json.Marshal(struct {
		RequestID  string `json:"requestId"`
		MerchantID string `json:"merchantId"`
		*SessionRequest
	}{uuid.NewString(), c.merchantID, req})
	if err != nil {
		return nil, fmt.Errorf("createCheckoutSession: marshal: %v", err)
	}

	var reply struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Data    Session `json:"data"`
	}
	if err := c.post(ctx, "/v1/split/checkout-sessions", body, true, &reply); err != nil {
		return nil, fmt.Errorf("createCheckoutSession: %w", err)
	}
	if reply.Status != "OK" {
		return nil, fmt.Errorf("createCheckoutSession: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}
	if reply.Data.ID == "" || reply.Data.URL == "" {
		return nil, errors.New("createCheckoutSession: reply missing session id or url")
	}

	return &reply.Data, nil
}

type ReferenceRequest struct {
	UUID               string          `json:"billNumber"` // installment id
	Amount             decimal.Decimal `json:"txnAmount"`
	Currency           string          `json:"currency"`
	ReferenceLabel     string          `json:"referenceLabel"`
	DestinationAccount string          `json:"destinationAccount"`
	PlatformFee        decimal.Decimal `json:"applicationFee"`
	ExpirySeconds      int             `json:"expirySeconds"`
	Metadata           PaymentMetadata `json:"metadata"`
}

type Reference struct {
	PaymentID string `json:"paymentId"`
	Blob      string `json:"emv"`
	Code      string `json:"displayCode"`
}

// createPayableReference requests a fresh time-boxed payable reference scoped
// to exactly one installment's amount.
func (c *Client) createPayableReference(ctx context.Context, req *ReferenceRequest) (*Reference, error) {
	body, err := json.Marshal(struct {
		RequestID  string `json:"requestId"`
		MerchantID string `json:"merchantId"`
		*ReferenceRequest
	}{uuid.NewString(), c.merchantID, req})
	if err != nil {
		return nil, fmt.Errorf("createPayableReference: marshal: %v", err)
	}

	var reply struct {
		Status  string    `json:"status"`
		Message string    `json:"message"`
		Data    Reference `json:"data"`
	}
	if err := c.post(ctx, "/v1/split/payable-references", body, true, &reply); err != nil {
		return nil, fmt.Errorf("createPayableReference: %w", err)
	}
	if reply.Status != "OK" {
		return nil, fmt.Errorf("createPayableReference: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}
	if reply.Data.Blob == "" {
		return nil, errors.New("createPayableReference: reply missing reference payload")
	}

	return &reply.Data, nil
}

// post sends a signed request and decodes the json reply into out.
func (c *Client) post(ctx context.Context, path string, body []byte, authed bool, out any) error {
	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, _baseURL.String()+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256(body, []byte(c.hmacKey)))
	if authed {
		req.Header.Set("Authorization", c.getAccessToken())
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return errors.New("resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resp.StatusCode: %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("json.Decode: %v", err)
	}
	return nil
}
