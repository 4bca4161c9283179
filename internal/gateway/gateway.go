package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"

	"ticket-marketplace/internal/status"
)

type (
	Config struct {
		BaseURL    string `json:"baseUrl" mapstructure:"base_url"`
		MerchantID string `json:"merchantId" mapstructure:"merchant_id"`
		ClientID   string `json:"clientId" mapstructure:"client_id"`
		ClientKey  string `json:"clientKey" mapstructure:"client_key"`
		HMACKey    string `json:"hmacKey" mapstructure:"hmac_key"`

		PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
		PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
		PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
		PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`

		Currency string `json:"currency" mapstructure:"currency"`

		// Settlements receives realtime settlement notifications. It must be
		// set before New so the subscription never races the consumer.
		Settlements chan *status.Transaction `json:"-" mapstructure:"-"`
	}

	// Gateway wraps the split-payment provider: hosted checkout sessions for
	// the card rail, payable references for the deferred rail, and a realtime
	// settlement subscription that complements webhook delivery.
	Gateway struct {
		MerchantID string
		Currency   string

		pnSubKey    string
		pnSubSecret string
		pnUUID      string
		pnChannels  []string

		sub *subscribe

		client *Client
	}
)

// settlementPayload is the wire shape of a realtime settlement notification.
type settlementPayload struct {
	RefID         string          `json:"refNo"`
	UUID          string          `json:"billNumber"`
	Ccy           string          `json:"sourceCurrency"`
	Payer         string          `json:"sourceName"`
	AccountNumber string          `json:"sourceAccount"`
	Amount        decimal.Decimal `json:"txnAmount"`
	CreatedAt     string          `json:"txnDateTime"`
}

// New returns a connected Gateway instance.
func New(ctx context.Context, cfg *Config) (*Gateway, error) {
	client := newClient(ctx, &ClientConfig{
		BaseURL:    cfg.BaseURL,
		MerchantID: cfg.MerchantID,
		ClientID:   cfg.ClientID,
		ClientKey:  cfg.ClientKey,
		HMACKey:    cfg.HMACKey,
	})

	// Connect to the gateway backend. Get access token.
	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	// Notify access token expired.
	go client.notifyAccessTokenExpired(ctx)

	g := &Gateway{
		MerchantID: cfg.MerchantID,
		Currency:   cfg.Currency,

		pnSubKey:    cfg.PNSubKey,
		pnSubSecret: cfg.PNSubSecret,
		pnUUID:      cfg.PNUUID,
		pnChannels:  []string{cfg.PNChannel},

		client: client,
	}

	if cfg.PNSubKey != "" {
		pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(g.pnUUID))
		pnCfg.SubscribeKey = g.pnSubKey
		pnCfg.SecretKey = g.pnSubSecret

		sub, err := g.newSubscription(ctx, pnCfg, cfg.Settlements)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to gateway settlement channel: %v", err)
		}
		sub.pn.AddListener(sub.lis)
		if cfg.PNChannel != "" {
			// Merchant-wide settlement channel; per-reference channels are
			// added as references get issued.
			sub.pn.Subscribe().Channels(g.pnChannels).Execute()
		}
		g.sub = sub
	}

	return g, nil
}

// CreateCheckoutSession opens a hosted session routing the platform fee to the
// platform and the remainder to the organizer's sub-merchant account.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	if req.Currency == "" {
		req.Currency = g.Currency
	}
	return g.client.createCheckoutSession(ctx, req)
}

// GeneratePayableReference creates a fresh deferred-rail reference and starts
// listening for its settlement on the realtime channel.
func (g *Gateway) GeneratePayableReference(ctx context.Context, req *ReferenceRequest) (*Reference, error) {
	if req.Currency == "" {
		req.Currency = g.Currency
	}
	ref, err := g.client.createPayableReference(ctx, req)
	if err != nil {
		return nil, err
	}

	g.addChannel(ctx, req.UUID)

	return ref, nil
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *status.Transaction
}

func (g *Gateway) newSubscription(ctx context.Context, pnCfg *pubnub.Config, ch chan *status.Transaction) (*subscribe, error) {
	sub := &subscribe{
		pn:  pubnub.NewPubNub(pnCfg),
		lis: pubnub.NewListener(),
		ch:  ch,
	}

	go sub.processSubscription(ctx)

	return sub, nil
}

func (s *subscribe) processSubscription(ctx context.Context) error {
	listener := s.lis
	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to gateway settlement stream")

			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to gateway settlement stream")

			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from gateway settlement stream")

			default:
				log.Printf("gateway settlement stream status: %v", st.Category)
			}

		case message := <-listener.Message:
			raw, ok := message.Message.(string)
			if !ok {
				log.Printf("gateway settlement stream: unexpected message type %T", message.Message)
				continue
			}

			var p settlementPayload
			dec := json.NewDecoder(strings.NewReader(raw))
			if err := dec.Decode(&p); err != nil {
				log.Println(err)
				continue
			}

			tran, err := p.ToDomain()
			if err != nil {
				log.Println(err)
				continue
			}
			if s.ch != nil {
				s.ch <- tran
			}

		case <-ctx.Done():
			log.Println("close gateway settlement subscription")
			return nil
		}
	}
}

func (p *settlementPayload) ToDomain() (*status.Transaction, error) {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", p.CreatedAt, time.Local)
	if err != nil {
		return nil, err
	}

	return &status.Transaction{
		RefID:         p.RefID,
		UUID:          p.UUID,
		Ccy:           p.Ccy,
		Payer:         p.Payer,
		AccountNumber: p.AccountNumber,
		Amount:        p.Amount,
		CreatedAt:     ts,
	}, nil
}

func (g *Gateway) addChannel(_ context.Context, uuid string) {
	if g.sub == nil {
		return
	}

	channel := fmt.Sprintf("%s_%s", g.MerchantID, uuid)

	// Get last 2 minutes timetoken.
	tt := time.Now().Add(-2*time.Minute).Unix() * 10000

	g.sub.pn.Subscribe().Channels([]string{channel}).Timetoken(tt).Execute()
}

func (g *Gateway) Unsubscribe(_ context.Context, uuid string) {
	if g.sub == nil {
		return
	}
	g.sub.pn.Unsubscribe().Channels([]string{fmt.Sprintf("%s_%s", g.MerchantID, uuid)}).Execute()
}
