// Package payment wraps the Stripe calls used to sell premium plugins.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Metadata keys stored on each payment intent.
const (
	MetaAccountID = "account_id"
	MetaPluginIDs = "plugin_ids"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	return &Client{cfg: cfg}
}

// Intent is the part of a Stripe PaymentIntent the storefront needs to
// confirm the payment client side.
type Intent struct {
	ID           string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Purchase is what a successful payment entitles.
type Purchase struct {
	IntentID  string
	AccountID string
	PluginIDs []int64
}

func (c *Client) Currency() string {
	return c.cfg.Currency
}

// CreatePaymentIntent creates an intent for amount (in the smallest currency
// unit) carrying the buyer and the plugins in its metadata.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64, p Purchase) (*Intent, error) {
	ids, err := json.Marshal(p.PluginIDs)
	if err != nil {
		return nil, fmt.Errorf("encode plugin ids: %w", err)
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(c.cfg.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetaAccountID, p.AccountID)
	params.AddMetadata(MetaPluginIDs, string(ids))

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}

// PurchaseFromEvent reads the buyer and plugins back out of a
// payment_intent event.
func PurchaseFromEvent(event stripe.Event) (Purchase, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return Purchase{}, fmt.Errorf("unmarshal payment intent: %w", err)
	}
	return purchaseFromMetadata(pi.ID, pi.Metadata)
}

func purchaseFromMetadata(intentID string, meta map[string]string) (Purchase, error) {
	p := Purchase{IntentID: intentID, AccountID: meta[MetaAccountID]}
	if p.AccountID == "" {
		return Purchase{}, fmt.Errorf("payment intent %s: missing %s", intentID, MetaAccountID)
	}
	raw := meta[MetaPluginIDs]
	if raw == "" {
		return Purchase{}, fmt.Errorf("payment intent %s: missing %s", intentID, MetaPluginIDs)
	}
	if err := json.Unmarshal([]byte(raw), &p.PluginIDs); err != nil {
		// Older intents stored a single id.
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return Purchase{}, fmt.Errorf("payment intent %s: decode %s: %w", intentID, MetaPluginIDs, err)
		}
		p.PluginIDs = []int64{id}
	}
	return p, nil
}
