// Package email sends transactional mail through Postmark.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at another Postmark-compatible endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// Receipt describes a completed plugin purchase.
type Receipt struct {
	IntentID string
	Plugins  []string
}

// SendPurchaseReceipt tells the buyer which plugins were unlocked.
func (c *Client) SendPurchaseReceipt(ctx context.Context, toEmail string, r Receipt) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	subject := "Your plugin purchase"
	if len(r.Plugins) == 1 {
		subject = fmt.Sprintf("You now own %s", r.Plugins[0])
	}

	var text, htmlList strings.Builder
	text.WriteString("Thanks for your purchase. These plugins are now unlocked on your account:\n\n")
	htmlList.WriteString("<p>Thanks for your purchase. These plugins are now unlocked on your account:</p><ul>")
	for _, name := range r.Plugins {
		fmt.Fprintf(&text, "  - %s\n", name)
		fmt.Fprintf(&htmlList, "<li>%s</li>", html.EscapeString(name))
	}
	htmlList.WriteString("</ul>")
	fmt.Fprintf(&text, "\nPayment reference: %s\n", r.IntentID)
	fmt.Fprintf(&htmlList, "<p>Payment reference: %s</p>", html.EscapeString(r.IntentID))

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlList.String(),
		TextBody: text.String(),
		Tag:      "purchase-receipt",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
