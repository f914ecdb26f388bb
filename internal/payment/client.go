package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Intent is an authorized-but-not-yet-settled charge on the gateway
// side. ClientSecret is handed to the booking client to complete the
// payment out-of-band.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// GatewayError carries the gateway's rejection back to the caller.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment gateway error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("payment gateway error %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL       string `yaml:"base_url"`
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	Currency      string `yaml:"currency"`
	// Timeout is a duration string like "15s".
	Timeout string `yaml:"timeout"`
}

// Client talks to a Stripe-style payment intents API over HTTP with
// form-encoded requests and bearer auth.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(cfg Config, logger *zerolog.Logger) *Client {
	timeout := 15 * time.Second
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	var clientLogger zerolog.Logger
	if logger != nil {
		clientLogger = logger.With().Str("component", "payment").Logger()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     clientLogger,
	}
}

// CreateIntent opens a payment intent for an amount in minor currency
// units. Metadata is attached verbatim for auditability on the gateway
// dashboard.
func (c *Client) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", currency)
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}

	c.logger.Info().Str("intent_id", intent.ID).Int64("amount_minor", amountMinor).Msg("payment intent created")
	return &intent, nil
}

// CancelIntent voids an intent that was never charged.
func (c *Client) CancelIntent(ctx context.Context, intentID string) error {
	path := "/v1/payment_intents/" + url.PathEscape(intentID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, url.Values{}, nil); err != nil {
		return err
	}
	c.logger.Info().Str("intent_id", intentID).Msg("payment intent cancelled")
	return nil
}

// Refund returns a settled charge to the payer.
func (c *Client) Refund(ctx context.Context, chargeID string) error {
	form := url.Values{}
	form.Set("charge", chargeID)
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", form, nil); err != nil {
		return err
	}
	c.logger.Info().Str("charge_id", chargeID).Msg("charge refunded")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode >= 400 {
		gwErr := &GatewayError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var wrapper struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &wrapper) == nil && wrapper.Error.Message != "" {
			gwErr.Code = wrapper.Error.Code
			gwErr.Message = wrapper.Error.Message
		}
		return gwErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
