package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event kinds the reservation manager reacts to. Anything else
// is ignored by the caller.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

var (
	ErrBadSignature = errors.New("webhook signature verification failed")
	ErrStaleEvent   = errors.New("webhook timestamp outside tolerance")
)

// Event is a decoded gateway callback.
type Event struct {
	ID       string
	Type     string
	IntentID string
	ChargeID string
	// Status is the gateway's raw payment status string, recorded on the
	// booking verbatim.
	Status string
}

// DefaultTolerance bounds how old a signed webhook timestamp may be.
const DefaultTolerance = 5 * time.Minute

// SignatureHeader carries the webhook signature on inbound deliveries.
const SignatureHeader = "Payment-Signature"

// VerifySignature checks a `t=<unix>,v1=<hex hmac>` header against the
// payload. The signed message is "<t>.<payload>" keyed with the webhook
// secret. Verification failure is a rejection, never a retry.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return errors.New("webhook secret is not configured")
	}

	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrBadSignature)
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, value)
		}
	}

	if ts == 0 || len(sigs) == 0 {
		return fmt.Errorf("%w: missing timestamp or signature", ErrBadSignature)
	}

	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return ErrStaleEvent
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrBadSignature
}

// SignPayload produces the signature header for a payload, used by
// tests and by any outbound delivery tooling.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// ParseEvent decodes the gateway's event envelope. Unknown kinds decode
// fine; the caller decides whether to act on Event.Type.
func ParseEvent(payload []byte) (*Event, error) {
	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID           string `json:"id"`
				Status       string `json:"status"`
				LatestCharge string `json:"latest_charge"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if envelope.Type == "" || envelope.Data.Object.ID == "" {
		return nil, errors.New("webhook payload missing type or intent id")
	}

	return &Event{
		ID:       envelope.ID,
		Type:     envelope.Type,
		IntentID: envelope.Data.Object.ID,
		ChargeID: envelope.Data.Object.LatestCharge,
		Status:   envelope.Data.Object.Status,
	}, nil
}
