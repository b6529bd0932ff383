package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"
)

// SignatureHeader is the HTTP header carrying the processor signature.
// Format: "t=<unix>,v1=<hex hmac>".
const SignatureHeader = "Payment-Signature"

// eventEnvelope mirrors the processor's JSON event shape. The dynamic
// metadata bag is collapsed into typed fields here; nothing downstream of
// the verifier touches raw JSON.
type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Currency string            `json:"currency"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// EventVerifierService implements ports.EventVerifier: it authenticates a raw
// delivery against the shared webhook secret and decodes it into a typed
// domain.PaymentEvent. Pure over its inputs; no side effects.
type EventVerifierService struct {
	secret string
	skew   time.Duration
	sigSvc ports.SignatureService
}

// NewEventVerifier creates an EventVerifierService. skew bounds how far the
// signed timestamp may drift from the local clock.
func NewEventVerifier(secret string, skew time.Duration, sigSvc ports.SignatureService) *EventVerifierService {
	return &EventVerifierService{
		secret: secret,
		skew:   skew,
		sigSvc: sigSvc,
	}
}

// Verify authenticates and decodes one delivery. Every failure maps to a 4xx
// so the processor never silently drops a rejected event.
func (s *EventVerifierService) Verify(payload []byte, signatureHeader string) (*domain.PaymentEvent, error) {
	timestamp, signature, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, apperror.ErrMissingSignature()
	}

	drift := time.Since(time.Unix(timestamp, 0))
	if drift > s.skew || drift < -s.skew {
		return nil, apperror.ErrTimestampOutsideWindow()
	}

	signed := s.sigSvc.BuildSignedPayload(timestamp, string(payload))
	if !s.sigSvc.Verify(s.secret, signed, signature) {
		return nil, apperror.ErrInvalidSignature()
	}

	return decodeEvent(payload)
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>" into its parts.
func parseSignatureHeader(header string) (int64, string, error) {
	var timestampStr, signature string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestampStr = value
		case "v1":
			signature = value
		}
	}
	if timestampStr == "" || signature == "" {
		return 0, "", fmt.Errorf("signature header missing t or v1 component")
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse signature timestamp: %w", err)
	}
	return timestamp, signature, nil
}

// decodeEvent turns the verified raw payload into a typed PaymentEvent.
func decodeEvent(payload []byte) (*domain.PaymentEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperror.ErrMalformedPayload(err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("event id or type missing"))
	}

	event := &domain.PaymentEvent{
		EventID:          env.ID,
		Type:             env.Type,
		PaymentReference: env.Data.Object.ID,
		AmountMinorUnits: env.Data.Object.Amount,
		Currency:         env.Data.Object.Currency,
		Purpose:          env.Data.Object.Metadata["purpose"],
		SubjectUserID:    env.Data.Object.Metadata["user_id"],
	}

	switch env.Type {
	case domain.EventTypePaymentSucceeded:
		event.Outcome = domain.OutcomeSucceeded
	case domain.EventTypePaymentFailed:
		event.Outcome = domain.OutcomeFailed
	default:
		// Unrecognized types are decoded as-is; the dispatcher acknowledges
		// and ignores them.
		return event, nil
	}

	if event.PaymentReference == "" {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("payment event %s has no payment reference", env.ID))
	}
	return event, nil
}
