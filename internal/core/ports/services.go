package ports

import (
	"context"
	"time"

	"wallet-ledger-service/internal/core/domain"
)

// EventVerifier authenticates a raw processor delivery and decodes it into a
// typed event. Pure over its inputs.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (*domain.PaymentEvent, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of processor
// payloads.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildSignedPayload(timestamp int64, body string) string
}

// ApplyStatus is the terminal status of processing one event delivery.
type ApplyStatus string

const (
	// ApplyStatusApplied: the ledger entry was written and the balance updated.
	ApplyStatusApplied ApplyStatus = "APPLIED"
	// ApplyStatusAlreadyApplied: the payment reference was applied by an
	// earlier delivery. A normal idempotent no-op, not an error.
	ApplyStatusAlreadyApplied ApplyStatus = "ALREADY_APPLIED"
	// ApplyStatusRejected: malformed business data; acknowledged without
	// mutation because redelivery cannot help.
	ApplyStatusRejected ApplyStatus = "REJECTED"
	// ApplyStatusIgnored: event type or purpose outside this service's scope.
	ApplyStatusIgnored ApplyStatus = "IGNORED"
)

// Rejection reasons surfaced in the acknowledgement body.
const (
	RejectReasonMissingUser       = "missing-user"
	RejectReasonNonPositiveAmount = "non-positive-amount"
)

// ApplyResult describes what processing an event did.
type ApplyResult struct {
	Status      ApplyStatus
	Reason      string
	Transaction *domain.Transaction
}

// EventDispatcher routes a verified event to the matching workflow.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *domain.PaymentEvent) (*ApplyResult, error)
}

// CreditService is the wallet crediting workflow: idempotency guard, lazy
// wallet creation, atomic ledger append + balance update. Errors are
// persistence failures; everything else is expressed in the ApplyResult.
type CreditService interface {
	Credit(ctx context.Context, event *domain.PaymentEvent) (*ApplyResult, error)
}

// TokenService handles JWT bearer tokens for the read API.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// ReportingService exposes read-only wallet views for operators.
type ReportingService interface {
	GetWalletBalance(ctx context.Context, userID string) (int64, string, error)
	ListTransactions(ctx context.Context, userID string, page, pageSize int) ([]domain.Transaction, int64, error)
	GetDepositStats(ctx context.Context, userID string) (*DepositStats, error)
}
