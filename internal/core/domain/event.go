package domain

// EventOutcome represents the processor's verdict on the underlying payment.
type EventOutcome string

const (
	OutcomeSucceeded EventOutcome = "SUCCEEDED"
	OutcomeFailed    EventOutcome = "FAILED"
)

// Processor event types this service understands. All other types are
// accepted and ignored so new processor event shapes never cause retries.
const (
	EventTypePaymentSucceeded = "payment_intent.succeeded"
	EventTypePaymentFailed    = "payment_intent.payment_failed"
)

// PurposeWallet is the metadata tag routing an event to the wallet
// crediting workflow.
const PurposeWallet = "wallet"

// PaymentEvent is one verified, decoded delivery from the payment processor.
// It is constructed once by the event verifier and never mutated. EventID is
// unique per delivery attempt; PaymentReference is the processor's stable
// identifier for the payment and is the de-duplication key.
type PaymentEvent struct {
	EventID          string       `json:"event_id"`
	Type             string       `json:"type"`
	PaymentReference string       `json:"payment_reference"`
	AmountMinorUnits int64        `json:"amount_minor_units"`
	Currency         string       `json:"currency"`
	Purpose          string       `json:"purpose,omitempty"`
	SubjectUserID    string       `json:"subject_user_id,omitempty"`
	Outcome          EventOutcome `json:"outcome"`
}

// Succeeded returns true if the processor reported the payment as successful.
func (e *PaymentEvent) Succeeded() bool {
	return e.Outcome == OutcomeSucceeded
}

// ForWallet returns true if the event is tagged for wallet crediting.
func (e *PaymentEvent) ForWallet() bool {
	return e.Purpose == PurposeWallet
}
