package service

import (
	"context"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// Ignore reasons surfaced in the acknowledgement body.
const (
	ignoreReasonFailedPayment  = "failed-payment"
	ignoreReasonNoPurpose      = "no-purpose"
	ignoreReasonUnknownPurpose = "unknown-purpose"
	ignoreReasonUnhandledType  = "unhandled-event-type"
)

// DispatcherServiceImpl implements ports.EventDispatcher. It routes verified
// events to the matching workflow and acknowledges everything else, so the
// processor never retries deliveries this service will never act on.
type DispatcherServiceImpl struct {
	creditSvc ports.CreditService
	eventLog  ports.EventLogRepository
	log       zerolog.Logger
}

// NewDispatcherService creates a new DispatcherServiceImpl.
func NewDispatcherService(creditSvc ports.CreditService, eventLog ports.EventLogRepository, log zerolog.Logger) *DispatcherServiceImpl {
	return &DispatcherServiceImpl{
		creditSvc: creditSvc,
		eventLog:  eventLog,
		log:       log,
	}
}

// Dispatch routes one verified event. Only successful wallet-purpose payments
// reach the crediting workflow; failed payments and foreign purposes are
// acknowledged as ignored.
func (s *DispatcherServiceImpl) Dispatch(ctx context.Context, event *domain.PaymentEvent) (*ports.ApplyResult, error) {
	result, err := s.route(ctx, event)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, event, result)

	s.log.Info().
		Str("event_id", event.EventID).
		Str("event_type", event.Type).
		Str("status", string(result.Status)).
		Str("reason", result.Reason).
		Msg("event dispatched")
	return result, nil
}

func (s *DispatcherServiceImpl) route(ctx context.Context, event *domain.PaymentEvent) (*ports.ApplyResult, error) {
	switch event.Type {
	case domain.EventTypePaymentSucceeded:
		switch {
		case event.ForWallet():
			return s.creditSvc.Credit(ctx, event)
		case event.Purpose == "":
			return &ports.ApplyResult{Status: ports.ApplyStatusIgnored, Reason: ignoreReasonNoPurpose}, nil
		default:
			return &ports.ApplyResult{Status: ports.ApplyStatusIgnored, Reason: ignoreReasonUnknownPurpose}, nil
		}
	case domain.EventTypePaymentFailed:
		// Failed payments never touch the wallet. Acknowledged so the
		// processor stops redelivering.
		return &ports.ApplyResult{Status: ports.ApplyStatusIgnored, Reason: ignoreReasonFailedPayment}, nil
	default:
		return &ports.ApplyResult{Status: ports.ApplyStatusIgnored, Reason: ignoreReasonUnhandledType}, nil
	}
}

// recordEvent appends to the delivery audit log. Best-effort: an audit write
// failure must not turn a processed event into a retried one.
func (s *DispatcherServiceImpl) recordEvent(ctx context.Context, event *domain.PaymentEvent, result *ports.ApplyResult) {
	entry := domain.NewEventLog(event, string(result.Status))
	if err := s.eventLog.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("event_id", event.EventID).Msg("failed to record event log entry")
	}
}
