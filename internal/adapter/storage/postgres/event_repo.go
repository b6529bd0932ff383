package postgres

import (
	"context"
	"fmt"

	"wallet-ledger-service/internal/core/domain"
)

// EventLogRepo implements ports.EventLogRepository.
type EventLogRepo struct {
	pool Pool
}

// NewEventLogRepo creates a new EventLogRepo.
func NewEventLogRepo(pool Pool) *EventLogRepo {
	return &EventLogRepo{pool: pool}
}

// Create records one received processor delivery. Outside any transaction:
// audit rows are written best-effort after processing.
func (r *EventLogRepo) Create(ctx context.Context, log *domain.EventLog) error {
	query := `INSERT INTO event_logs (id, event_id, event_type, payment_reference, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		log.ID, log.EventID, log.EventType, log.PaymentReference, log.Result, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
