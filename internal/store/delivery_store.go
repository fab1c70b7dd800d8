package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/medieye/med-reminder/internal/domain"
)

// DeliveryAttemptRecord holds data for inserting a delivery attempt.
type DeliveryAttemptRecord struct {
	RunID          string
	SubscriptionID string
	Slot           string
	Channel        domain.Channel
	Destination    string
	Status         string
	ResponseTimeMs int
	ErrorMessage   string
}

// DeliveryFilter narrows ListDeliveryAttempts. Empty fields match everything.
type DeliveryFilter struct {
	RunID          string
	SubscriptionID string
	Channel        string
	Status         string
	Limit          int
}

const deliveryColumns = `id, run_id, subscription_id, slot, channel, destination, status, response_time_ms, error_message, created_at`

func (s *PostgresStore) RecordDeliveryAttempt(ctx context.Context, rec DeliveryAttemptRecord) error {
	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_attempts (run_id, subscription_id, slot, channel, destination, status, response_time_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.RunID, rec.SubscriptionID, rec.Slot, string(rec.Channel), rec.Destination, rec.Status, rec.ResponseTimeMs, errMsg)
	if err != nil {
		return fmt.Errorf("inserting delivery attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDeliveryAttempts(ctx context.Context, f DeliveryFilter) ([]domain.DeliveryAttempt, error) {
	var w whereClause
	w.add("run_id", f.RunID)
	w.add("subscription_id", f.SubscriptionID)
	w.add("channel", f.Channel)
	w.add("status", f.Status)
	query, args := w.build("SELECT "+deliveryColumns+" FROM delivery_attempts", "created_at DESC", f.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.DeliveryAttempt{}
	for rows.Next() {
		a, err := scanDeliveryAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery attempts: %w", err)
	}

	return attempts, nil
}

// GetDeliveryAttempt returns nil, nil when no attempt has the given ID.
func (s *PostgresStore) GetDeliveryAttempt(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+deliveryColumns+" FROM delivery_attempts WHERE id = $1", id)
	a, err := scanDeliveryAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func scanDeliveryAttempt(row pgx.Row) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	var channel string
	err := row.Scan(
		&a.ID, &a.RunID, &a.SubscriptionID, &a.Slot, &channel,
		&a.Destination, &a.Status, &a.ResponseTimeMs, &a.ErrorMessage, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning delivery attempt: %w", err)
	}
	a.Channel = domain.Channel(channel)
	return &a, nil
}
