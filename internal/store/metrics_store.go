package store

import (
	"context"
	"fmt"
)

// DeliveryMetrics holds aggregated delivery statistics.
type DeliveryMetrics struct {
	TotalDeliveries int     `json:"total_deliveries"`
	DeliveredCount  int     `json:"delivered_count"`
	FailedCount     int     `json:"failed_count"`
	SuccessRate     float64 `json:"success_rate"`
	AvgResponseMs   float64 `json:"avg_response_ms"`
	PushFailed      int     `json:"push_failed"`
	EmailFailed     int     `json:"email_failed"`
	TotalRuns       int     `json:"total_runs"`
}

func (s *PostgresStore) GetDeliveryMetrics(ctx context.Context) (*DeliveryMetrics, error) {
	var m DeliveryMetrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'delivered') AS delivered,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE status = 'failed' AND channel = 'push') AS push_failed,
			COUNT(*) FILTER (WHERE status = 'failed' AND channel = 'email') AS email_failed,
			COALESCE(AVG(response_time_ms) FILTER (WHERE response_time_ms > 0), 0) AS avg_response_ms
		FROM delivery_attempts
	`).Scan(&m.TotalDeliveries, &m.DeliveredCount, &m.FailedCount, &m.PushFailed, &m.EmailFailed, &m.AvgResponseMs)
	if err != nil {
		return nil, fmt.Errorf("querying delivery metrics: %w", err)
	}

	if m.TotalDeliveries > 0 {
		m.SuccessRate = float64(m.DeliveredCount) / float64(m.TotalDeliveries) * 100
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM slot_runs`).Scan(&m.TotalRuns)
	if err != nil {
		return nil, fmt.Errorf("querying slot run count: %w", err)
	}

	return &m, nil
}
