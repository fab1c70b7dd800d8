package store

import (
	"context"
	"fmt"

	"github.com/medieye/med-reminder/internal/domain"
)

func (s *PostgresStore) RecordSlotRun(ctx context.Context, run domain.SlotRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO slot_runs (id, slot, trigger, subscriptions, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.Slot, run.Trigger, run.Subscriptions, run.StartedAt)
	if err != nil {
		return fmt.Errorf("inserting slot run: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishSlotRun(ctx context.Context, run domain.SlotRun) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE slot_runs SET delivered = $2, failed = $3, finished_at = $4
		WHERE id = $1
	`, run.ID, run.Delivered, run.Failed, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("updating slot run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("slot run %s not found", run.ID)
	}
	return nil
}

// ListSlotRuns returns the most recent runs, optionally for one slot.
func (s *PostgresStore) ListSlotRuns(ctx context.Context, slot string, limit int) ([]domain.SlotRun, error) {
	var w whereClause
	w.add("slot", slot)
	query, args := w.build(`SELECT id, slot, trigger, subscriptions, delivered, failed, started_at, finished_at FROM slot_runs`, "started_at DESC", limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying slot runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.SlotRun{}
	for rows.Next() {
		var r domain.SlotRun
		if err := rows.Scan(&r.ID, &r.Slot, &r.Trigger, &r.Subscriptions, &r.Delivered, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning slot run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slot runs: %w", err)
	}

	return runs, nil
}
