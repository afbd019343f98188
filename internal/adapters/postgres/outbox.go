package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"coitrack/internal/ports"
)

// ClaimNext selects the next queued notification using SKIP LOCKED and marks
// it claimed, so concurrent dispatcher workers never double-deliver.
func (db *DB) ClaimNext(ctx context.Context) (event ports.Event, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return event, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var payload []byte
	err = tx.QueryRow(ctx, `
		SELECT id, event_type, recipient_role, certificate_id, payload, queued_at
		FROM notification_outbox
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&event.ID, &event.Type, &event.RecipientRole, &event.CertificateID, &payload, &event.QueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return event, false, nil
	}
	if err != nil {
		return event, false, err
	}
	if len(payload) > 0 {
		if err = json.Unmarshal(payload, &event.Payload); err != nil {
			return event, false, err
		}
	}
	if _, err = tx.Exec(ctx, `
		UPDATE notification_outbox SET status='claimed', attempts=attempts+1, claimed_at=now() WHERE id=$1
	`, event.ID); err != nil {
		return event, false, err
	}
	return event, true, nil
}

func (db *DB) MarkDispatched(ctx context.Context, eventID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE notification_outbox SET status='dispatched', dispatched_at=now() WHERE id=$1
	`, eventID)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, eventID uuid.UUID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE notification_outbox SET status='failed', last_error=$2, dispatched_at=now() WHERE id=$1
	`, eventID, reason)
	return err
}
