package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"coitrack/internal/domain"
	"coitrack/internal/ports"
)

const certificateColumns = `
	id, project_id, subcontractor_id, project_name, subcontractor_name,
	general_contractor, state_code, program_id, trades, additional_insureds,
	coverage, obligations, status, hold_harmless_status,
	coi_file_url, generated_coi_url, hold_harmless_file_url,
	sub_signature_ref, gc_signature_ref, version, archived, created_at, updated_at
`

// CertificateRepository
func (db *DB) Create(ctx context.Context, cert *domain.Certificate, events []ports.Event) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	trades, addl, coverage, obligations, err := marshalCertJSON(cert)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`, cert.ID, cert.ProjectID, cert.SubcontractorID, cert.ProjectName, cert.SubcontractorName,
		cert.GeneralContractor, cert.StateCode, cert.ProgramID, trades, addl,
		coverage, obligations, cert.Status, cert.HoldHarmlessStatus,
		cert.COIFileURL, cert.GeneratedCOIURL, cert.HoldHarmlessFileURL,
		cert.SubSignatureRef, cert.GCSignatureRef, cert.Version, cert.Archived, cert.CreatedAt, cert.UpdatedAt)
	if err != nil {
		return err
	}
	return insertEvents(ctx, tx, events)
}

func (db *DB) Get(ctx context.Context, id uuid.UUID) (*domain.Certificate, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id)
	cert, err := scanCertificate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return cert, err
}

// Update writes the whole record guarded by the optimistic version check and
// appends outbox events in the same transaction. Zero rows matched means a
// concurrent writer got there first.
func (db *DB) Update(ctx context.Context, cert *domain.Certificate, events []ports.Event) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	trades, addl, coverage, obligations, err := marshalCertJSON(cert)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE certificates SET
			trades = $2, additional_insureds = $3, coverage = $4, obligations = $5,
			status = $6, hold_harmless_status = $7,
			coi_file_url = $8, generated_coi_url = $9, hold_harmless_file_url = $10,
			sub_signature_ref = $11, gc_signature_ref = $12,
			archived = $13, updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $15
	`, cert.ID, trades, addl, coverage, obligations,
		cert.Status, cert.HoldHarmlessStatus,
		cert.COIFileURL, cert.GeneratedCOIURL, cert.HoldHarmlessFileURL,
		cert.SubSignatureRef, cert.GCSignatureRef,
		cert.Archived, cert.UpdatedAt, cert.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	cert.Version++
	return insertEvents(ctx, tx, events)
}

func (db *DB) ListPending(ctx context.Context) ([]*domain.Certificate, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+certificateColumns+` FROM certificates
		WHERE NOT archived AND NOT (status = 'approved' AND hold_harmless_status = 'signed')
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func insertEvents(ctx context.Context, tx pgx.Tx, events []ports.Event) error {
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO notification_outbox (id, event_type, recipient_role, certificate_id, payload)
			VALUES ($1, $2, $3, $4, $5)
		`, e.ID, e.Type, e.RecipientRole, e.CertificateID, payload); err != nil {
			return err
		}
	}
	return nil
}

func marshalCertJSON(cert *domain.Certificate) (trades, addl, coverage, obligations []byte, err error) {
	if trades, err = json.Marshal(cert.Trades); err != nil {
		return
	}
	if addl, err = json.Marshal(cert.AdditionalInsureds); err != nil {
		return
	}
	if coverage, err = json.Marshal(cert.Coverage); err != nil {
		return
	}
	obligations, err = json.Marshal(cert.Obligations)
	return
}

func scanCertificate(row pgx.Row) (*domain.Certificate, error) {
	var (
		cert        domain.Certificate
		trades      []byte
		addl        []byte
		coverage    []byte
		obligations []byte
	)
	err := row.Scan(&cert.ID, &cert.ProjectID, &cert.SubcontractorID, &cert.ProjectName, &cert.SubcontractorName,
		&cert.GeneralContractor, &cert.StateCode, &cert.ProgramID, &trades, &addl,
		&coverage, &obligations, &cert.Status, &cert.HoldHarmlessStatus,
		&cert.COIFileURL, &cert.GeneratedCOIURL, &cert.HoldHarmlessFileURL,
		&cert.SubSignatureRef, &cert.GCSignatureRef, &cert.Version, &cert.Archived, &cert.CreatedAt, &cert.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(trades, &cert.Trades); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addl, &cert.AdditionalInsureds); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(coverage, &cert.Coverage); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(obligations, &cert.Obligations); err != nil {
		return nil, err
	}
	return &cert, nil
}
