package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/contact-sync/internal/model"
)

// SaveReconciledRecords replaces the stored result of a session.
func (s *SQLiteStorage) SaveReconciledRecords(ctx context.Context, sessionID string, records []model.ReconciledRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}
	if err := validateRecords(records); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reconciled_records WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("failed to clear reconciled records: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO reconciled_records
			(session_id, source_row, final_name, final_phone, identity_id, provenance, attributes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range records {
			attrs, err := json.Marshal(r.SourceAttributes)
			if err != nil {
				return fmt.Errorf("failed to encode attributes for row %d: %w", r.SourceRowIndex, err)
			}
			if _, err := stmt.ExecContext(ctx,
				sessionID,
				r.SourceRowIndex,
				r.FinalName,
				r.FinalPhone,
				r.IdentityID,
				string(r.Provenance),
				string(attrs),
			); err != nil {
				return fmt.Errorf("failed to save reconciled record for row %d: %w", r.SourceRowIndex, err)
			}
		}
		return nil
	})
}

// GetReconciledRecords returns a session's records ordered by source row.
func (s *SQLiteStorage) GetReconciledRecords(ctx context.Context, sessionID string) ([]model.ReconciledRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_row, final_name, final_phone, identity_id, provenance, attributes
		FROM reconciled_records
		WHERE session_id = ?
		ORDER BY source_row
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciled records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.ReconciledRecord
	for rows.Next() {
		var r model.ReconciledRecord
		var provenance, attrs string
		if err := rows.Scan(&r.SourceRowIndex, &r.FinalName, &r.FinalPhone, &r.IdentityID, &provenance, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan reconciled record: %w", err)
		}
		r.Provenance = model.Provenance(provenance)
		if err := json.Unmarshal([]byte(attrs), &r.SourceAttributes); err != nil {
			return nil, fmt.Errorf("failed to decode attributes for row %d: %w", r.SourceRowIndex, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reconciled records: %w", err)
	}
	return records, nil
}
