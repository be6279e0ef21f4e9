package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/service"
)

// CreateSession opens a reconciliation session for an import batch.
func (s *SQLiteStorage) CreateSession(ctx context.Context, source, fingerprint string) (*service.Session, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(source, "source"); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}

	session := &service.Session{
		ID:          uuid.NewString(),
		Source:      source,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, source, fingerprint, created_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.Source, session.Fingerprint, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSessionByFingerprint returns the newest unfinished session for a batch.
func (s *SQLiteStorage) GetSessionByFingerprint(ctx context.Context, fingerprint string) (*service.Session, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}

	var session service.Session
	var completed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, fingerprint, created_at, completed_at
		FROM sessions
		WHERE fingerprint = ? AND completed_at IS NULL
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, fingerprint).Scan(&session.ID, &session.Source, &session.Fingerprint, &session.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: open session for fingerprint", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if completed.Valid {
		session.CompletedAt = &completed.Time
	}
	return &session, nil
}

// CompleteSession marks a session finished so it is no longer resumed.
func (s *SQLiteStorage) CompleteSession(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET completed_at = ? WHERE id = ?
	`, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return requireAffected(result, "session", sessionID)
}

// SaveResolution stores the decision for one cluster, replacing any earlier one.
func (s *SQLiteStorage) SaveResolution(ctx context.Context, sessionID string, decision model.SavedDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}
	if err := validateDecision(decision); err != nil {
		return err
	}

	res := decision.Resolution
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_resolutions (session_id, cluster_key, conflict_index, action, manual_name, manual_phone, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, cluster_key) DO UPDATE SET
			conflict_index = excluded.conflict_index,
			action = excluded.action,
			manual_name = excluded.manual_name,
			manual_phone = excluded.manual_phone,
			resolved_at = excluded.resolved_at
	`, sessionID, decision.ClusterKey, res.RecordIndex, res.Action.String(), res.ManualName, res.ManualPhone, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save resolution: %w", err)
	}
	return nil
}

// GetResolutions returns a session's decisions in the order the conflicts
// were numbered when they were made.
func (s *SQLiteStorage) GetResolutions(ctx context.Context, sessionID string) ([]model.SavedDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_key, conflict_index, action, manual_name, manual_phone
		FROM session_resolutions
		WHERE session_id = ?
		ORDER BY conflict_index, cluster_key
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.SavedDecision
	for rows.Next() {
		var d model.SavedDecision
		var action string
		res := &d.Resolution
		if err := rows.Scan(&d.ClusterKey, &res.RecordIndex, &action, &res.ManualName, &res.ManualPhone); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		if res.Action, err = model.ParseAction(action); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrDatabaseCorrupted, err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolutions: %w", err)
	}
	return decisions, nil
}
