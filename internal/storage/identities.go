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
	"github.com/Veraticus/contact-sync/internal/normalize"
)

// LocationFields are the attributes copied into Identity.Location, in order.
var LocationFields = []string{"Location", "location", "City", "city", "Address", "address"}

// ExternalRefFields are the attributes copied into Identity.ExternalRef, in order.
var ExternalRefFields = []string{"Customer ID", "customer_id", "Ref", "ref", "Reference", "reference"}

const identityColumns = `id, name, phone, location, external_ref, created_at`

// ListAllIdentities returns the whole registry in insertion order.
func (s *SQLiteStorage) ListAllIdentities(ctx context.Context) ([]model.Identity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var identities []model.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identities: %w", err)
	}
	return identities, nil
}

// GetIdentity retrieves one identity by ID.
func (s *SQLiteStorage) GetIdentity(ctx context.Context, id string) (*model.Identity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return getIdentityTx(ctx, s.db, `WHERE id = ?`, id)
}

// CreateIdentity registers a new identity. The name is stored sanitized and
// the phone as digits. A name or phone already in the registry yields a
// *common.DuplicateConflictError naming the existing identity.
func (s *SQLiteStorage) CreateIdentity(ctx context.Context, name, phone string, attrs model.Attributes) (*model.Identity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	name = normalize.Sanitize(name)
	key := normalize.Name(name)
	var errs []error
	if key == "" {
		errs = append(errs, common.NewValidationError("name", "empty"))
	}
	if err := normalize.PhoneError(phone); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	identity := &model.Identity{
		ID:          uuid.NewString(),
		Name:        name,
		Phone:       normalize.Phone(phone),
		Location:    firstAttribute(attrs, LocationFields),
		ExternalRef: firstAttribute(attrs, ExternalRefFields),
		CreatedAt:   time.Now().UTC(),
	}

	s.identityMu.Lock()
	defer s.identityMu.Unlock()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkDuplicates(ctx, tx, identity.ID, key, identity.Phone); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO identities (id, name, name_key, phone, location, external_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, identity.ID, identity.Name, key, identity.Phone, identity.Location, identity.ExternalRef, identity.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// UpdateIdentityPhone replaces an identity's phone after validating it and
// checking no other identity uses it.
func (s *SQLiteStorage) UpdateIdentityPhone(ctx context.Context, id, phone string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := normalize.PhoneError(phone); err != nil {
		return err
	}
	digits := normalize.Phone(phone)

	s.identityMu.Lock()
	defer s.identityMu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkDuplicates(ctx, tx, id, "", digits); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `UPDATE identities SET phone = ? WHERE id = ?`, digits, id)
		if err != nil {
			return fmt.Errorf("failed to update identity phone: %w", err)
		}
		return requireAffected(result, "identity", id)
	})
}

// DeleteIdentity removes an identity.
func (s *SQLiteStorage) DeleteIdentity(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	s.identityMu.Lock()
	defer s.identityMu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return requireAffected(result, "identity", id)
}

// checkDuplicates rejects a name key or phone held by an identity other than
// selfID. An empty key or phone is not checked.
func checkDuplicates(ctx context.Context, q queryable, selfID, key, phone string) error {
	if key != "" {
		existing, err := getIdentityTx(ctx, q, `WHERE name_key = ? AND id != ? ORDER BY rowid LIMIT 1`, key, selfID)
		if err == nil {
			return &common.DuplicateConflictError{Field: "name", Existing: *existing}
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}
	}
	if phone != "" {
		existing, err := getIdentityTx(ctx, q, `WHERE phone = ? AND id != ? ORDER BY rowid LIMIT 1`, phone, selfID)
		if err == nil {
			return &common.DuplicateConflictError{Field: "phone", Existing: *existing}
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}
	}
	return nil
}

func getIdentityTx(ctx context.Context, q queryable, where string, args ...any) (*model.Identity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities `+where, args...)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: identity", common.ErrNotFound)
	}
	return identity, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*model.Identity, error) {
	var identity model.Identity
	err := row.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Phone,
		&identity.Location,
		&identity.ExternalRef,
		&identity.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan identity: %w", err)
	}
	return &identity, nil
}

func requireAffected(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", common.ErrNotFound, what, id)
	}
	return nil
}

func firstAttribute(attrs model.Attributes, fields []string) string {
	for _, f := range fields {
		if v, ok := attrs.Get(f); ok && !v.IsEmpty() {
			return v.String()
		}
	}
	return ""
}
