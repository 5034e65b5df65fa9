package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: RegistrationRepository implements domain.RegistrationRepository.
var _ domain.RegistrationRepository = (*RegistrationRepository)(nil)

// RegistrationRepository implements domain.RegistrationRepository using SQLite.
type RegistrationRepository struct {
	db *sql.DB
}

const registrationColumns = `SELECT id, active, tenant_id, status, attributes FROM tenant_registrations`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RegistrationRepository) Create(ctx context.Context, reg domain.Registration) error {
	attrs, err := encodeAttributes(reg.Attributes)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(timeFormat)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tenant_registrations (id, active, tenant_id, status, attributes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reg.ID, reg.Active, nullString(reg.TenantID), string(reg.LifecycleStatus()), attrs, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrRegistrationExists, reg.ID)
		}
		return fmt.Errorf("inserting registration: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) Get(ctx context.Context, id string) (domain.Registration, error) {
	return scanRegistration(r.db.QueryRowContext(ctx, registrationColumns+` WHERE id = ?`, id))
}

func (r *RegistrationRepository) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Registration], error) {
	out, err := pageQuery(ctx, r.db, registrationColumns, page, func(rows *sql.Rows) (domain.Registration, string, error) {
		reg, err := scanRegistration(rows)
		return reg, reg.ID, err
	})
	if err != nil {
		return domain.Page[domain.Registration]{}, fmt.Errorf("listing registrations: %w", err)
	}
	return out, nil
}

// Update applies patch inside a transaction: the read and the write see the
// same row, and a missing row is reported without writing anything.
func (r *RegistrationRepository) Update(ctx context.Context, id string, patch domain.Attributes) (domain.Registration, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	current, err := scanRegistration(tx.QueryRowContext(ctx, registrationColumns+` WHERE id = ?`, id))
	if err != nil {
		return domain.Registration{}, err
	}

	next, err := current.Patched(patch)
	if err != nil {
		return domain.Registration{}, err
	}
	attrs, err := encodeAttributes(next.Attributes)
	if err != nil {
		return domain.Registration{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tenant_registrations
		 SET active = ?, tenant_id = ?, status = ?, attributes = ?, updated_at = ?
		 WHERE id = ?`,
		next.Active, nullString(next.TenantID), string(next.LifecycleStatus()), attrs,
		time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("updating registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Registration{}, fmt.Errorf("committing registration update: %w", err)
	}
	next.Status = next.LifecycleStatus()
	return next, nil
}

func scanRegistration(row rowScanner) (domain.Registration, error) {
	var (
		reg      domain.Registration
		tenantID sql.NullString
		status   string
		attrs    string
	)

	err := row.Scan(&reg.ID, &reg.Active, &tenantID, &status, &attrs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Registration{}, domain.ErrRegistrationNotFound
		}
		return domain.Registration{}, fmt.Errorf("scanning registration: %w", err)
	}

	reg.TenantID = tenantID.String
	reg.Status = domain.Status(status)
	reg.Attributes, err = decodeAttributes(attrs)
	if err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
