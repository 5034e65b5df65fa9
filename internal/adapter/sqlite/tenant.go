package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: TenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TenantRepository)(nil)

// TenantRepository implements domain.TenantRepository using SQLite.
// Tenant attributes live in a JSON column; FindByName matches on the
// configured attribute with json_extract.
type TenantRepository struct {
	db         *sql.DB
	nameColumn string
}

const tenantColumns = `SELECT id, active, attributes FROM tenants`

func (r *TenantRepository) Create(ctx context.Context, t domain.Tenant) error {
	attrs, err := encodeAttributes(t.Attributes)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(timeFormat)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, active, attributes, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Active, attrs, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %s already exists", t.ID)
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) Get(ctx context.Context, id string) (domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, tenantColumns+` WHERE id = ?`, id))
}

func (r *TenantRepository) FindByName(ctx context.Context, name string) (domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx,
		tenantColumns+` WHERE json_extract(attributes, '$."' || ? || '"') = ? ORDER BY id LIMIT 1`,
		r.nameColumn, name,
	))
}

func (r *TenantRepository) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Tenant], error) {
	out, err := pageQuery(ctx, r.db, tenantColumns, page, func(rows *sql.Rows) (domain.Tenant, string, error) {
		t, err := scanTenant(rows)
		return t, t.ID, err
	})
	if err != nil {
		return domain.Page[domain.Tenant]{}, fmt.Errorf("listing tenants: %w", err)
	}
	return out, nil
}

// Update merges patch into an existing tenant; a missing tenant is
// reported without writing anything.
func (r *TenantRepository) Update(ctx context.Context, id string, patch domain.Attributes) (domain.Tenant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	current, err := scanTenant(tx.QueryRowContext(ctx, tenantColumns+` WHERE id = ?`, id))
	if err != nil {
		return domain.Tenant{}, err
	}

	next, err := current.Patched(patch)
	if err != nil {
		return domain.Tenant{}, err
	}
	attrs, err := encodeAttributes(next.Attributes)
	if err != nil {
		return domain.Tenant{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tenants SET active = ?, attributes = ?, updated_at = ? WHERE id = ?`,
		next.Active, attrs, time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("updating tenant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Tenant{}, fmt.Errorf("committing tenant update: %w", err)
	}
	return next, nil
}

func scanTenant(row rowScanner) (domain.Tenant, error) {
	var (
		t     domain.Tenant
		attrs string
	)

	err := row.Scan(&t.ID, &t.Active, &attrs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}

	t.Attributes, err = decodeAttributes(attrs)
	if err != nil {
		return domain.Tenant{}, err
	}
	return t, nil
}
