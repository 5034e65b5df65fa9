package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/controlplane/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

const timeFormat = "2006-01-02T15:04:05.000Z"

// Store owns the SQLite connection shared by the registration and tenant
// repositories (and, through DB, the River queue).
type Store struct {
	db *sql.DB
}

var openDB = func(dataSourceName string) (*sql.DB, error) {
	return sql.Open("sqlite", dataSourceName)
}

// New opens a SQLite database, runs migrations, and returns a ready store.
// The connection is closed again if any step fails.
func New(dataSourceName string) (*Store, error) {
	db, err := openDB(dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: an in-memory database exists per connection, and
	// writers never contend for the file lock.
	db.SetMaxOpenConns(1)

	store, err := setup(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func setup(db *sql.DB) (*Store, error) {
	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready store.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
// The caller keeps ownership of db.
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Registrations returns the registration repository backed by this store.
func (s *Store) Registrations() *RegistrationRepository {
	return &RegistrationRepository{db: s.db}
}

// Tenants returns the tenant repository backed by this store. nameColumn
// is the attribute FindByName matches on.
func (s *Store) Tenants(nameColumn string) *TenantRepository {
	return &TenantRepository{db: s.db, nameColumn: nameColumn}
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// pageQuery runs a keyset-paginated scan. It fetches one extra row to know
// whether another page exists, so the last page never carries a token.
func pageQuery[T any](ctx context.Context, db *sql.DB, base string, page domain.PageRequest, scan func(*sql.Rows) (T, string, error)) (domain.Page[T], error) {
	rows, err := db.QueryContext(ctx, base+` WHERE id > ? ORDER BY id LIMIT ?`, page.Token, page.Limit+1)
	if err != nil {
		return domain.Page[T]{}, err
	}
	defer rows.Close()

	var (
		out  domain.Page[T]
		keys []string
	)
	for rows.Next() {
		item, key, err := scan(rows)
		if err != nil {
			return domain.Page[T]{}, err
		}
		out.Items = append(out.Items, item)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[T]{}, err
	}

	if len(out.Items) > page.Limit {
		out.Items = out.Items[:page.Limit]
		out.NextToken = keys[page.Limit-1]
	}
	return out, nil
}

func encodeAttributes(a domain.Attributes) (string, error) {
	if a == nil {
		a = domain.Attributes{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", &domain.ValidationError{Field: "attributes", Reason: "must be JSON serializable"}
	}
	return string(b), nil
}

func decodeAttributes(s string) (domain.Attributes, error) {
	a := domain.Attributes{}
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}
	return a, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
