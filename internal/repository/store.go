package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"catalog-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("product variant not found")

	// ErrVersionMismatch is returned by conditional writes when no row matches
	// the key and expected version: the row is gone or another writer won.
	ErrVersionMismatch = errors.New("no row matches id and expected version")

	ErrSlugTaken = errors.New("slug already in use")
	ErrSKUTaken  = errors.New("sku already in use")

	// ErrInvalidInput is returned when a value does not fit its column: too
	// long, out of numeric range, more decimals than stored, or failing a CHECK.
	ErrInvalidInput = errors.New("value does not fit its column")
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	// SQLSTATE class 22 covers data exceptions such as string truncation
	// (22001) and numeric overflow (22003)
	pgDataExceptionClass = "22"
)

// ProductRepository defines tenant-scoped conditional access to products
type ProductRepository interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error)
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Product, error)
	FindBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int, patch domain.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int) (*domain.Product, error)
	// BumpVersion increments the product version without checking it and
	// returns the new version.
	BumpVersion(ctx context.Context, tenantID, id uuid.UUID) (int, error)
}

// VariantRepository defines conditional access to product variants.
// Variants carry no tenant column; callers verify ownership through the
// owning product before writing.
type VariantRepository interface {
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductVariant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductVariant, error)
	FindBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error)
	Create(ctx context.Context, variant *domain.ProductVariant) error
	Update(ctx context.Context, id uuid.UUID, expectedVersion int, patch domain.VariantPatch) (*domain.ProductVariant, error)
	Delete(ctx context.Context, id uuid.UUID, expectedVersion int) (*domain.ProductVariant, error)
}

// Store groups the repositories that share one connection or transaction.
type Store interface {
	Products() ProductRepository
	Variants() VariantRepository
	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type postgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgresStore creates a Store backed by Postgres
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) conn() DBTX {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *postgresStore) Products() ProductRepository {
	return NewProductRepository(s.conn())
}

func (s *postgresStore) Variants() VariantRepository {
	return NewVariantRepository(s.conn())
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	// Nested calls join the outer transaction
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&postgresStore{db: s.db, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

// invalidInput wraps err in ErrInvalidInput when Postgres rejected the data
// rather than failing to process it, and returns nil otherwise.
func invalidInput(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	if pgErr.Code == pgCheckViolation || strings.HasPrefix(pgErr.Code, pgDataExceptionClass) {
		if pgErr.ColumnName != "" {
			return fmt.Errorf("%w: %s: %s", ErrInvalidInput, pgErr.ColumnName, pgErr.Message)
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, pgErr.Message)
	}
	return nil
}
