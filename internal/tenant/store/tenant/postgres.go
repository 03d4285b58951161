package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"civicportal/internal/sentinel"
	"civicportal/internal/tenant/models"
	id "civicportal/pkg/domain"
)

// PostgresStore reads tenants from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `id, subdomain, name, primary_color, logo_url, contact_email, locale, created_at, updated_at`

// Create inserts a tenant. Used by seeding; the portal never edits tenants.
func (s *PostgresStore) Create(ctx context.Context, t *models.Tenant) error {
	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(t.ID),
		models.NormalizeSubdomain(t.Subdomain),
		t.Name,
		t.Branding.PrimaryColor,
		t.Branding.LogoURL,
		t.Branding.ContactEmail,
		t.Branding.Locale,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subdomain taken: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return s.findOne(ctx, "find tenant by id", query, uuid.UUID(tenantID))
}

func (s *PostgresStore) FindBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE lower(subdomain) = $1`
	return s.findOne(ctx, "find tenant by subdomain", query, subdomain)
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, arg any) (*models.Tenant, error) {
	var (
		t        models.Tenant
		tenantID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&tenantID,
		&t.Subdomain,
		&t.Name,
		&t.Branding.PrimaryColor,
		&t.Branding.LogoURL,
		&t.Branding.ContactEmail,
		&t.Branding.Locale,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.ID = id.TenantID(tenantID)
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
