package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"civicportal/internal/guard"
	"civicportal/internal/records/models"
	"civicportal/internal/sentinel"
	id "civicportal/pkg/domain"
)

// PostgresStore persists records in one table per kind. Table names come
// from models.Kind and are checked against the known kinds before use.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, tenant_id, title, body, category, status, latitude, longitude, address, channel, created_by, created_at, updated_at`

func tableFor(kind models.Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown record kind %q: %w", kind, sentinel.ErrBadRequest)
	}
	return string(kind), nil
}

func (s *PostgresStore) Create(ctx context.Context, scope guard.Scope, r *models.Record) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	table, err := tableFor(r.Kind)
	if err != nil {
		return err
	}
	var lat, lng sql.NullFloat64
	if r.Location != nil {
		lat = sql.NullFloat64{Float64: r.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: r.Location.Lng, Valid: true}
	}
	query := `
		INSERT INTO ` + table + ` (tenant_id, title, body, category, status, latitude, longitude, address, channel, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	var recordID int64
	err = s.db.QueryRowContext(ctx, query,
		uuid.UUID(scope.TenantID()),
		r.Title,
		r.Body,
		r.Category,
		string(r.Status),
		lat,
		lng,
		r.Address,
		r.Channel,
		nullableUser(r.CreatedBy),
		r.CreatedAt,
		r.UpdatedAt,
	).Scan(&recordID)
	if err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	r.ID = id.RecordID(recordID)
	r.TenantID = scope.TenantID()
	return nil
}

func (s *PostgresStore) TenantOf(ctx context.Context, kind models.Kind, recordID id.RecordID) (id.TenantID, error) {
	table, err := tableFor(kind)
	if err != nil {
		return id.TenantID{}, err
	}
	var tenantID uuid.UUID
	err = s.db.QueryRowContext(ctx, `SELECT tenant_id FROM `+table+` WHERE id = $1`, int64(recordID)).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.TenantID{}, sentinel.ErrNotFound
		}
		return id.TenantID{}, fmt.Errorf("tenant of %s: %w", table, err)
	}
	return id.TenantID(tenantID), nil
}

func (s *PostgresStore) FindScoped(ctx context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID) (*models.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.FindByTenant(ctx, scope.TenantID(), kind, recordID)
}

func (s *PostgresStore) FindByTenant(ctx context.Context, tenantID id.TenantID, kind models.Kind, recordID id.RecordID) (*models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + recordColumns + ` FROM ` + table + ` WHERE id = $1 AND tenant_id = $2`
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, int64(recordID), uuid.UUID(tenantID)), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	return r, nil
}

// UpdateStatus writes status and updated_at in one statement filtered by the
// scope's tenant. Zero affected rows is ErrNotFound.
func (s *PostgresStore) UpdateStatus(ctx context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID, status models.Status, at time.Time) (*models.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	predicate, tenantArg := scope.Predicate(4)
	query := `UPDATE ` + table + ` SET status = $1, updated_at = $2 WHERE id = $3 AND ` + predicate + ` RETURNING ` + recordColumns
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, string(status), at, int64(recordID), tenantArg), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update %s status: %w", table, err)
	}
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, scope guard.Scope, kind models.Kind, recordID id.RecordID) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	predicate, tenantArg := scope.Predicate(2)
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1 AND `+predicate, int64(recordID), tenantArg)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID, kind models.Kind, statuses []models.Status) ([]*models.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + recordColumns + ` FROM ` + table + ` WHERE tenant_id = $1`
	args := []any{uuid.UUID(tenantID)}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			args = append(args, string(st))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return s.query(ctx, kind, query, args...)
}

func (s *PostgresStore) ListScoped(ctx context.Context, scope guard.Scope, kind models.Kind, statuses []models.Status) ([]*models.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.ListByTenant(ctx, scope.TenantID(), kind, statuses)
}

func (s *PostgresStore) CountByStatus(ctx context.Context, scope guard.Scope, kind models.Kind) (map[models.Status]int, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	predicate, tenantArg := scope.Predicate(1)
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM `+table+` WHERE `+predicate+` GROUP BY status`, tenantArg)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) ListLocated(ctx context.Context, tenantID id.TenantID, limit int) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM service_requests
		WHERE tenant_id = $1 AND latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	return s.query(ctx, models.KindServiceRequests, query, uuid.UUID(tenantID), limit)
}

func (s *PostgresStore) query(ctx context.Context, kind models.Kind, query string, args ...any) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	out := make([]*models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, kind models.Kind) (*models.Record, error) {
	var (
		r         models.Record
		recordID  int64
		tenantID  uuid.UUID
		status    string
		lat, lng  sql.NullFloat64
		createdBy uuid.NullUUID
	)
	if err := row.Scan(
		&recordID,
		&tenantID,
		&r.Title,
		&r.Body,
		&r.Category,
		&status,
		&lat,
		&lng,
		&r.Address,
		&r.Channel,
		&createdBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.ID = id.RecordID(recordID)
	r.Kind = kind
	r.TenantID = id.TenantID(tenantID)
	r.Status = models.Status(status)
	if lat.Valid && lng.Valid {
		r.Location = &models.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	if createdBy.Valid {
		r.CreatedBy = id.UserID(createdBy.UUID)
	}
	return &r, nil
}

func nullableUser(userID id.UserID) uuid.NullUUID {
	if userID.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(userID), Valid: true}
}
