package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/accesscore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type StorePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) *StorePG {
	return &StorePG{pool: pool}
}

func (r *StorePG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const policyCols = `id, patient_id, granted_to, document_type, scope, authorized_clinic,
	specialties, duration, expires_at, management, active, created_at, reference`

func scanPolicy(row pgx.Row) (*AccessPolicy, error) {
	var p AccessPolicy
	var specialties *string
	err := row.Scan(
		&p.ID, &p.PatientID, &p.GrantedTo, &p.DocumentType, &p.Scope, &p.AuthorizedClinic,
		&specialties, &p.Duration, &p.ExpiresAt, &p.Management, &p.Active, &p.CreatedAt, &p.Reference,
	)
	if err != nil {
		return nil, err
	}
	if specialties != nil {
		p.Specialties = ParseSpecialties(*specialties)
	}
	return &p, nil
}

func (r *StorePG) Create(ctx context.Context, p *AccessPolicy) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.GrantedTo == "" {
		p.GrantedTo = GrantedToAny
	}
	var specialties *string
	if encoded := EncodeSpecialties(p.Specialties); encoded != "" {
		specialties = &encoded
	}
	q := fmt.Sprintf(`INSERT INTO access_policy (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, policyCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		p.ID, p.PatientID, p.GrantedTo, p.DocumentType, p.Scope, p.AuthorizedClinic,
		specialties, p.Duration, p.ExpiresAt, p.Management, p.Active, p.CreatedAt, p.Reference,
	)
	return err
}

func (r *StorePG) GetByID(ctx context.Context, id uuid.UUID) (*AccessPolicy, error) {
	q := fmt.Sprintf("SELECT %s FROM access_policy WHERE id = $1", policyCols)
	p, err := scanPolicy(r.conn(ctx).QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *StorePG) ListActiveByPatient(ctx context.Context, patientID string) ([]*AccessPolicy, error) {
	q := fmt.Sprintf(`SELECT %s FROM access_policy
		WHERE patient_id = $1 AND active
		AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at`, policyCols)
	rows, err := r.conn(ctx).Query(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*AccessPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *StorePG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessPolicy, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM access_policy WHERE patient_id = $1", patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM access_policy WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, policyCols)
	rows, err := r.conn(ctx).Query(ctx, q, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*AccessPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *StorePG) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "UPDATE access_policy SET active = FALSE WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StorePG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM access_policy WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
