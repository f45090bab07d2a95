package accessrequest

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

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const requestCols = `id, requester_id, requester_specialty, patient_id, document_type,
	document_id, reason, requesting_clinic, status, submitted_at,
	resolved_at, resolved_by, resolution_comment`

func scanRequest(row pgx.Row) (*AccessRequest, error) {
	var a AccessRequest
	err := row.Scan(
		&a.ID, &a.RequesterID, &a.RequesterSpecialty, &a.PatientID, &a.DocumentType,
		&a.DocumentID, &a.Reason, &a.RequestingClinic, &a.Status, &a.SubmittedAt,
		&a.ResolvedAt, &a.ResolvedBy, &a.ResolutionComment,
	)
	return &a, err
}

func (r *RepoPG) Create(ctx context.Context, a *AccessRequest) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now().UTC()
	}
	a.Status = StatusPending
	q := fmt.Sprintf(`INSERT INTO access_request (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, requestCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		a.ID, a.RequesterID, a.RequesterSpecialty, a.PatientID, a.DocumentType,
		a.DocumentID, a.Reason, a.RequestingClinic, a.Status, a.SubmittedAt,
		a.ResolvedAt, a.ResolvedBy, a.ResolutionComment,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error) {
	q := fmt.Sprintf("SELECT %s FROM access_request WHERE id = $1", requestCols)
	a, err := scanRequest(r.conn(ctx).QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *RepoPG) Resolve(ctx context.Context, id uuid.UUID, status Status, resolvedBy, comment string, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE access_request
		SET status = $2, resolved_by = $3, resolution_comment = $4, resolved_at = $5
		WHERE id = $1 AND status = 'PENDING'`,
		id, status, resolvedBy, comment, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*AccessRequest, int, error) {
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM access_request WHERE %s", where)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM access_request WHERE %s ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d",
		requestCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*AccessRequest
	for rows.Next() {
		a, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *RepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessRequest, int, error) {
	return r.list(ctx, "patient_id = $1", []interface{}{patientID}, limit, offset)
}

func (r *RepoPG) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*AccessRequest, int, error) {
	return r.list(ctx, "requester_id = $1", []interface{}{requesterID}, limit, offset)
}

func (r *RepoPG) ListPending(ctx context.Context, limit, offset int) ([]*AccessRequest, int, error) {
	return r.list(ctx, "status = 'PENDING'", nil, limit, offset)
}

func (r *RepoPG) ListPendingForPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessRequest, int, error) {
	return r.list(ctx, "status = 'PENDING' AND patient_id = $1", []interface{}{patientID}, limit, offset)
}
