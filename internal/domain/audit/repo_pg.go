package audit

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

const entryCols = `id, requester_id, requester_name, requester_specialty, patient_id,
	document_id, document_type, clinic_id, ip_address, user_agent,
	succeeded, denial_reason, reference, timestamp`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.RequesterID, &e.RequesterName, &e.RequesterSpecialty, &e.PatientID,
		&e.DocumentID, &e.DocumentType, &e.ClinicID, &e.IPAddress, &e.UserAgent,
		&e.Succeeded, &e.DenialReason, &e.Reference, &e.Timestamp,
	)
	return &e, err
}

func (r *RepoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	q := fmt.Sprintf(`INSERT INTO access_audit (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`, entryCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		e.ID, e.RequesterID, e.RequesterName, e.RequesterSpecialty, e.PatientID,
		e.DocumentID, e.DocumentType, e.ClinicID, e.IPAddress, e.UserAgent,
		e.Succeeded, e.DenialReason, e.Reference, e.Timestamp,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q := fmt.Sprintf("SELECT %s FROM access_audit WHERE id = $1", entryCols)
	return scanEntry(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Entry, int, error) {
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM access_audit WHERE %s", where)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM access_audit WHERE %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d",
		entryCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *RepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "patient_id = $1", []interface{}{patientID}, limit, offset)
}

func (r *RepoPG) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "requester_id = $1", []interface{}{requesterID}, limit, offset)
}

func (r *RepoPG) ListByDocument(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "document_id = $1", []interface{}{documentID}, limit, offset)
}

func (r *RepoPG) ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "timestamp >= $1 AND timestamp < $2", []interface{}{from, to}, limit, offset)
}

const outcomeSums = `COALESCE(SUM(CASE WHEN succeeded THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN succeeded THEN 0 ELSE 1 END), 0)`

func (r *RepoPG) CountsPerDay(ctx context.Context, from, to time.Time) ([]DayCount, error) {
	q := fmt.Sprintf(`SELECT date_trunc('day', timestamp) AS day, %s
		FROM access_audit WHERE timestamp >= $1 AND timestamp < $2
		GROUP BY day ORDER BY day`, outcomeSums)
	rows, err := r.conn(ctx).Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var c DayCount
		if err := rows.Scan(&c.Day, &c.Succeeded, &c.Denied); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *RepoPG) countsBy(ctx context.Context, keyExpr string, from, to time.Time) ([]KeyCount, error) {
	q := fmt.Sprintf(`SELECT %s AS key, %s
		FROM access_audit WHERE timestamp >= $1 AND timestamp < $2
		GROUP BY key ORDER BY COUNT(*) DESC, key`, keyExpr, outcomeSums)
	rows, err := r.conn(ctx).Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeyCount
	for rows.Next() {
		var c KeyCount
		if err := rows.Scan(&c.Key, &c.Succeeded, &c.Denied); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *RepoPG) CountsPerRequester(ctx context.Context, from, to time.Time) ([]KeyCount, error) {
	return r.countsBy(ctx, "requester_id", from, to)
}

func (r *RepoPG) CountsPerPatient(ctx context.Context, from, to time.Time) ([]KeyCount, error) {
	return r.countsBy(ctx, "patient_id", from, to)
}

func (r *RepoPG) CountsPerDocumentType(ctx context.Context, from, to time.Time) ([]KeyCount, error) {
	return r.countsBy(ctx, "COALESCE(NULLIF(document_type, ''), 'UNKNOWN')", from, to)
}
