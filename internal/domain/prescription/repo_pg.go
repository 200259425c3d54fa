package prescription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/db"
)

// uniqueUserDiagnosis is the constraint that makes generation idempotent
// under concurrency.
const uniqueUserDiagnosis = "prescriptions_user_diagnosis_key"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const rxCols = `id, user_id, diagnosis_id, severity, medications, lifestyle_recommendations,
	follow_up_instructions, reasoning, status, doctor_id, doctor_notes, approved_at, created_at`

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	meds, err := json.Marshal(p.Medications)
	if err != nil {
		return fmt.Errorf("encode medications: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (
			id, user_id, diagnosis_id, severity, medications, lifestyle_recommendations,
			follow_up_instructions, reasoning, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		p.ID, p.UserID, p.DiagnosisID, p.Severity, meds, p.LifestyleRecommendations,
		p.FollowUpInstructions, p.Reasoning, p.Status,
	).Scan(&p.CreatedAt)
	if db.IsUniqueViolation(err, uniqueUserDiagnosis) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) GetByUserAndDiagnosis(ctx context.Context, userID, diagnosisID uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE user_id = $1 AND diagnosis_id = $2`, userID, diagnosisID))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	var where []string
	var args []interface{}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM prescriptions%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		rxCols, clause, len(args)-1, len(args))
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) (*Prescription, bool, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions
		SET status = $2, doctor_id = $3, doctor_notes = $4, approved_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+rxCols,
		id, u.Status, u.DoctorID, u.Notes, u.At))
	if db.IsNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("update prescription status: %w", err)
	}
	return p, true, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPrescription(row scanner) (*Prescription, error) {
	var p Prescription
	var meds []byte
	err := row.Scan(&p.ID, &p.UserID, &p.DiagnosisID, &p.Severity, &meds, &p.LifestyleRecommendations,
		&p.FollowUpInstructions, &p.Reasoning, &p.Status, &p.DoctorID, &p.DoctorNotes, &p.ApprovedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meds, &p.Medications); err != nil {
		return nil, fmt.Errorf("decode medications: %w", err)
	}
	return &p, nil
}
