package reminder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/db"
)

const uniquePrescriptionMedication = "reminders_prescription_medication_key"

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

const reminderCols = `id, user_id, prescription_id, medication_index, title, message, message_telugu,
	frequency, times, status, total_acknowledged, created_at`

func (r *repoPG) Create(ctx context.Context, rm *Reminder) error {
	rm.ID = uuid.New()
	times, err := json.Marshal(rm.Times)
	if err != nil {
		return fmt.Errorf("encode times: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO reminders (id, user_id, prescription_id, medication_index, title, message, message_telugu,
			frequency, times, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING total_acknowledged, created_at`,
		rm.ID, rm.UserID, rm.PrescriptionID, rm.MedicationIndex, rm.Title, rm.Message, rm.MessageTelugu,
		rm.Frequency, times, rm.Status,
	).Scan(&rm.TotalAcknowledged, &rm.CreatedAt)
	if db.IsUniqueViolation(err, uniquePrescriptionMedication) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (r *repoPG) GetByOwner(ctx context.Context, id, userID uuid.UUID) (*Reminder, error) {
	rm, err := scanReminder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE id = $1 AND user_id = $2`, id, userID))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return rm, err
}

func (r *repoPG) ListByOwner(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Reminder, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM reminders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reminderCols+` FROM reminders
		WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*Reminder, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reminderCols+` FROM reminders
		WHERE prescription_id = $1 ORDER BY medication_index NULLS LAST, created_at`, prescriptionID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) Acknowledge(ctx context.Context, id, userID uuid.UUID) (int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE reminders SET total_acknowledged = total_acknowledged + 1
		WHERE id = $1 AND user_id = $2
		RETURNING total_acknowledged`, id, userID).Scan(&total)
	if db.IsNoRows(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("acknowledge reminder: %w", err)
	}
	return total, nil
}

func (r *repoPG) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM reminders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]*Reminder, error) {
	defer rows.Close()
	var items []*Reminder
	for rows.Next() {
		rm, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rm)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReminder(row scanner) (*Reminder, error) {
	var rm Reminder
	var times []byte
	err := row.Scan(&rm.ID, &rm.UserID, &rm.PrescriptionID, &rm.MedicationIndex, &rm.Title, &rm.Message,
		&rm.MessageTelugu, &rm.Frequency, &times, &rm.Status, &rm.TotalAcknowledged, &rm.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(times, &rm.Times); err != nil {
		return nil, fmt.Errorf("decode times: %w", err)
	}
	return &rm, nil
}
