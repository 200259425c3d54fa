package diagnosis

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

const diagCols = `id, user_id, severity, confidence, severity_scores, lesion_counts,
	acne_type, affected_areas, clinical_notes, recommended_urgency, image_key,
	clinical_metadata, created_at`

func (r *repoPG) Create(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	scores, err := json.Marshal(d.SeverityScores)
	if err != nil {
		return fmt.Errorf("encode severity scores: %w", err)
	}
	counts, err := json.Marshal(d.LesionCounts)
	if err != nil {
		return fmt.Errorf("encode lesion counts: %w", err)
	}
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("encode clinical metadata: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnoses (
			id, user_id, severity, confidence, severity_scores, lesion_counts,
			acne_type, affected_areas, clinical_notes, recommended_urgency, image_key,
			clinical_metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at`,
		d.ID, d.UserID, d.Severity, d.Confidence, scores, counts,
		d.AcneType, d.AffectedAreas, d.ClinicalNotes, d.RecommendedUrgency, d.ImageKey,
		meta,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert diagnosis: %w", err)
	}
	d.ImageURL = imageURL(d.ID)
	return nil
}

func (r *repoPG) GetByOwner(ctx context.Context, id, userID uuid.UUID) (*Diagnosis, error) {
	d, err := scanDiagnosis(r.conn(ctx).QueryRow(ctx,
		`SELECT `+diagCols+` FROM diagnoses WHERE id = $1 AND user_id = $2`, id, userID))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return d, err
}

func (r *repoPG) ListByOwner(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Diagnosis, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM diagnoses WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+diagCols+` FROM diagnoses WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Diagnosis
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDiagnosis(row scanner) (*Diagnosis, error) {
	var d Diagnosis
	var scores, counts, meta []byte
	var acneType *string
	err := row.Scan(&d.ID, &d.UserID, &d.Severity, &d.Confidence, &scores, &counts,
		&acneType, &d.AffectedAreas, &d.ClinicalNotes, &d.RecommendedUrgency, &d.ImageKey,
		&meta, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if acneType != nil {
		d.AcneType = *acneType
	}
	if err := json.Unmarshal(scores, &d.SeverityScores); err != nil {
		return nil, fmt.Errorf("decode severity scores: %w", err)
	}
	if err := json.Unmarshal(counts, &d.LesionCounts); err != nil {
		return nil, fmt.Errorf("decode lesion counts: %w", err)
	}
	d.Metadata = DefaultMetadata()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode clinical metadata: %w", err)
		}
	}
	d.ImageURL = imageURL(d.ID)
	return &d, nil
}
