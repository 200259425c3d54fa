package identity

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

const uniqueEmail = "users_email_key"

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

const userCols = `id, email, password_hash, full_name, phone, date_of_birth, gender,
	skin_type, role, preferences, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	prefs, err := json.Marshal(u.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, phone, date_of_birth, gender, skin_type, role, preferences)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Phone, u.DateOfBirth, u.Gender, u.SkinType, u.Role, prefs,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err, uniqueEmail) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return u, err
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return u, err
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	prefs, err := json.Marshal(u.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET full_name = $2, phone = $3, date_of_birth = $4, gender = $5,
			skin_type = $6, preferences = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.FullName, u.Phone, u.DateOfBirth, u.Gender, u.SkinType, prefs,
	).Scan(&u.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*User, error) {
	var u User
	var prefs []byte
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.DateOfBirth, &u.Gender,
		&u.SkinType, &u.Role, &prefs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	if u.Preferences == nil {
		u.Preferences = map[string]interface{}{}
	}
	return &u, nil
}
