package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"auth-service/internal/domain/user"
)

const uniqueViolation = "23505"

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	query := `
        INSERT INTO users (email, password_hash, role)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	err := r.db.QueryRowContext(ctx, query, u.Email, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt)
	return mapUniqueViolation(err)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `
        SELECT id, email, password_hash, role, reset_token, reset_token_expire, created_at
        FROM users WHERE email = $1
    `
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `
        SELECT id, email, password_hash, role, reset_token, reset_token_expire, created_at
        FROM users WHERE id = $1
    `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepo) GetByResetToken(ctx context.Context, token string, now time.Time) (*user.User, error) {
	query := `
        SELECT id, email, password_hash, role, reset_token, reset_token_expire, created_at
        FROM users WHERE reset_token = $1 AND reset_token_expire > $2
    `
	return r.scanOne(r.db.QueryRowContext(ctx, query, token, now))
}

func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	query := `
        UPDATE users
        SET email = $1, password_hash = $2, role = $3,
            reset_token = $4, reset_token_expire = $5
        WHERE id = $6
    `
	res, err := r.db.ExecContext(ctx, query,
		u.Email, u.PasswordHash, u.Role, u.ResetToken, u.ResetTokenExpire, u.ID)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return requireAffected(res)
}

func (r *UserRepo) DeleteByEmail(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE email = $1`, email)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *UserRepo) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *UserRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users`)
	return err
}

func (r *UserRepo) ListByRole(ctx context.Context, role string) ([]user.User, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, email, password_hash, role, reset_token, reset_token_expire, created_at
        FROM users WHERE role = $1 ORDER BY id
    `, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usersList []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role,
			&u.ResetToken, &u.ResetTokenExpire, &u.CreatedAt); err != nil {
			return nil, err
		}
		usersList = append(usersList, u)
	}
	return usersList, rows.Err()
}

func (r *UserRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE users
        SET reset_token = NULL, reset_token_expire = NULL
        WHERE reset_token_expire IS NOT NULL AND reset_token_expire <= $1
    `, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepo) scanOne(row *sql.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&u.ResetToken, &u.ResetTokenExpire, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return user.ErrEmailTaken
	}
	return err
}
