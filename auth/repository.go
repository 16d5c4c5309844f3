package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound signals that the user does not exist or is disabled.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

// IdentityResolver resolves the active identity behind a token subject.
type IdentityResolver interface {
	FindActiveByEmail(ctx context.Context, email string) (User, error)
}

// Repository handles data access for authentication.
type Repository interface {
	IdentityResolver
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	FindActiveByID(ctx context.Context, id int64) (User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	Email         string
	Nom           string
	Prenom        string
	Telephone     string
	PasswordHash  string
	Role          Role
	RegionID      *int64
	SupervisionID *int64
	BranchID      *int64
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed auth repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, nom, prenom, telephone, password_hash, role, active,
	region_id, supervision_id, branch_id, created_at, last_login_at`

// CreateUser inserts a new active user with a hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	const insertSQL = `
		INSERT INTO users (email, nom, prenom, telephone, password_hash, role, active,
			region_id, supervision_id, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, $9)
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL,
		params.Email, params.Nom, params.Prenom, params.Telephone, params.PasswordHash, params.Role,
		params.RegionID, params.SupervisionID, params.BranchID,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}

	return user, nil
}

// FindActiveByEmail retrieves an active user by email address.
func (r *PGRepository) FindActiveByEmail(ctx context.Context, email string) (User, error) {
	const selectSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND active`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: find user by email: %w", err)
	}

	return user, nil
}

// FindActiveByID retrieves an active user by ID.
func (r *PGRepository) FindActiveByID(ctx context.Context, id int64) (User, error) {
	const selectSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND active`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: find user by id: %w", err)
	}

	return user, nil
}

// TouchLastLogin records the time of a successful login.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	const updateSQL = `UPDATE users SET last_login_at = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, updateSQL, id, at)
	if err != nil {
		return fmt.Errorf("auth: touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Nom,
		&user.Prenom,
		&user.Telephone,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.RegionID,
		&user.SupervisionID,
		&user.BranchID,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
