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
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

const defaultQueryTimeout = 5 * time.Second

// Repository handles data access for user accounts.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	// UpdateProfile merges patch into the stored user atomically and returns
	// the result.
	UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (User, error)
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	FullName        string
	Email           string
	PhoneNumber     string
	PasswordHash    string
	Role            Role
	ProfilePhotoURL *string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// RepositoryOption customises a PGRepository.
type RepositoryOption func(*PGRepository)

// WithQueryTimeout bounds every repository call. Non-positive values keep the default.
func WithQueryTimeout(d time.Duration) RepositoryOption {
	return func(r *PGRepository) {
		if d > 0 {
			r.queryTimeout = d
		}
	}
}

// NewRepository creates a PostgreSQL-backed user repository.
func NewRepository(pool *pgxpool.Pool, opts ...RepositoryOption) *PGRepository {
	r := &PGRepository{pool: pool, queryTimeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const userColumns = `id, full_name, email, phone_number, password_hash, role,
		bio, skills, resume_url, resume_original_name, profile_photo_url, created_at, updated_at`

// CreateUser inserts a new user. A conflict on the case-insensitive email
// index is reported as ErrDuplicateEmail.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	const insertSQL = `
		INSERT INTO users (full_name, email, phone_number, password_hash, role, profile_photo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL,
		params.FullName, params.Email, params.PhoneNumber, params.PasswordHash, params.Role, params.ProfilePhotoURL))
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	const selectSQL = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	const selectSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by id: %w", err)
	}

	return user, nil
}

// UpdateProfile locks the row, merges patch and writes the result back in a
// single transaction so concurrent partial updates do not drop each other's
// fields.
func (r *PGRepository) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return User{}, fmt.Errorf("auth: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const lockSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	current, err := scanUser(tx.QueryRow(ctx, lockSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: lock user: %w", err)
	}

	next := patch.Apply(current)
	skills := next.Profile.Skills
	if skills == nil {
		skills = []string{}
	}

	const updateSQL = `
		UPDATE users
		SET full_name = $2,
			email = $3,
			phone_number = $4,
			bio = $5,
			skills = $6,
			resume_url = $7,
			resume_original_name = $8,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	updated, err := scanUser(tx.QueryRow(ctx, updateSQL,
		userID,
		next.FullName,
		next.Email,
		next.PhoneNumber,
		next.Profile.Bio,
		skills,
		next.Profile.ResumeURL,
		next.Profile.ResumeOriginalName,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: update profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: commit update: %w", err)
	}

	return updated, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user   User
		skills []string
	)
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.PhoneNumber,
		&user.PasswordHash,
		&user.Role,
		&user.Profile.Bio,
		&skills,
		&user.Profile.ResumeURL,
		&user.Profile.ResumeOriginalName,
		&user.Profile.ProfilePhotoURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	if skills == nil {
		skills = []string{}
	}
	user.Profile.Skills = skills
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isInvalidText matches 22P02, raised when a malformed id is compared
// against the uuid column.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
