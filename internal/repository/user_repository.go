package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/eaglebank/identity-service/shared/models"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrConcurrentUpdate = errors.New("user was modified concurrently")
	ErrStoreUnavailable = errors.New("user store unavailable")
)

//go:embed schema.sql
var schema string

// Migrate creates the users table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// UserWriteRepository is the user directory backed by PostgreSQL. Every
// update is conditional on the version read, so concurrent read-modify-write
// cycles on the same user cannot overwrite each other.
type UserWriteRepository struct {
	db *sql.DB
}

func NewUserWriteRepository(db *sql.DB) *UserWriteRepository {
	return &UserWriteRepository{db: db}
}

func (r *UserWriteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, email, gil, message_ids, version, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	var messageIDs pq.StringArray

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.Gil, &messageIDs,
		&user.Version, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storeError("failed to get user", err)
	}

	user.MessageIDs = messageIDs
	return &user, nil
}

// Update writes gil, the dedup log and the profile fields in one statement and
// bumps the version. On success user.Version holds the new version.
func (r *UserWriteRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, gil = $4, message_ids = $5,
			version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.Gil, pq.Array(user.MessageIDs),
		user.UpdatedAt, user.Version,
	)
	if err != nil {
		return storeError("failed to update user", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to check rows affected", err)
	}
	if rows == 0 {
		return r.missOrConflict(ctx, user.ID)
	}

	user.Version++
	return nil
}

// missOrConflict tells a deleted user apart from a stale version.
func (r *UserWriteRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return storeError("failed to check user", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return ErrConcurrentUpdate
}

func (r *UserWriteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// storeError maps driver errors onto the repository sentinels.
func storeError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: %w: %w", op, ErrConcurrentUpdate, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
