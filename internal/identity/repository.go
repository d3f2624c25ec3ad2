package identity

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultListLimit = 60
	maxListLimit     = 500
)

//go:generate mockgen -source=repository.go -destination=mocks/repository.go -package=mocks

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	// Modify applies fn to the current stored user and persists the result
	// atomically. An error from fn aborts without writing.
	Modify(ctx context.Context, id string, fn func(*User) error) (User, error)
	List(ctx context.Context, query ListQuery) (Page, error)
	Count(ctx context.Context) (int, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, password_hash, groups, enabled, confirmed, token_version, attributes, created_at, updated_at, last_login`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		userID, user.Email, user.Name, user.PasswordHash, groupsOrEmpty(user.Groups), user.Enabled, user.Confirmed,
		user.TokenVersion, attributesOrEmpty(user.Attributes), user.CreatedAt.UTC(), user.UpdatedAt.UTC(), user.LastLogin)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindByEmail fetches a user by normalised email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email)))
}

// Modify locks the user's row, applies fn and writes the mutable columns
// back in the same transaction, so concurrent mutations cannot overwrite each
// other.
func (r *PostgresRepository) Modify(ctx context.Context, id string, fn func(*User) error) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		return User{}, err
	}
	if err := fn(&user); err != nil {
		return User{}, err
	}
	user.ID = id
	user.Email = NormalizeEmail(user.Email)

	_, err = tx.Exec(ctx, `UPDATE users SET email = $2, name = $3, password_hash = $4, groups = $5, enabled = $6,
        confirmed = $7, token_version = $8, attributes = $9, updated_at = $10, last_login = $11 WHERE id = $1`,
		userID, user.Email, user.Name, user.PasswordHash, groupsOrEmpty(user.Groups), user.Enabled, user.Confirmed,
		user.TokenVersion, attributesOrEmpty(user.Attributes), user.UpdatedAt.UTC(), user.LastLogin)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return user, nil
}

// List returns users ordered by email after the cursor.
func (r *PostgresRepository) List(ctx context.Context, query ListQuery) (Page, error) {
	limit := listLimit(query.Limit)
	after, err := decodeCursor(query.Cursor)
	if err != nil {
		return Page{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users
        WHERE email > $1 AND ($2 = '' OR email LIKE $2 || '%')
        ORDER BY email LIMIT $3`, after, NormalizeEmail(query.EmailPrefix), limit+1)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return Page{}, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	return paginate(users, limit), nil
}

// Count returns the number of users.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		user      User
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&id, &user.Email, &user.Name, &user.PasswordHash, &user.Groups, &user.Enabled, &user.Confirmed,
		&user.TokenVersion, &user.Attributes, &createdAt, &updatedAt, &user.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	return user, nil
}

func groupsOrEmpty(groups []string) []string {
	if groups == nil {
		return []string{}
	}
	return groups
}

func attributesOrEmpty(attrs map[string]string) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func encodeCursor(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(email))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	return string(raw), nil
}

// paginate trims a limit+1 result set and derives the next cursor.
func paginate(users []User, limit int) Page {
	if len(users) <= limit {
		return Page{Users: users}
	}
	users = users[:limit]
	return Page{Users: users, NextCursor: encodeCursor(users[len(users)-1].Email)}
}
