package causes

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists causes.
type Repository interface {
	Create(ctx context.Context, cause Cause) error
	Get(ctx context.Context, id string) (Cause, error)
	List(ctx context.Context, activeOnly bool) ([]Cause, error)
	Modify(ctx context.Context, id string, fn func(*Cause) error) (Cause, error)
	Delete(ctx context.Context, id string) error
}

// PostgresRepository stores causes in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const causeColumns = `id, name, description, logo_key, credits, status, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, cause Cause) error {
	id, err := uuid.Parse(cause.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO causes (`+causeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, cause.Name, cause.Description, cause.LogoKey, cause.Credits, cause.Status, cause.CreatedAt.UTC(), cause.UpdatedAt.UTC())
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Cause, error) {
	causeID, err := uuid.Parse(id)
	if err != nil {
		return Cause{}, ErrNotFound
	}
	return scanCause(r.db.QueryRow(ctx, `SELECT `+causeColumns+` FROM causes WHERE id = $1`, causeID))
}

func (r *PostgresRepository) List(ctx context.Context, activeOnly bool) ([]Cause, error) {
	rows, err := r.db.Query(ctx, `SELECT `+causeColumns+` FROM causes WHERE NOT $1 OR status = 'active' ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Cause
	for rows.Next() {
		cause, err := scanCause(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cause)
	}
	return out, rows.Err()
}

// Modify locks the cause's row, applies fn and writes the result back in one
// transaction, so a logo upload and a field edit cannot overwrite each other.
func (r *PostgresRepository) Modify(ctx context.Context, id string, fn func(*Cause) error) (Cause, error) {
	causeID, err := uuid.Parse(id)
	if err != nil {
		return Cause{}, ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Cause{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	cause, err := scanCause(tx.QueryRow(ctx, `SELECT `+causeColumns+` FROM causes WHERE id = $1 FOR UPDATE`, causeID))
	if err != nil {
		return Cause{}, err
	}
	if err := fn(&cause); err != nil {
		return Cause{}, err
	}
	cause.ID = causeID.String()
	if _, err := tx.Exec(ctx, `UPDATE causes SET name = $2, description = $3, logo_key = $4, credits = $5, status = $6, updated_at = $7
        WHERE id = $1`, causeID, cause.Name, cause.Description, cause.LogoKey, cause.Credits, cause.Status, cause.UpdatedAt.UTC()); err != nil {
		return Cause{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Cause{}, err
	}
	return cause, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	causeID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM causes WHERE id = $1`, causeID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCause(row pgx.Row) (Cause, error) {
	var (
		id                   uuid.UUID
		cause                Cause
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &cause.Name, &cause.Description, &cause.LogoKey, &cause.Credits, &cause.Status, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cause{}, ErrNotFound
	}
	if err != nil {
		return Cause{}, err
	}
	cause.ID = id.String()
	cause.CreatedAt = createdAt.UTC()
	cause.UpdatedAt = updatedAt.UTC()
	return cause, nil
}

type memoryRepository struct {
	mu     sync.RWMutex
	causes map[string]Cause
}

// NewMemoryRepository builds an in-memory cause store.
func NewMemoryRepository() Repository {
	return &memoryRepository{causes: make(map[string]Cause)}
}

func (r *memoryRepository) Create(_ context.Context, cause Cause) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.causes[cause.ID] = cause
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Cause, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cause, ok := r.causes[id]
	if !ok {
		return Cause{}, ErrNotFound
	}
	return cause, nil
}

func (r *memoryRepository) List(_ context.Context, activeOnly bool) ([]Cause, error) {
	r.mu.RLock()
	out := make([]Cause, 0, len(r.causes))
	for _, cause := range r.causes {
		if !activeOnly || cause.Active() {
			out = append(out, cause)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *memoryRepository) Modify(_ context.Context, id string, fn func(*Cause) error) (Cause, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cause, ok := r.causes[id]
	if !ok {
		return Cause{}, ErrNotFound
	}
	if err := fn(&cause); err != nil {
		return Cause{}, err
	}
	cause.ID = id
	r.causes[id] = cause
	return cause, nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.causes[id]; !ok {
		return ErrNotFound
	}
	delete(r.causes, id)
	return nil
}
