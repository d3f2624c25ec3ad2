package bins

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists bins.
type Repository interface {
	Create(ctx context.Context, bin Bin) error
	Get(ctx context.Context, id string) (Bin, error)
	List(ctx context.Context, status string) ([]Bin, error)
	Modify(ctx context.Context, id string, fn func(*Bin) error) (Bin, error)
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (Counts, error)
}

// PostgresRepository stores bins in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, bin Bin) error {
	_, err := r.db.Exec(ctx, `INSERT INTO bins (id, name, location, credits, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		bin.ID, bin.Name, bin.Location, bin.Credits, bin.Status, bin.CreatedAt.UTC(), bin.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Bin, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, location, credits, status, created_at, updated_at FROM bins WHERE id = $1`, id)
	return scanBin(row)
}

// List returns bins ordered by name, optionally filtered by status.
func (r *PostgresRepository) List(ctx context.Context, status string) ([]Bin, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, location, credits, status, created_at, updated_at FROM bins
        WHERE $1 = '' OR status = $1 ORDER BY name, id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bin
	for rows.Next() {
		bin, err := scanBin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bin)
	}
	return out, rows.Err()
}

// Modify locks the bin's row, applies fn and writes the result back in one
// transaction.
func (r *PostgresRepository) Modify(ctx context.Context, id string, fn func(*Bin) error) (Bin, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Bin{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	bin, err := scanBin(tx.QueryRow(ctx, `SELECT id, name, location, credits, status, created_at, updated_at FROM bins WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Bin{}, err
	}
	if err := fn(&bin); err != nil {
		return Bin{}, err
	}
	bin.ID = id
	if _, err := tx.Exec(ctx, `UPDATE bins SET name = $2, location = $3, credits = $4, status = $5, updated_at = $6 WHERE id = $1`,
		bin.ID, bin.Name, bin.Location, bin.Credits, bin.Status, bin.UpdatedAt.UTC()); err != nil {
		return Bin{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Bin{}, err
	}
	return bin, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM bins WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.QueryRow(ctx, `SELECT count(*), count(*) FILTER (WHERE status = 'active') FROM bins`).Scan(&c.Total, &c.Active)
	return c, err
}

func scanBin(row pgx.Row) (Bin, error) {
	var (
		bin                  Bin
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&bin.ID, &bin.Name, &bin.Location, &bin.Credits, &bin.Status, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bin{}, ErrNotFound
	}
	if err != nil {
		return Bin{}, err
	}
	bin.CreatedAt = createdAt.UTC()
	bin.UpdatedAt = updatedAt.UTC()
	return bin, nil
}

type memoryRepository struct {
	mu   sync.RWMutex
	bins map[string]Bin
}

// NewMemoryRepository builds an in-memory bin store.
func NewMemoryRepository() Repository {
	return &memoryRepository{bins: make(map[string]Bin)}
}

func (r *memoryRepository) Create(_ context.Context, bin Bin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bins[bin.ID]; ok {
		return ErrAlreadyExists
	}
	r.bins[bin.ID] = bin
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Bin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bin, ok := r.bins[id]
	if !ok {
		return Bin{}, ErrNotFound
	}
	return bin, nil
}

func (r *memoryRepository) List(_ context.Context, status string) ([]Bin, error) {
	r.mu.RLock()
	out := make([]Bin, 0, len(r.bins))
	for _, bin := range r.bins {
		if status == "" || bin.Status == status {
			out = append(out, bin)
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

func (r *memoryRepository) Modify(_ context.Context, id string, fn func(*Bin) error) (Bin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bin, ok := r.bins[id]
	if !ok {
		return Bin{}, ErrNotFound
	}
	if err := fn(&bin); err != nil {
		return Bin{}, err
	}
	bin.ID = id
	r.bins[id] = bin
	return bin, nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bins[id]; !ok {
		return ErrNotFound
	}
	delete(r.bins, id)
	return nil
}

func (r *memoryRepository) Counts(_ context.Context) (Counts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := Counts{Total: len(r.bins)}
	for _, bin := range r.bins {
		if bin.Active() {
			c.Active++
		}
	}
	return c, nil
}
