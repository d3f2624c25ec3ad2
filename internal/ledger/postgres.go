package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists scans and redemptions in PostgreSQL. Each user owns
// one credit_accounts row which serialises postings for that user.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EnsureAccount guarantees a credit account exists for the user.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	_, err = l.db.Exec(ctx, `INSERT INTO credit_accounts (user_id, total_credits, updated_at) VALUES ($1, 0, $2)
        ON CONFLICT (user_id) DO NOTHING`, id, time.Now().UTC())
	return err
}

// Balance derives earned, used and available credits from the user's records.
func (l *PostgresLedger) Balance(ctx context.Context, userID string) (Balance, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Balance{}, fmt.Errorf("parse user id: %w", err)
	}
	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM credit_accounts WHERE user_id = $1)`, id).Scan(&exists); err != nil {
		return Balance{}, err
	}
	if !exists {
		return Balance{}, ErrAccountNotFound
	}
	return balanceFor(ctx, l.db, id)
}

// RecordScan credits the user for a bin scan. Tokens are scoped to the user:
// a token the same user already spent returns the stored scan together with
// ErrDuplicateTransaction.
func (l *PostgresLedger) RecordScan(ctx context.Context, scan Scan) (Scan, error) {
	if scan.Credits <= 0 {
		return Scan{}, ErrInvalidAmount
	}
	userID, err := uuid.Parse(scan.UserID)
	if err != nil {
		return Scan{}, fmt.Errorf("parse user id: %w", err)
	}
	if scan.TokenID == "" {
		scan.TokenID = uuid.NewString()
	}
	if scan.Timestamp.IsZero() {
		scan.Timestamp = time.Now().UTC()
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Scan{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := lockAccount(ctx, tx, userID); err != nil {
		return Scan{}, err
	}

	const existingQuery = `SELECT id, user_id, bin_id, bin_location, credits, token_id, scanned_at FROM scans WHERE user_id = $1 AND token_id = $2`
	existing, err := scanRow(tx.QueryRow(ctx, existingQuery, userID, scan.TokenID))
	if err == nil {
		return existing, ErrDuplicateTransaction
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Scan{}, err
	}

	scanID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO scans (id, user_id, bin_id, bin_location, credits, token_id, scanned_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		scanID, userID, scan.BinID, scan.BinLocation, scan.Credits, scan.TokenID, scan.Timestamp.UTC()); err != nil {
		return Scan{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE credit_accounts SET total_credits = total_credits + $1, updated_at = $2 WHERE user_id = $3`,
		scan.Credits, time.Now().UTC(), userID); err != nil {
		return Scan{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Scan{}, err
	}

	scan.ID = scanID.String()
	scan.Timestamp = scan.Timestamp.UTC()
	return scan, nil
}

// Redeem debits the user for a cause donation. The account row is locked for
// the duration of the check-and-insert so concurrent redemptions cannot
// overspend.
func (l *PostgresLedger) Redeem(ctx context.Context, r Redemption) (RedemptionResult, error) {
	if r.Credits <= 0 {
		return RedemptionResult{}, ErrInvalidAmount
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return RedemptionResult{}, fmt.Errorf("parse user id: %w", err)
	}
	if r.ClientTxID == "" {
		r.ClientTxID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return RedemptionResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := lockAccount(ctx, tx, userID); err != nil {
		return RedemptionResult{}, err
	}

	const existingQuery = `SELECT id, user_id, cause_id, credits, client_tx_id, redeemed_at
        FROM redemptions WHERE user_id = $1 AND client_tx_id = $2`
	existing, err := redemptionRow(tx.QueryRow(ctx, existingQuery, userID, r.ClientTxID))
	if err == nil {
		bal, balErr := balanceFor(ctx, tx, userID)
		if balErr != nil {
			return RedemptionResult{}, balErr
		}
		return RedemptionResult{Redemption: existing, Balance: bal}, ErrDuplicateTransaction
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RedemptionResult{}, err
	}

	before, err := balanceFor(ctx, tx, userID)
	if err != nil {
		return RedemptionResult{}, err
	}
	if before.Available < r.Credits {
		return RedemptionResult{}, ErrInsufficientCredits
	}

	redemptionID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO redemptions (id, user_id, cause_id, credits, client_tx_id, redeemed_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		redemptionID, userID, r.CauseID, r.Credits, r.ClientTxID, r.Timestamp.UTC()); err != nil {
		return RedemptionResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE credit_accounts SET total_credits = total_credits - $1, updated_at = $2 WHERE user_id = $3`,
		r.Credits, time.Now().UTC(), userID); err != nil {
		return RedemptionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RedemptionResult{}, err
	}

	r.ID = redemptionID.String()
	r.Timestamp = r.Timestamp.UTC()
	after := newBalance(r.UserID, before.Earned, before.Used+r.Credits, before.Scans, before.Redemptions+1)
	return RedemptionResult{Redemption: r, Balance: after}, nil
}

// Scans lists a user's scans, newest first.
func (l *PostgresLedger) Scans(ctx context.Context, userID string, limit int) ([]Scan, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	rows, err := l.db.Query(ctx, `SELECT id, user_id, bin_id, bin_location, credits, token_id, scanned_at
        FROM scans WHERE user_id = $1 ORDER BY scanned_at DESC LIMIT $2`, id, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Redemptions lists a user's redemptions, newest first.
func (l *PostgresLedger) Redemptions(ctx context.Context, userID string, limit int) ([]Redemption, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	rows, err := l.db.Query(ctx, `SELECT id, user_id, cause_id, credits, client_tx_id, redeemed_at
        FROM redemptions WHERE user_id = $1 ORDER BY redeemed_at DESC LIMIT $2`, id, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Redemption
	for rows.Next() {
		r, err := redemptionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CauseTotals sums the donations recorded against a cause.
func (l *PostgresLedger) CauseTotals(ctx context.Context, causeID string) (CauseTotals, error) {
	totals := CauseTotals{CauseID: causeID}
	err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(credits), 0), COUNT(*), COUNT(DISTINCT user_id)
        FROM redemptions WHERE cause_id = $1`, causeID).Scan(&totals.Credits, &totals.Donations, &totals.Donors)
	return totals, err
}

// Summary aggregates activity across all accounts.
func (l *PostgresLedger) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := l.db.QueryRow(ctx, `SELECT
        (SELECT COUNT(*) FROM scans),
        (SELECT COALESCE(SUM(credits), 0) FROM scans),
        (SELECT COUNT(*) FROM redemptions),
        (SELECT COALESCE(SUM(credits), 0) FROM redemptions)`).Scan(&s.Scans, &s.CreditsIssued, &s.Redemptions, &s.CreditsRedeemed)
	return s, err
}

func lockAccount(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	const query = `SELECT total_credits FROM credit_accounts WHERE user_id = $1 FOR UPDATE`
	var total int64
	if err := tx.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return total, nil
}

func balanceFor(ctx context.Context, q queryRower, userID uuid.UUID) (Balance, error) {
	const query = `SELECT
        (SELECT COALESCE(SUM(credits), 0) FROM scans WHERE user_id = $1),
        (SELECT COUNT(*) FROM scans WHERE user_id = $1),
        (SELECT COALESCE(SUM(credits), 0) FROM redemptions WHERE user_id = $1),
        (SELECT COUNT(*) FROM redemptions WHERE user_id = $1)`
	var (
		earned, used       int64
		scans, redemptions int
	)
	if err := q.QueryRow(ctx, query, userID).Scan(&earned, &scans, &used, &redemptions); err != nil {
		return Balance{}, err
	}
	return newBalance(userID.String(), earned, used, scans, redemptions), nil
}

func scanRow(row pgx.Row) (Scan, error) {
	var (
		s      Scan
		id     uuid.UUID
		userID uuid.UUID
		at     time.Time
	)
	if err := row.Scan(&id, &userID, &s.BinID, &s.BinLocation, &s.Credits, &s.TokenID, &at); err != nil {
		return Scan{}, err
	}
	s.ID = id.String()
	s.UserID = userID.String()
	s.Timestamp = at.UTC()
	return s, nil
}

func redemptionRow(row pgx.Row) (Redemption, error) {
	var (
		r      Redemption
		id     uuid.UUID
		userID uuid.UUID
		at     time.Time
	)
	if err := row.Scan(&id, &userID, &r.CauseID, &r.Credits, &r.ClientTxID, &at); err != nil {
		return Redemption{}, err
	}
	r.ID = id.String()
	r.UserID = userID.String()
	r.Timestamp = at.UTC()
	return r, nil
}
