package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientCredits occurs when a user's available balance cannot
	// cover a requested redemption.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrDuplicateTransaction indicates the user already recorded the scan
	// token or client transaction identifier; the original record is returned
	// alongside it so callers can treat the operation as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound is returned when no credit account exists for a user.
	ErrAccountNotFound = errors.New("credit account not found")

	// ErrInvalidAmount rejects zero or negative credit postings.
	ErrInvalidAmount = errors.New("credits must be positive")
)

// Scan records credits granted to a user for using a bin.
type Scan struct {
	ID          string
	UserID      string
	BinID       string
	BinLocation string
	Credits     int64
	TokenID     string
	Timestamp   time.Time
}

// Redemption records credits a user spent on a cause.
type Redemption struct {
	ID         string
	UserID     string
	CauseID    string
	Credits    int64
	ClientTxID string
	Timestamp  time.Time
}

// Balance is the derived credit position of a user.
type Balance struct {
	UserID      string
	Earned      int64
	Used        int64
	Available   int64
	Scans       int
	Redemptions int
}

// RedemptionResult captures the outcome of a redemption posting.
type RedemptionResult struct {
	Redemption Redemption
	Balance    Balance
}

// CauseTotals aggregates the donations a cause received.
type CauseTotals struct {
	CauseID   string
	Credits   int64
	Donations int
	Donors    int
}

// Summary aggregates ledger activity across all users.
type Summary struct {
	Scans           int
	CreditsIssued   int64
	Redemptions     int
	CreditsRedeemed int64
}

// Ledger defines the contract implemented by credit ledger backends.
type Ledger interface {
	EnsureAccount(ctx context.Context, userID string) error
	Balance(ctx context.Context, userID string) (Balance, error)
	RecordScan(ctx context.Context, scan Scan) (Scan, error)
	Redeem(ctx context.Context, redemption Redemption) (RedemptionResult, error)
	Scans(ctx context.Context, userID string, limit int) ([]Scan, error)
	Redemptions(ctx context.Context, userID string, limit int) ([]Redemption, error)
	CauseTotals(ctx context.Context, causeID string) (CauseTotals, error)
	Summary(ctx context.Context) (Summary, error)
}

func newBalance(userID string, earned, used int64, scans, redemptions int) Balance {
	return Balance{
		UserID:      userID,
		Earned:      earned,
		Used:        used,
		Available:   earned - used,
		Scans:       scans,
		Redemptions: redemptions,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
