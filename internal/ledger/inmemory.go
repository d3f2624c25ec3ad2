package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu          sync.RWMutex
	accounts    map[string]int64
	scans       []Scan
	redemptions []Redemption
	tokens      map[string]Scan
	clientTx    map[string]Redemption
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development runs without Postgres.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		accounts: make(map[string]int64),
		tokens:   make(map[string]Scan),
		clientTx: make(map[string]Redemption),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[userID]; !exists {
		l.accounts[userID] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, userID string) (Balance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, exists := l.accounts[userID]; !exists {
		return Balance{}, ErrAccountNotFound
	}
	return l.balanceLocked(userID), nil
}

func (l *inMemoryLedger) balanceLocked(userID string) Balance {
	var earned, used int64
	var scans, redemptions int
	for _, s := range l.scans {
		if s.UserID == userID {
			earned += s.Credits
			scans++
		}
	}
	for _, r := range l.redemptions {
		if r.UserID == userID {
			used += r.Credits
			redemptions++
		}
	}
	return newBalance(userID, earned, used, scans, redemptions)
}

func (l *inMemoryLedger) RecordScan(_ context.Context, scan Scan) (Scan, error) {
	if scan.Credits <= 0 {
		return Scan{}, ErrInvalidAmount
	}
	if scan.TokenID == "" {
		scan.TokenID = uuid.NewString()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := scan.UserID + ":" + scan.TokenID
	if existing, ok := l.tokens[key]; ok {
		return existing, ErrDuplicateTransaction
	}
	if _, ok := l.accounts[scan.UserID]; !ok {
		return Scan{}, ErrAccountNotFound
	}

	scan.ID = uuid.NewString()
	if scan.Timestamp.IsZero() {
		scan.Timestamp = time.Now().UTC()
	}
	l.scans = append(l.scans, scan)
	l.tokens[key] = scan
	l.accounts[scan.UserID] += scan.Credits
	return scan, nil
}

func (l *inMemoryLedger) Redeem(_ context.Context, r Redemption) (RedemptionResult, error) {
	if r.Credits <= 0 {
		return RedemptionResult{}, ErrInvalidAmount
	}
	if r.ClientTxID == "" {
		r.ClientTxID = uuid.NewString()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total, ok := l.accounts[r.UserID]
	if !ok {
		return RedemptionResult{}, ErrAccountNotFound
	}

	key := r.UserID + ":" + r.ClientTxID
	if existing, exists := l.clientTx[key]; exists {
		return RedemptionResult{Redemption: existing, Balance: l.balanceLocked(r.UserID)}, ErrDuplicateTransaction
	}

	if total < r.Credits {
		return RedemptionResult{}, ErrInsufficientCredits
	}

	r.ID = uuid.NewString()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	l.redemptions = append(l.redemptions, r)
	l.clientTx[key] = r
	l.accounts[r.UserID] = total - r.Credits

	return RedemptionResult{Redemption: r, Balance: l.balanceLocked(r.UserID)}, nil
}

func (l *inMemoryLedger) Scans(_ context.Context, userID string, limit int) ([]Scan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Scan
	for _, s := range l.scans {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *inMemoryLedger) Redemptions(_ context.Context, userID string, limit int) ([]Redemption, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Redemption
	for _, r := range l.redemptions {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *inMemoryLedger) CauseTotals(_ context.Context, causeID string) (CauseTotals, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	totals := CauseTotals{CauseID: causeID}
	donors := make(map[string]struct{})
	for _, r := range l.redemptions {
		if r.CauseID != causeID {
			continue
		}
		totals.Credits += r.Credits
		totals.Donations++
		donors[r.UserID] = struct{}{}
	}
	totals.Donors = len(donors)
	return totals, nil
}

func (l *inMemoryLedger) Summary(_ context.Context) (Summary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var s Summary
	for _, scan := range l.scans {
		s.Scans++
		s.CreditsIssued += scan.Credits
	}
	for _, r := range l.redemptions {
		s.Redemptions++
		s.CreditsRedeemed += r.Credits
	}
	return s, nil
}
