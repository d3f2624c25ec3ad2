package ledger

import (
	"fmt"
	"time"
)

// SeedCredits is a test helper that grants credits to a user of the in-memory
// ledger as a single synthetic scan, creating the account when needed.
func SeedCredits(l Ledger, userID string, amount int64) {
	mem, ok := l.(*inMemoryLedger)
	if !ok || amount <= 0 {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	scan := Scan{
		ID:          fmt.Sprintf("seed-%d", len(mem.scans)+1),
		UserID:      userID,
		BinID:       "seed",
		BinLocation: "seed",
		Credits:     amount,
		TokenID:     fmt.Sprintf("seed-token-%s-%d", userID, len(mem.scans)+1),
		Timestamp:   time.Now().UTC(),
	}
	mem.scans = append(mem.scans, scan)
	mem.tokens[userID+":"+scan.TokenID] = scan
	mem.accounts[userID] += amount
}
