package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInMemoryLedger_BalanceDerivesFromRecords(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if err := l.EnsureAccount(ctx, "user-a"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := l.RecordScan(ctx, Scan{UserID: "user-a", BinID: "bin-1", BinLocation: "Kadıköy", Credits: 50}); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	res, err := l.Redeem(ctx, Redemption{UserID: "user-a", CauseID: "cause-1", Credits: 120, ClientTxID: "don-1"})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	want := Balance{UserID: "user-a", Earned: 150, Used: 120, Available: 30, Scans: 3, Redemptions: 1}
	if res.Balance != want {
		t.Fatalf("expected %+v, got %+v", want, res.Balance)
	}

	bal, err := l.Balance(ctx, "user-a")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != want {
		t.Fatalf("expected %+v, got %+v", want, bal)
	}

	mem := l.(*inMemoryLedger)
	if mem.accounts["user-a"] != bal.Available {
		t.Fatalf("cached total %d out of sync with available %d", mem.accounts["user-a"], bal.Available)
	}
}

func TestInMemoryLedger_UnknownAccount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if _, err := l.Balance(ctx, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if _, err := l.RecordScan(ctx, Scan{UserID: "ghost", Credits: 10}); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestInMemoryLedger_RejectsNonPositiveCredits(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "user-a")

	if _, err := l.RecordScan(ctx, Scan{UserID: "user-a", Credits: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := l.Redeem(ctx, Redemption{UserID: "user-a", Credits: -5}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestInMemoryLedger_DuplicateScanToken(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "user-a")

	first, err := l.RecordScan(ctx, Scan{UserID: "user-a", BinID: "bin-1", Credits: 25, TokenID: "tok"})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	dup, err := l.RecordScan(ctx, Scan{UserID: "user-a", BinID: "bin-1", Credits: 25, TokenID: "tok"})
	if err != ErrDuplicateTransaction {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if dup.ID != first.ID {
		t.Fatalf("expected original scan %s, got %s", first.ID, dup.ID)
	}

	bal, _ := l.Balance(ctx, "user-a")
	if bal.Earned != 25 {
		t.Fatalf("duplicate scan must not credit twice, earned=%d", bal.Earned)
	}
}

func TestInMemoryLedger_DuplicateRedemption(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "user-a")
	SeedCredits(l, "user-a", 500)

	if _, err := l.Redeem(ctx, Redemption{UserID: "user-a", CauseID: "c", Credits: 100, ClientTxID: "dup"}); err != nil {
		t.Fatalf("initial redemption failed: %v", err)
	}
	res, err := l.Redeem(ctx, Redemption{UserID: "user-a", CauseID: "c", Credits: 100, ClientTxID: "dup"})
	if err != ErrDuplicateTransaction {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if res.Balance.Available != 400 {
		t.Fatalf("expected available 400 after duplicate, got %d", res.Balance.Available)
	}
}

func TestInMemoryLedger_InsufficientCredits(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "user-a")
	SeedCredits(l, "user-a", 99)

	if _, err := l.Redeem(ctx, Redemption{UserID: "user-a", CauseID: "c", Credits: 100}); err != ErrInsufficientCredits {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	bal, _ := l.Balance(ctx, "user-a")
	if bal.Used != 0 || bal.Available != 99 {
		t.Fatalf("failed redemption must not debit, got %+v", bal)
	}
}

func TestInMemoryLedger_ConcurrentRedemptionsNeverOverspend(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "user-a")
	SeedCredits(l, "user-a", 1_000)

	const workers = 25
	const cost = int64(100)

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Redeem(ctx, Redemption{UserID: "user-a", CauseID: "c", Credits: cost, ClientTxID: fmt.Sprintf("tx-%d", i)})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInsufficientCredits):
			default:
				t.Errorf("redemption %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 10 {
		t.Fatalf("expected exactly 10 successful redemptions, got %d", succeeded.Load())
	}
	bal, _ := l.Balance(ctx, "user-a")
	if bal.Available != 0 || bal.Used != 1_000 {
		t.Fatalf("ledger not balanced after concurrency: %+v", bal)
	}
}

func TestInMemoryLedger_HistoryNewestFirstAndTotals(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "user-a")
	l.EnsureAccount(ctx, "user-b")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := l.RecordScan(ctx, Scan{UserID: "user-a", BinID: "bin", Credits: 50, Timestamp: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}
	SeedCredits(l, "user-b", 300)

	scans, err := l.Scans(ctx, "user-a", 2)
	if err != nil {
		t.Fatalf("scans: %v", err)
	}
	if len(scans) != 2 || !scans[0].Timestamp.After(scans[1].Timestamp) {
		t.Fatalf("expected two scans newest first, got %+v", scans)
	}

	l.Redeem(ctx, Redemption{UserID: "user-a", CauseID: "tema", Credits: 100})
	l.Redeem(ctx, Redemption{UserID: "user-b", CauseID: "tema", Credits: 150})
	l.Redeem(ctx, Redemption{UserID: "user-b", CauseID: "other", Credits: 50})

	totals, err := l.CauseTotals(ctx, "tema")
	if err != nil {
		t.Fatalf("cause totals: %v", err)
	}
	if totals.Credits != 250 || totals.Donations != 2 || totals.Donors != 2 {
		t.Fatalf("unexpected totals %+v", totals)
	}

	sum, err := l.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Scans != 5 || sum.CreditsIssued != 500 || sum.Redemptions != 3 || sum.CreditsRedeemed != 300 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestInMemoryLedger_ScanTokensAreScopedPerUser(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "user-a")
	l.EnsureAccount(ctx, "user-b")

	a, err := l.RecordScan(ctx, Scan{UserID: "user-a", BinID: "bin-1", Credits: 25, TokenID: "k-1"})
	if err != nil {
		t.Fatalf("user-a scan: %v", err)
	}
	b, err := l.RecordScan(ctx, Scan{UserID: "user-b", BinID: "bin-1", Credits: 25, TokenID: "k-1"})
	if err != nil {
		t.Fatalf("user-b scan with the same token must be credited, got %v", err)
	}
	if a.ID == b.ID || b.UserID != "user-b" {
		t.Fatalf("expected a separate scan for user-b, got %+v", b)
	}

	if _, err := l.RecordScan(ctx, Scan{UserID: "user-b", BinID: "bin-1", Credits: 25, TokenID: "k-1"}); err != ErrDuplicateTransaction {
		t.Fatalf("expected duplicate for user-b retry, got %v", err)
	}

	for _, user := range []string{"user-a", "user-b"} {
		bal, _ := l.Balance(ctx, user)
		if bal.Earned != 25 || bal.Scans != 1 {
			t.Fatalf("%s: earned=%d scans=%d", user, bal.Earned, bal.Scans)
		}
	}
}
