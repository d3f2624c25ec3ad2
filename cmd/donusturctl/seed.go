package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/donustur/donustur/internal/ledger"
)

const (
	seedScanCount   = 10
	seedScanCredits = 50
	seedBinID       = "seed"
)

var testLocations = []string{
	"Kadıköy Geri Dönüşüm",
	"Üsküdar Geri Dönüşüm",
	"Beşiktaş Geri Dönüşüm",
	"Maltepe Geri Dönüşüm",
}

var seedCmd = &cobra.Command{
	Use:   "seed <user-id>",
	Short: "Record ten sample scans for a user over the last ten days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		pick := func() string { return testLocations[rand.IntN(len(testLocations))] }
		return seedScans(cmd.Context(), ledger.NewPostgresLedger(db), args[0], time.Now().UTC(), pick, cmd.OutOrStdout())
	},
}

// seedScans writes one scan per day going back from now. Token ids are
// derived from the user so re-running the command does not double-credit.
func seedScans(ctx context.Context, l ledger.Ledger, userID string, now time.Time, location func() string, out io.Writer) error {
	if err := l.EnsureAccount(ctx, userID); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	for i := 0; i < seedScanCount; i++ {
		scan, err := l.RecordScan(ctx, ledger.Scan{
			UserID:      userID,
			BinID:       seedBinID,
			BinLocation: location(),
			Credits:     seedScanCredits,
			TokenID:     fmt.Sprintf("test-token-%s-%d", userID, i),
			Timestamp:   now.Add(-time.Duration(i) * 24 * time.Hour),
		})
		switch {
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			fmt.Fprintf(out, "Skipped existing scan at %s\n", scan.BinLocation)
			continue
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "Created scan at %s\n", scan.BinLocation)
	}
	fmt.Fprintln(out, "Seeding completed!")
	return nil
}
