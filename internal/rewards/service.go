package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/donustur/donustur/internal/bins"
	"github.com/donustur/donustur/internal/causes"
	"github.com/donustur/donustur/internal/identity"
	"github.com/donustur/donustur/internal/ledger"
	"github.com/donustur/donustur/internal/notification"
)

var (
	ErrBinInactive     = errors.New("bin is not active")
	ErrCauseInactive   = errors.New("cause is not active")
	ErrCoolingDown     = errors.New("bin was scanned recently, try again later")
	ErrUserNotEligible = errors.New("user must be confirmed and enabled")
	ErrMissingBin      = errors.New("bin_id is required")
	ErrMissingCause    = errors.New("cause_id is required")
)

// Users is the identity lookup rewards needs.
type Users interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
	Count(ctx context.Context) (int, error)
}

// Bins is the bin lookup rewards needs.
type Bins interface {
	Get(ctx context.Context, id string) (bins.Bin, error)
	Counts(ctx context.Context) (bins.Counts, error)
}

// Causes is the cause lookup rewards needs.
type Causes interface {
	Get(ctx context.Context, id string) (causes.Cause, error)
	List(ctx context.Context, activeOnly bool) ([]causes.Cause, error)
}

// Service orchestrates scans and donations on top of the credit ledger.
type Service struct {
	ledger   ledger.Ledger
	users    Users
	bins     Bins
	causes   Causes
	cooldown Cooldown
	notifier notification.Notifier
	logger   *slog.Logger
}

func NewService(l ledger.Ledger, users Users, binSvc Bins, causeSvc Causes, cooldown Cooldown, notifier notification.Notifier, logger *slog.Logger) *Service {
	if cooldown == nil {
		cooldown = noCooldown{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: l, users: users, bins: binSvc, causes: causeSvc, cooldown: cooldown, notifier: notifier, logger: logger}
}

// ScanInput identifies a bin scan. TokenID deduplicates retries by the same user.
type ScanInput struct {
	UserID  string
	BinID   string
	TokenID string
}

type ScanResult struct {
	Scan    ledger.Scan
	Balance ledger.Balance
}

// Scan credits the user with the bin's reward.
func (s *Service) Scan(ctx context.Context, in ScanInput) (ScanResult, error) {
	binID := strings.TrimSpace(in.BinID)
	if binID == "" {
		return ScanResult{}, ErrMissingBin
	}
	bin, err := s.bins.Get(ctx, binID)
	if err != nil {
		return ScanResult{}, err
	}
	if !bin.Active() {
		return ScanResult{}, ErrBinInactive
	}
	if err := s.eligible(ctx, in.UserID); err != nil {
		return ScanResult{}, err
	}
	if err := s.ledger.EnsureAccount(ctx, in.UserID); err != nil {
		return ScanResult{}, fmt.Errorf("ensure account: %w", err)
	}

	acquired, err := s.cooldown.Acquire(ctx, in.UserID, bin.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "scan cooldown unavailable", slog.Any("error", err))
	} else if !acquired {
		return ScanResult{}, ErrCoolingDown
	}

	scan, err := s.ledger.RecordScan(ctx, ledger.Scan{
		UserID:      in.UserID,
		BinID:       bin.ID,
		BinLocation: bin.Location,
		Credits:     bin.Credits,
		TokenID:     in.TokenID,
	})
	if err != nil {
		if acquired {
			if relErr := s.cooldown.Release(ctx, in.UserID, bin.ID); relErr != nil {
				s.logger.WarnContext(ctx, "release scan cooldown", slog.Any("error", relErr))
			}
		}
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			balance, balErr := s.ledger.Balance(ctx, in.UserID)
			if balErr != nil {
				return ScanResult{}, balErr
			}
			return ScanResult{Scan: scan, Balance: balance}, err
		}
		return ScanResult{}, err
	}

	balance, err := s.ledger.Balance(ctx, in.UserID)
	if err != nil {
		return ScanResult{}, err
	}
	s.notify(ctx, notification.Message{
		Kind:        notification.KindScanCredited,
		Destination: in.UserID,
		Title:       "Geri dönüşüm kaydedildi",
		Body:        fmt.Sprintf("%s konumundaki kutudan %d kredi kazandın", bin.Location, bin.Credits),
	})
	return ScanResult{Scan: scan, Balance: balance}, nil
}

// DonateInput identifies a donation. ClientTxID deduplicates retries.
type DonateInput struct {
	UserID     string
	CauseID    string
	ClientTxID string
}

// Donate redeems the cause's credit cost from the user's balance.
func (s *Service) Donate(ctx context.Context, in DonateInput) (ledger.RedemptionResult, error) {
	causeID := strings.TrimSpace(in.CauseID)
	if causeID == "" {
		return ledger.RedemptionResult{}, ErrMissingCause
	}
	cause, err := s.causes.Get(ctx, causeID)
	if err != nil {
		return ledger.RedemptionResult{}, err
	}
	if !cause.Active() {
		return ledger.RedemptionResult{}, ErrCauseInactive
	}
	if err := s.eligible(ctx, in.UserID); err != nil {
		return ledger.RedemptionResult{}, err
	}

	res, err := s.ledger.Redeem(ctx, ledger.Redemption{
		UserID:     in.UserID,
		CauseID:    cause.ID,
		Credits:    cause.Credits,
		ClientTxID: in.ClientTxID,
	})
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ledger.RedemptionResult{}, ledger.ErrInsufficientCredits
	}
	if err != nil {
		return res, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindDonationCompleted,
		Destination: in.UserID,
		Title:       "Bağışın için teşekkürler",
		Body:        fmt.Sprintf("%s için %d kredi bağışladın", cause.Name, cause.Credits),
	})
	return res, nil
}

// Stats is the user's dashboard summary.
type Stats struct {
	TotalCredits     int64 `json:"total_credits"`
	TotalScans       int   `json:"total_scans"`
	UsedCredits      int64 `json:"used_credits"`
	AvailableCredits int64 `json:"available_credits"`
	Donations        int   `json:"donations"`
}

// Stats returns the user's credit summary. Users without an account have
// zero everything.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalCredits:     balance.Earned,
		TotalScans:       balance.Scans,
		UsedCredits:      balance.Used,
		AvailableCredits: balance.Available,
		Donations:        balance.Redemptions,
	}, nil
}

// Balance returns the ledger balance, treating a missing account as empty.
func (s *Service) Balance(ctx context.Context, userID string) (ledger.Balance, error) {
	balance, err := s.ledger.Balance(ctx, userID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ledger.Balance{UserID: userID}, nil
	}
	return balance, err
}

// History lists the user's scans and donations, newest first.
type History struct {
	Scans       []ledger.Scan
	Redemptions []ledger.Redemption
}

func (s *Service) History(ctx context.Context, userID string, limit int) (History, error) {
	scans, err := s.ledger.Scans(ctx, userID, limit)
	if err != nil {
		return History{}, err
	}
	redemptions, err := s.ledger.Redemptions(ctx, userID, limit)
	if err != nil {
		return History{}, err
	}
	return History{Scans: scans, Redemptions: redemptions}, nil
}

// CauseStats aggregates the donations a cause received.
func (s *Service) CauseStats(ctx context.Context, causeID string) (ledger.CauseTotals, error) {
	if _, err := s.causes.Get(ctx, causeID); err != nil {
		return ledger.CauseTotals{}, err
	}
	return s.ledger.CauseTotals(ctx, causeID)
}

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	Users           int       `json:"users"`
	Bins            int       `json:"bins"`
	ActiveBins      int       `json:"active_bins"`
	Causes          int       `json:"causes"`
	ActiveCauses    int       `json:"active_causes"`
	Scans           int       `json:"scans"`
	Redemptions     int       `json:"redemptions"`
	CreditsIssued   int64     `json:"credits_issued"`
	CreditsRedeemed int64     `json:"credits_redeemed"`
	GeneratedAt     time.Time `json:"generated_at"`
}

func (s *Service) AdminStats(ctx context.Context) (AdminStats, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return AdminStats{}, err
	}
	binCounts, err := s.bins.Counts(ctx)
	if err != nil {
		return AdminStats{}, err
	}
	allCauses, err := s.causes.List(ctx, false)
	if err != nil {
		return AdminStats{}, err
	}
	summary, err := s.ledger.Summary(ctx)
	if err != nil {
		return AdminStats{}, err
	}

	stats := AdminStats{
		Users:           users,
		Bins:            binCounts.Total,
		ActiveBins:      binCounts.Active,
		Causes:          len(allCauses),
		Scans:           summary.Scans,
		Redemptions:     summary.Redemptions,
		CreditsIssued:   summary.CreditsIssued,
		CreditsRedeemed: summary.CreditsRedeemed,
		GeneratedAt:     time.Now().UTC(),
	}
	for _, c := range allCauses {
		if c.Active() {
			stats.ActiveCauses++
		}
	}
	return stats, nil
}

func (s *Service) eligible(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Confirmed || !user.Enabled {
		return ErrUserNotEligible
	}
	return nil
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}
