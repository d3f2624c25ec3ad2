package rewards

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/donustur/donustur/internal/bins"
	"github.com/donustur/donustur/internal/causes"
	"github.com/donustur/donustur/internal/identity"
	"github.com/donustur/donustur/internal/ledger"
	"github.com/donustur/donustur/internal/middleware"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes scan, donation and statistics endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type scanRequest struct {
	BinID   string `json:"bin_id"`
	TokenID string `json:"token_id"`
}

type donationRequest struct {
	CauseID    string `json:"cause_id"`
	ClientTxID string `json:"client_tx_id"`
}

type balanceResponse struct {
	Earned    int64 `json:"earned"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
}

type scanResponse struct {
	ID        string    `json:"id"`
	BinID     string    `json:"bin_id"`
	Location  string    `json:"location"`
	Credits   int64     `json:"credits"`
	TokenID   string    `json:"token_id"`
	Timestamp time.Time `json:"timestamp"`
}

type redemptionResponse struct {
	ID         string    `json:"id"`
	CauseID    string    `json:"cause_id"`
	Credits    int64     `json:"credits"`
	ClientTxID string    `json:"client_tx_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func presentBalance(b ledger.Balance) balanceResponse {
	return balanceResponse{Earned: b.Earned, Used: b.Used, Available: b.Available}
}

func presentScan(s ledger.Scan) scanResponse {
	return scanResponse{ID: s.ID, BinID: s.BinID, Location: s.BinLocation, Credits: s.Credits, TokenID: s.TokenID, Timestamp: s.Timestamp}
}

func presentRedemption(r ledger.Redemption) redemptionResponse {
	return redemptionResponse{ID: r.ID, CauseID: r.CauseID, Credits: r.Credits, ClientTxID: r.ClientTxID, Timestamp: r.Timestamp}
}

// Scan records a bin scan for the caller. The Idempotency-Key doubles as the
// scan token when the body has none.
func (h *Handler) Scan(c *fiber.Ctx) error {
	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.TokenID == "" {
		req.TokenID = c.Get(idempotencyKeyHeader)
	}
	res, err := h.service.Scan(c.UserContext(), ScanInput{UserID: middleware.UserID(c), BinID: req.BinID, TokenID: req.TokenID})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return c.Status(http.StatusOK).JSON(fiber.Map{"scan": presentScan(res.Scan), "balance": presentBalance(res.Balance), "duplicate": true})
	}
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"scan": presentScan(res.Scan), "balance": presentBalance(res.Balance)})
}

// Donate spends the cause's credit cost.
func (h *Handler) Donate(c *fiber.Ctx) error {
	var req donationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ClientTxID == "" {
		req.ClientTxID = c.Get(idempotencyKeyHeader)
	}
	res, err := h.service.Donate(c.UserContext(), DonateInput{UserID: middleware.UserID(c), CauseID: req.CauseID, ClientTxID: req.ClientTxID})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return c.Status(http.StatusOK).JSON(fiber.Map{"redemption": presentRedemption(res.Redemption), "balance": presentBalance(res.Balance), "duplicate": true})
	}
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"redemption": presentRedemption(res.Redemption), "balance": presentBalance(res.Balance)})
}

func (h *Handler) MyStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(stats)
}

func (h *Handler) MyHistory(c *fiber.Ctx) error {
	history, err := h.service.History(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 50))
	if err != nil {
		return mapError(err)
	}
	scans := make([]scanResponse, 0, len(history.Scans))
	for _, s := range history.Scans {
		scans = append(scans, presentScan(s))
	}
	redemptions := make([]redemptionResponse, 0, len(history.Redemptions))
	for _, r := range history.Redemptions {
		redemptions = append(redemptions, presentRedemption(r))
	}
	return c.JSON(fiber.Map{"scans": scans, "redemptions": redemptions})
}

func (h *Handler) CauseStats(c *fiber.Ctx) error {
	totals, err := h.service.CauseStats(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"cause_id":  totals.CauseID,
		"credits":   totals.Credits,
		"donations": totals.Donations,
		"donors":    totals.Donors,
	})
}

func (h *Handler) AdminStats(c *fiber.Ctx) error {
	stats, err := h.service.AdminStats(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(stats)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return fiber.NewError(http.StatusUnprocessableEntity, "insufficient credits")
	case errors.Is(err, ErrCoolingDown):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrBinInactive), errors.Is(err, ErrCauseInactive):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUserNotEligible):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrMissingBin), errors.Is(err, ErrMissingCause), errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, bins.ErrNotFound), errors.Is(err, causes.ErrNotFound), errors.Is(err, identity.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return err
	}
}
