package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/donustur/donustur/internal/identity"
)

// Handler exposes the /auth endpoints.
type Handler struct {
	ids *identity.Service
	svc *Service
}

func NewHandler(ids *identity.Service, svc *Service) *Handler {
	return &Handler{ids: ids, svc: svc}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type codeRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID       string   `json:"user_id"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	Groups       []string `json:"groups"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates an unconfirmed account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Register(c.UserContext(), identity.RegisterInput{Email: req.Email, Password: req.Password, Name: req.Name})
	if err != nil {
		return identityError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"user_id": user.ID, "email": user.Email, "confirmed": false})
}

// Confirm verifies the emailed confirmation code.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Confirm(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return identityError(err)
	}
	return c.JSON(fiber.Map{"user_id": user.ID, "email": user.Email, "confirmed": true})
}

// ResendCode mails a fresh confirmation code.
func (h *Handler) ResendCode(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.ids.ResendCode(c.UserContext(), req.Email); err != nil {
		return identityError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "code_sent"})
}

// ForgotPassword mails a reset code. It always answers 202.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.ids.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return identityError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "code_sent"})
}

// ResetPassword sets a new password using the emailed code.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.ids.ResetPassword(c.UserContext(), req.Email, req.Code, req.Password); err != nil {
		return identityError(err)
	}
	return c.JSON(fiber.Map{"status": "password_reset"})
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return identityError(err)
	}
	pair, err := h.svc.Login(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		UserID:       user.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		Groups:       user.Groups,
	})
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return tokenError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.RefreshToken == "" {
		return fiber.NewError(http.StatusBadRequest, "refresh_token is required")
	}
	if err := h.svc.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return tokenError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

func identityError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrInvalidCode), errors.Is(err, identity.ErrAlreadyConfirmed):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrEmailTaken):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, identity.ErrNotConfirmed), errors.Is(err, identity.ErrUserDisabled):
		return fiber.NewError(http.StatusForbidden, err.Error())
	default:
		return err
	}
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenRevoked):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUserDisabled):
		return fiber.NewError(http.StatusForbidden, err.Error())
	default:
		return err
	}
}
