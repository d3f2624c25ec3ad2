package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Mail triggers sent by the service. They match the mailer catalogue keys.
const (
	triggerSignUp         = "CustomMessage_SignUp"
	triggerResendCode     = "CustomMessage_ResendCode"
	triggerForgotPassword = "CustomMessage_ForgotPassword"
)

const minPasswordLength = 8

//go:generate mockgen -destination=mocks/mailer.go -package=mocks github.com/donustur/donustur/internal/identity CodeMailer

// CodeMailer sends a verification code for a trigger.
type CodeMailer interface {
	SendCode(ctx context.Context, trigger, to, code string) error
}

// ConfirmHook runs after a user confirms their email.
type ConfirmHook func(ctx context.Context, user User) error

// Service manages the identity lifecycle.
type Service struct {
	repo      Repository
	codes     CodeStore
	mailer    CodeMailer
	logger    *slog.Logger
	codeTTL   time.Duration
	onConfirm []ConfirmHook
	now       func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, codes CodeStore, mailer CodeMailer, logger *slog.Logger, codeTTL time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if codeTTL <= 0 {
		codeTTL = 24 * time.Hour
	}
	return &Service{repo: repo, codes: codes, mailer: mailer, logger: logger, codeTTL: codeTTL, now: time.Now}
}

// OnConfirmed registers a post-confirmation hook.
func (s *Service) OnConfirmed(hook ConfirmHook) {
	s.onConfirm = append(s.onConfirm, hook)
}

// Register creates an unconfirmed user and mails a confirmation code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	email, err := validateEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	if len(in.Password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	now := s.now().UTC()
	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Groups:       []string{},
		Enabled:      true,
		Attributes:   map[string]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	if err := s.sendCode(ctx, PurposeConfirm, triggerSignUp, email); err != nil {
		return User{}, err
	}
	return user, nil
}

// ResendCode issues a fresh confirmation code. Unknown and already confirmed
// emails are ignored, as in ForgotPassword, so the answer never reveals
// whether an account exists.
func (s *Service) ResendCode(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.Confirmed {
		s.logger.InfoContext(ctx, "resend requested for confirmed user", slog.String("user_id", user.ID))
		return nil
	}
	return s.sendCode(ctx, PurposeConfirm, triggerResendCode, user.Email)
}

// Confirm verifies the code and marks the user confirmed. Confirming an
// already confirmed user returns it unchanged.
func (s *Service) Confirm(ctx context.Context, email, code string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if user.Confirmed {
		s.logger.InfoContext(ctx, "user already confirmed", slog.String("user_id", user.ID))
		return user, nil
	}
	if err := s.codes.Consume(ctx, PurposeConfirm, user.Email, code); err != nil {
		return User{}, err
	}

	user, err = s.repo.Modify(ctx, user.ID, func(u *User) error {
		u.Confirmed = true
		u.Name = u.DisplayName()
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return User{}, err
	}

	// hook failures must not undo the confirmation
	for _, hook := range s.onConfirm {
		if err := hook(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "post confirmation hook failed",
				slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}
	return user, nil
}

// ForgotPassword mails a reset code. Unknown emails are ignored so callers
// cannot enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.sendCode(ctx, PurposeReset, triggerForgotPassword, user.Email)
}

// ResetPassword replaces the password and invalidates issued tokens.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}
	if err := s.codes.Consume(ctx, PurposeReset, user.Email, code); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.repo.Modify(ctx, user.ID, func(u *User) error {
		u.PasswordHash = hash
		u.TokenVersion++
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	return err
}

// Authenticate verifies credentials for a confirmed, enabled user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !user.Confirmed {
		return User{}, ErrNotConfirmed
	}
	if !user.Enabled {
		return User{}, ErrUserDisabled
	}

	// re-check under the row lock so a concurrent disable wins
	now := s.now().UTC()
	return s.repo.Modify(ctx, user.ID, func(u *User) error {
		if !u.Enabled {
			return ErrUserDisabled
		}
		u.LastLogin = &now
		return nil
	})
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// RevokeTokens bumps the token version so previously issued tokens fail.
func (s *Service) RevokeTokens(ctx context.Context, id string) (User, error) {
	return s.repo.Modify(ctx, id, func(u *User) error {
		u.TokenVersion++
		u.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *Service) sendCode(ctx context.Context, purpose, trigger, email string) error {
	code, err := NewCode()
	if err != nil {
		return err
	}
	if err := s.codes.Save(ctx, purpose, email, code, s.codeTTL); err != nil {
		return fmt.Errorf("store %s code: %w", purpose, err)
	}
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendCode(ctx, trigger, email, code); err != nil {
		return fmt.Errorf("send %s: %w", trigger, err)
	}
	return nil
}

func validateEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.Index(email, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
