package auth

import (
	"context"
	"errors"
	"time"

	"github.com/donustur/donustur/internal/config"
	"github.com/donustur/donustur/internal/identity"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

var (
	ErrTokenRevoked = errors.New("token version invalidated")
	ErrUserDisabled = errors.New("user is disabled")
)

// UserStore is the subset of the identity repository auth needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
	Modify(ctx context.Context, id string, fn func(*identity.User) error) (identity.User, error)
}

// Service issues and verifies tokens.
type Service struct {
	cfg   config.Config
	users UserStore
	now   func() time.Time
}

func NewService(cfg config.Config, users UserStore) *Service {
	return &Service{cfg: cfg, users: users, now: time.Now}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues an access and refresh token for an authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	access, err := s.sign(user, kindAccess, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user, kindRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

func (s *Service) sign(user identity.User, kind, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	return SignHS256(Claims{
		Subject:   user.ID,
		Email:     user.Email,
		Groups:    user.Groups,
		Version:   user.TokenVersion,
		Kind:      kind,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}, []byte(secret))
}

// Refresh verifies the refresh token and returns a new access token. Groups
// and email are reloaded so admin changes apply on the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	_, user, err := s.verify(ctx, refreshToken, kindRefresh, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, err
	}
	signed, err := s.sign(user, kindAccess, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	_, user, err := s.verify(ctx, refreshToken, kindRefresh, s.cfg.RefreshSecret)
	if err != nil {
		return err
	}
	_, err = s.users.Modify(ctx, user.ID, func(u *identity.User) error {
		u.TokenVersion++
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	return err
}

// VerifyAccess validates an access token and returns its current user.
func (s *Service) VerifyAccess(ctx context.Context, token string) (Claims, identity.User, error) {
	return s.verify(ctx, token, kindAccess, s.cfg.JWTSecret)
}

func (s *Service) verify(ctx context.Context, token, kind, secret string) (Claims, identity.User, error) {
	claims, err := ParseAndVerifyHS256(token, []byte(secret), s.now())
	if err != nil {
		return Claims{}, identity.User{}, err
	}
	if claims.Kind != kind {
		return Claims{}, identity.User{}, ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, identity.ErrUserNotFound) {
		return Claims{}, identity.User{}, ErrInvalidToken
	}
	if err != nil {
		return Claims{}, identity.User{}, err
	}
	if user.TokenVersion != claims.Version {
		return Claims{}, identity.User{}, ErrTokenRevoked
	}
	if !user.Enabled {
		return Claims{}, identity.User{}, ErrUserDisabled
	}
	return claims, user, nil
}
