package causes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/donustur/donustur/internal/storage"
)

const maxLogoBytes = 2 << 20

var logoExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Service manages causes and their logos.
type Service struct {
	repo   Repository
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, store storage.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, store: store, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Cause, error) {
	now := s.now().UTC()
	cause := Cause{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Credits:     in.Credits,
		Status:      strings.TrimSpace(in.Status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cause.Status == "" {
		cause.Status = StatusActive
	}
	if err := validate(cause); err != nil {
		return Cause{}, err
	}
	if err := s.repo.Create(ctx, cause); err != nil {
		return Cause{}, err
	}
	return cause, nil
}

func (s *Service) Get(ctx context.Context, id string) (Cause, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]Cause, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Cause, error) {
	return s.repo.Modify(ctx, id, func(cause *Cause) error {
		if in.Name != nil {
			cause.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			cause.Description = strings.TrimSpace(*in.Description)
		}
		if in.Credits != nil {
			cause.Credits = *in.Credits
		}
		if in.Status != nil {
			cause.Status = strings.TrimSpace(*in.Status)
		}
		if err := validate(*cause); err != nil {
			return err
		}
		cause.UpdatedAt = s.now().UTC()
		return nil
	})
}

// Delete removes the cause and its logo. Past redemptions keep the id.
func (s *Service) Delete(ctx context.Context, id string) error {
	cause, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeLogo(ctx, cause.LogoKey)
	return nil
}

// SetLogo stores a new logo and replaces the previous one.
func (s *Service) SetLogo(ctx context.Context, id, contentType string, body io.Reader) (Cause, error) {
	ext, ok := logoExtensions[strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))]
	if !ok {
		return Cause{}, fmt.Errorf("%w: %s", ErrUnsupportedLogo, contentType)
	}
	cause, err := s.repo.Get(ctx, id)
	if err != nil {
		return Cause{}, err
	}

	key := fmt.Sprintf("causes/%s/logo-%d%s", cause.ID, s.now().UnixNano(), ext)
	if err := s.store.Put(ctx, key, io.LimitReader(body, maxLogoBytes)); err != nil {
		return Cause{}, fmt.Errorf("store logo: %w", err)
	}

	var previous string
	updated, err := s.repo.Modify(ctx, id, func(c *Cause) error {
		previous = c.LogoKey
		c.LogoKey = key
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		s.removeLogo(ctx, key)
		return Cause{}, err
	}
	s.removeLogo(ctx, previous)
	return updated, nil
}

func (s *Service) removeLogo(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete logo", slog.String("key", key), slog.Any("error", err))
	}
}

func validate(c Cause) error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case c.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalid)
	case c.Credits <= 0:
		return fmt.Errorf("%w: credits must be positive", ErrInvalid)
	case c.Status != StatusActive && c.Status != StatusInactive:
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, c.Status)
	}
	return nil
}
