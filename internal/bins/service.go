package bins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service validates and manages bins.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates and stores a new bin. Without an ID a UUID is assigned.
func (s *Service) Create(ctx context.Context, in CreateInput) (Bin, error) {
	now := s.now().UTC()
	bin := Bin{
		ID:        strings.TrimSpace(in.ID),
		Name:      strings.TrimSpace(in.Name),
		Location:  strings.TrimSpace(in.Location),
		Credits:   in.Credits,
		Status:    strings.TrimSpace(in.Status),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if bin.ID == "" {
		bin.ID = uuid.NewString()
	}
	if bin.Status == "" {
		bin.Status = StatusActive
	}
	if err := validate(bin); err != nil {
		return Bin{}, err
	}
	if err := s.repo.Create(ctx, bin); err != nil {
		return Bin{}, err
	}
	return bin, nil
}

func (s *Service) Get(ctx context.Context, id string) (Bin, error) {
	return s.repo.Get(ctx, id)
}

// List returns all bins, or only those in the given status.
func (s *Service) List(ctx context.Context, status string) ([]Bin, error) {
	if status != "" && status != StatusActive && status != StatusInactive {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	return s.repo.List(ctx, status)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Bin, error) {
	return s.repo.Modify(ctx, id, func(bin *Bin) error {
		if in.Name != nil {
			bin.Name = strings.TrimSpace(*in.Name)
		}
		if in.Location != nil {
			bin.Location = strings.TrimSpace(*in.Location)
		}
		if in.Credits != nil {
			bin.Credits = *in.Credits
		}
		if in.Status != nil {
			bin.Status = strings.TrimSpace(*in.Status)
		}
		if err := validate(*bin); err != nil {
			return err
		}
		bin.UpdatedAt = s.now().UTC()
		return nil
	})
}

// Delete removes the bin. Scans that reference it keep their copy of the
// location.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	return s.repo.Counts(ctx)
}

func validate(bin Bin) error {
	switch {
	case bin.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case bin.Location == "":
		return fmt.Errorf("%w: location is required", ErrInvalid)
	case bin.Credits <= 0:
		return fmt.Errorf("%w: credits must be positive", ErrInvalid)
	case bin.Status != StatusActive && bin.Status != StatusInactive:
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, bin.Status)
	case strings.ContainsAny(bin.ID, "/?#&"):
		return fmt.Errorf("%w: id contains reserved characters", ErrInvalid)
	}
	return nil
}
