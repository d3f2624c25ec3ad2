package causes

import (
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	ErrNotFound        = errors.New("cause not found")
	ErrInvalid         = errors.New("invalid cause")
	ErrUnsupportedLogo = errors.New("unsupported logo type")
)

// Cause is an organisation users donate credits to.
type Cause struct {
	ID          string
	Name        string
	Description string
	LogoKey     string
	Credits     int64
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c Cause) Active() bool { return c.Status == StatusActive }

type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Credits     int64  `json:"credits"`
	Status      string `json:"status"`
}

type UpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Credits     *int64  `json:"credits"`
	Status      *string `json:"status"`
}
