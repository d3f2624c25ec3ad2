package bins

import (
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	ErrNotFound      = errors.New("bin not found")
	ErrAlreadyExists = errors.New("bin already exists")
	ErrInvalid       = errors.New("invalid bin")
)

// Bin is a physical recycling receptacle identified by its QR code.
type Bin struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Credits   int64     `json:"credits"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Active reports whether scans are accepted.
func (b Bin) Active() bool { return b.Status == StatusActive }

// CreateInput describes a new bin. ID is optional.
type CreateInput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Credits  int64  `json:"credits"`
	Status   string `json:"status"`
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
	Credits  *int64  `json:"credits"`
	Status   *string `json:"status"`
}

// Counts summarises the bin fleet.
type Counts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}
