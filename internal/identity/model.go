package identity

import (
	"errors"
	"strings"
	"time"
)

// GroupAdmin is the only group the service knows about.
const GroupAdmin = "admin"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotConfirmed       = errors.New("user is not confirmed")
	ErrUserDisabled       = errors.New("user is disabled")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrAlreadyConfirmed   = errors.New("user is already confirmed")
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	Groups       []string
	Enabled      bool
	Confirmed    bool
	TokenVersion int
	Attributes   map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// InGroup reports whether the user belongs to group.
func (u User) InGroup(group string) bool {
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// IsAdmin reports admin membership.
func (u User) IsAdmin() bool { return u.InGroup(GroupAdmin) }

// DisplayName falls back to the local part of the email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// ListQuery pages through users ordered by email.
type ListQuery struct {
	Limit       int
	Cursor      string
	EmailPrefix string
}

// Page is one result page. NextCursor is empty on the last page.
type Page struct {
	Users      []User
	NextCursor string
}

// RegisterInput carries sign-up fields.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clone(u User) User {
	u.Groups = append([]string(nil), u.Groups...)
	if u.Attributes != nil {
		attrs := make(map[string]string, len(u.Attributes))
		for k, v := range u.Attributes {
			attrs[k] = v
		}
		u.Attributes = attrs
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}
