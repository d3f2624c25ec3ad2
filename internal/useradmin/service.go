// Package useradmin implements the administrative user operations: listing,
// inspecting, editing attributes, group membership and enable/disable.
// Every operation answers with the {success, message, user|users} envelope.
package useradmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/donustur/donustur/internal/identity"
	"github.com/donustur/donustur/internal/ledger"
)

const defaultListLimit = 60

// KnownGroups lists the groups users may be added to.
var KnownGroups = map[string]struct{}{identity.GroupAdmin: {}}

// Error carries an HTTP status, the message returned to the caller and the
// underlying cause, if any.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "useradmin: " + e.Message + ": " + e.Err.Error()
	}
	return "useradmin: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(msg string) error   { return &Error{Status: http.StatusBadRequest, Message: msg} }
func forbidden(msg string) error { return &Error{Status: http.StatusForbidden, Message: msg} }

// failed reports a storage failure; the envelope carries "<msg>: <cause>".
func failed(msg string, err error) error {
	return &Error{Status: http.StatusInternalServerError, Message: msg + ": " + err.Error(), Err: err}
}

// Balances supplies the credit figure shown on each user.
type Balances interface {
	Balance(ctx context.Context, userID string) (ledger.Balance, error)
}

// FormattedUser is the public user representation.
type FormattedUser struct {
	ID         string            `json:"id"`
	Username   string            `json:"username"`
	Email      string            `json:"email"`
	Name       string            `json:"name,omitempty"`
	Credits    int64             `json:"credits"`
	UserGroups []string          `json:"userGroups"`
	Enabled    bool              `json:"enabled"`
	Confirmed  bool              `json:"confirmed"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  string            `json:"createdAt"`
	UpdatedAt  string            `json:"updatedAt"`
}

// Response is the envelope every operation returns.
type Response struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	User       *FormattedUser  `json:"user,omitempty"`
	Users      []FormattedUser `json:"users,omitempty"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// Actor is the caller of an operation.
type Actor struct {
	ID    string
	Admin bool
}

// ListParams controls ListUsers.
type ListParams struct {
	Limit  int
	Cursor string
	Filter string
}

// Service performs user administration on the identity store.
type Service struct {
	users    identity.Repository
	balances Balances
	now      func() time.Time
}

func NewService(users identity.Repository, balances Balances) *Service {
	return &Service{users: users, balances: balances, now: time.Now}
}

// filterPattern accepts the user-pool style `email ^= "prefix"` filter.
var filterPattern = regexp.MustCompile(`^\s*email\s*\^=\s*"([^"]*)"\s*$`)

// ListUsers pages through users ordered by email.
func (s *Service) ListUsers(ctx context.Context, params ListParams) (Response, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	prefix := strings.TrimSpace(params.Filter)
	if m := filterPattern.FindStringSubmatch(prefix); m != nil {
		prefix = m[1]
	}

	page, err := s.users.List(ctx, identity.ListQuery{Limit: limit, Cursor: params.Cursor, EmailPrefix: prefix})
	if err != nil {
		return Response{}, failed("Failed to list users", err)
	}
	users := make([]FormattedUser, 0, len(page.Users))
	for _, u := range page.Users {
		formatted, err := s.format(ctx, u)
		if err != nil {
			return Response{}, failed("Failed to list users", err)
		}
		users = append(users, formatted)
	}
	return Response{
		Success:    true,
		Message:    fmt.Sprintf("Retrieved %d users", len(users)),
		Users:      users,
		NextCursor: page.NextCursor,
	}, nil
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id string) (Response, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return Response{}, err
	}
	return s.respond(ctx, user, fmt.Sprintf("User %s retrieved successfully", id))
}

// UpdateUserAttributes edits name, email and custom attributes. Setting the
// email marks it verified. Credits cannot be set; they come from the ledger.
func (s *Service) UpdateUserAttributes(ctx context.Context, actor Actor, id string, attrs map[string]any) (Response, error) {
	if strings.TrimSpace(id) == "" {
		return Response{}, invalid("User ID is required")
	}
	if len(attrs) == 0 {
		return Response{}, invalid("At least one attribute must be provided")
	}
	if !actor.Admin && actor.ID != id {
		return Response{}, forbidden("You can only update your own attributes")
	}
	if _, ok := attrs["credits"]; ok {
		return Response{}, invalid("credits cannot be updated directly")
	}
	if _, ok := attrs["custom:credits"]; ok {
		return Response{}, invalid("credits cannot be updated directly")
	}

	now := s.now().UTC()
	user, err := s.modify(ctx, id, "Failed to update user attributes", func(u *identity.User) error {
		if u.Attributes == nil {
			u.Attributes = map[string]string{}
		}
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := stringify(attrs[key])
			switch key {
			case "name":
				u.Name = strings.TrimSpace(value)
			case "email":
				email := identity.NormalizeEmail(value)
				if !strings.Contains(email, "@") {
					return invalid("Invalid email address")
				}
				u.Email = email
				u.Confirmed = true
			default:
				if !strings.HasPrefix(key, "custom:") {
					key = "custom:" + key
				}
				u.Attributes[key] = value
			}
		}
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return s.respond(ctx, user, fmt.Sprintf("User %s attributes updated successfully", id))
}

// AddUserToGroup adds the user to an existing group.
func (s *Service) AddUserToGroup(ctx context.Context, id, group string) (Response, error) {
	group, err := checkGroup(id, group)
	if err != nil {
		return Response{}, err
	}
	user, err := s.modify(ctx, id, "Failed to add user to group", func(u *identity.User) error {
		if !u.InGroup(group) {
			u.Groups = append(u.Groups, group)
			sort.Strings(u.Groups)
			u.UpdatedAt = s.now().UTC()
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return s.respond(ctx, user, fmt.Sprintf("User %s added to group %s", id, group))
}

// RemoveUserFromGroup removes the user from a group.
func (s *Service) RemoveUserFromGroup(ctx context.Context, id, group string) (Response, error) {
	group, err := checkGroup(id, group)
	if err != nil {
		return Response{}, err
	}
	user, err := s.modify(ctx, id, "Failed to remove user from group", func(u *identity.User) error {
		if !u.InGroup(group) {
			return nil
		}
		kept := make([]string, 0, len(u.Groups))
		for _, g := range u.Groups {
			if g != group {
				kept = append(kept, g)
			}
		}
		u.Groups = kept
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return s.respond(ctx, user, fmt.Sprintf("User %s removed from group %s", id, group))
}

// EnableUser re-enables sign-in.
func (s *Service) EnableUser(ctx context.Context, id string) (Response, error) {
	user, err := s.modify(ctx, id, "Failed to enable user", func(u *identity.User) error {
		u.Enabled = true
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return s.respond(ctx, user, fmt.Sprintf("User %s enabled successfully", id))
}

// DisableUser blocks sign-in and revokes issued tokens.
func (s *Service) DisableUser(ctx context.Context, id string) (Response, error) {
	user, err := s.modify(ctx, id, "Failed to disable user", func(u *identity.User) error {
		u.Enabled = false
		u.TokenVersion++
		u.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return s.respond(ctx, user, fmt.Sprintf("User %s disabled successfully", id))
}

func (s *Service) load(ctx context.Context, id string) (identity.User, error) {
	if strings.TrimSpace(id) == "" {
		return identity.User{}, invalid("User ID is required")
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, identity.ErrUserNotFound) {
		return identity.User{}, &Error{Status: http.StatusNotFound, Message: "User not found", Err: err}
	}
	if err != nil {
		return identity.User{}, failed("Failed to load user", err)
	}
	return user, nil
}

// modify applies fn to the stored user under the repository's row lock.
// Errors returned by fn pass through unchanged.
func (s *Service) modify(ctx context.Context, id, failure string, fn func(*identity.User) error) (identity.User, error) {
	if strings.TrimSpace(id) == "" {
		return identity.User{}, invalid("User ID is required")
	}
	user, err := s.users.Modify(ctx, id, fn)
	var opErr *Error
	switch {
	case err == nil:
		return user, nil
	case errors.As(err, &opErr):
		return identity.User{}, err
	case errors.Is(err, identity.ErrUserNotFound):
		return identity.User{}, &Error{Status: http.StatusNotFound, Message: "User not found", Err: err}
	case errors.Is(err, identity.ErrEmailTaken):
		return identity.User{}, &Error{Status: http.StatusConflict, Message: failure + ": " + err.Error(), Err: err}
	default:
		return identity.User{}, failed(failure, err)
	}
}

func (s *Service) respond(ctx context.Context, user identity.User, message string) (Response, error) {
	formatted, err := s.format(ctx, user)
	if err != nil {
		return Response{}, failed("Failed to load credits", err)
	}
	return Response{Success: true, Message: message, User: &formatted}, nil
}

func (s *Service) format(ctx context.Context, u identity.User) (FormattedUser, error) {
	var credits int64
	if s.balances != nil {
		balance, err := s.balances.Balance(ctx, u.ID)
		if err != nil && !errors.Is(err, ledger.ErrAccountNotFound) {
			return FormattedUser{}, err
		}
		credits = balance.Available
	}
	groups := u.Groups
	if groups == nil {
		groups = []string{}
	}
	return FormattedUser{
		ID:         u.ID,
		Username:   u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Credits:    credits,
		UserGroups: groups,
		Enabled:    u.Enabled,
		Confirmed:  u.Confirmed,
		Attributes: u.Attributes,
		CreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  u.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func checkGroup(id, group string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", invalid("User ID is required")
	}
	group = strings.TrimSpace(group)
	if group == "" {
		return "", invalid("Group name is required")
	}
	if _, ok := KnownGroups[group]; !ok {
		return "", &Error{Status: http.StatusNotFound, Message: fmt.Sprintf("Group %s does not exist", group)}
	}
	return group, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
