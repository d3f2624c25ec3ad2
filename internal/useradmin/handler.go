package useradmin

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/donustur/donustur/internal/middleware"
)

// QRRenderer renders a user's personal QR code.
type QRRenderer interface {
	UserQR(userID string) ([]byte, error)
}

// Handler exposes the admin user endpoints and the caller's own profile.
type Handler struct {
	service *Service
	qr      QRRenderer
}

func NewHandler(service *Service, qr QRRenderer) *Handler {
	return &Handler{service: service, qr: qr}
}

type groupRequest struct {
	GroupName string `json:"groupName"`
}

type attributesRequest struct {
	UserAttributes map[string]any `json:"userAttributes"`
}

func (h *Handler) List(c *fiber.Ctx) error {
	resp, err := h.service.ListUsers(c.UserContext(), ListParams{
		Limit:  c.QueryInt("limit", defaultListLimit),
		Cursor: c.Query("cursor"),
		Filter: c.Query("filter"),
	})
	return reply(c, resp, err)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	resp, err := h.service.GetUser(c.UserContext(), c.Params("id"))
	return reply(c, resp, err)
}

// Update accepts either {"userAttributes": {...}} or a bare attribute map.
func (h *Handler) Update(c *fiber.Ctx) error {
	attrs, err := parseAttributes(c)
	if err != nil {
		return reply(c, Response{}, err)
	}
	resp, err := h.service.UpdateUserAttributes(c.UserContext(), actor(c), c.Params("id"), attrs)
	return reply(c, resp, err)
}

func (h *Handler) AddGroup(c *fiber.Ctx) error {
	var req groupRequest
	if err := c.BodyParser(&req); err != nil {
		return reply(c, Response{}, invalid(err.Error()))
	}
	resp, err := h.service.AddUserToGroup(c.UserContext(), c.Params("id"), req.GroupName)
	return reply(c, resp, err)
}

func (h *Handler) RemoveGroup(c *fiber.Ctx) error {
	resp, err := h.service.RemoveUserFromGroup(c.UserContext(), c.Params("id"), c.Params("group"))
	return reply(c, resp, err)
}

func (h *Handler) Enable(c *fiber.Ctx) error {
	resp, err := h.service.EnableUser(c.UserContext(), c.Params("id"))
	return reply(c, resp, err)
}

func (h *Handler) Disable(c *fiber.Ctx) error {
	if c.Params("id") == middleware.UserID(c) {
		return reply(c, Response{}, invalid("You cannot disable your own account"))
	}
	resp, err := h.service.DisableUser(c.UserContext(), c.Params("id"))
	return reply(c, resp, err)
}

// Me returns the caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	resp, err := h.service.GetUser(c.UserContext(), middleware.UserID(c))
	return reply(c, resp, err)
}

// UpdateMe edits the caller's own attributes.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	attrs, err := parseAttributes(c)
	if err != nil {
		return reply(c, Response{}, err)
	}
	resp, err := h.service.UpdateUserAttributes(c.UserContext(), actor(c), middleware.UserID(c), attrs)
	return reply(c, resp, err)
}

// MyQR renders the caller's personal QR code.
func (h *Handler) MyQR(c *fiber.Ctx) error {
	png, err := h.qr.UserQR(middleware.UserID(c))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(png)
}

func actor(c *fiber.Ctx) Actor {
	user, _ := middleware.CurrentUser(c)
	return Actor{ID: middleware.UserID(c), Admin: user.IsAdmin()}
}

func parseAttributes(c *fiber.Ctx) (map[string]any, error) {
	var wrapped attributesRequest
	if err := c.BodyParser(&wrapped); err != nil {
		return nil, invalid(err.Error())
	}
	if wrapped.UserAttributes != nil {
		return wrapped.UserAttributes, nil
	}
	var bare map[string]any
	if err := c.BodyParser(&bare); err != nil {
		return nil, invalid(err.Error())
	}
	delete(bare, "userAttributes")
	return bare, nil
}

func reply(c *fiber.Ctx, resp Response, err error) error {
	if err == nil {
		return c.Status(http.StatusOK).JSON(resp)
	}
	status, message := http.StatusInternalServerError, "Internal server error"
	var opErr *Error
	if errors.As(err, &opErr) {
		status, message = opErr.Status, opErr.Message
	}
	return c.Status(status).JSON(Response{Success: false, Message: message})
}
