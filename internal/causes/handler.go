package causes

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// URLSigner hands out expiring links to stored objects.
type URLSigner interface {
	SignedURL(key string, ttl time.Duration) (string, error)
}

// Handler exposes cause endpoints.
type Handler struct {
	service *Service
	signer  URLSigner
	ttl     time.Duration
}

func NewHandler(service *Service, signer URLSigner, ttl time.Duration) *Handler {
	return &Handler{service: service, signer: signer, ttl: ttl}
}

type causeResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Credits     int64     `json:"credits"`
	Status      string    `json:"status"`
	LogoURL     string    `json:"logo_url,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h *Handler) present(c Cause) causeResponse {
	resp := causeResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Credits:     c.Credits,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.LogoKey != "" && h.signer != nil {
		if url, err := h.signer.SignedURL(c.LogoKey, h.ttl); err == nil {
			resp.LogoURL = url
		}
	}
	return resp
}

// List returns causes; ?active=true limits the result to active ones.
func (h *Handler) List(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext(), c.QueryBool("active", false))
	if err != nil {
		return mapError(err)
	}
	out := make([]causeResponse, 0, len(list))
	for _, cause := range list {
		out = append(out, h.present(cause))
	}
	return c.JSON(fiber.Map{"causes": out})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	cause, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(h.present(cause))
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var req CreateInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	cause, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(h.present(cause))
}

func (h *Handler) Update(c *fiber.Ctx) error {
	var req UpdateInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	cause, err := h.service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(h.present(cause))
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// SetLogo stores the raw request body as the cause logo.
func (h *Handler) SetLogo(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return fiber.NewError(http.StatusBadRequest, "logo body is required")
	}
	if len(body) > maxLogoBytes {
		return fiber.NewError(http.StatusRequestEntityTooLarge, "logo exceeds 2MB")
	}
	cause, err := h.service.SetLogo(c.UserContext(), c.Params("id"), c.Get(fiber.HeaderContentType), bytes.NewReader(body))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(h.present(cause))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnsupportedLogo):
		return fiber.NewError(http.StatusUnsupportedMediaType, err.Error())
	default:
		return err
	}
}
