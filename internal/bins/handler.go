package bins

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes bin endpoints.
type Handler struct {
	service *Service
	qr      *QRGenerator
}

func NewHandler(service *Service, qr *QRGenerator) *Handler {
	return &Handler{service: service, qr: qr}
}

// List returns bins, filtered by ?status= when given.
func (h *Handler) List(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext(), c.Query("status"))
	if err != nil {
		return mapError(err)
	}
	if list == nil {
		list = []Bin{}
	}
	return c.JSON(fiber.Map{"bins": list})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	bin, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(bin)
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var req CreateInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bin, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(bin)
}

func (h *Handler) Update(c *fiber.Ctx) error {
	var req UpdateInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bin, err := h.service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(bin)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// QR renders the bin's QR code as PNG.
func (h *Handler) QR(c *fiber.Ctx) error {
	bin, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	png, err := h.qr.BinQR(bin.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="bin-`+bin.ID+`.png"`)
	return c.Send(png)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
