package storage

import (
	"errors"
	"mime"
	"net/http"
	"path"

	"github.com/gofiber/fiber/v2"
)

// Handler serves objects behind signed URLs.
type Handler struct {
	store  Store
	signer *Signer
}

func NewHandler(store Store, signer *Signer) *Handler {
	return &Handler{store: store, signer: signer}
}

// Serve streams the object named by the wildcard once exp and sig check out.
func (h *Handler) Serve(c *fiber.Ctx) error {
	key := c.Params("*")
	if err := h.signer.Verify(key, c.Query("exp"), c.Query("sig")); err != nil {
		switch {
		case errors.Is(err, ErrExpired):
			return fiber.NewError(http.StatusGone, err.Error())
		case errors.Is(err, ErrInvalidKey):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusForbidden, err.Error())
		}
	}
	rc, err := h.store.Open(c.UserContext(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "file not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	// fasthttp closes rc once the body is written.
	return c.SendStream(rc)
}
