package causes

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donustur/donustur/internal/logging"
	"github.com/donustur/donustur/internal/storage"
)

func newService(t *testing.T) (*Service, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewService(NewMemoryRepository(), store, logging.Discard()), store
}

func TestCreateListUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	tema, err := svc.Create(ctx, CreateInput{Name: "TEMA", Description: "Erozyonla mücadele", Credits: 100})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, tema.Status)

	_, err = svc.Create(ctx, CreateInput{Name: "LÖSEV", Description: "Lösemili çocuklar", Credits: 200, Status: StatusInactive})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Name: "x", Credits: 1})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Create(ctx, CreateInput{Name: "x", Description: "y", Credits: -5})
	assert.ErrorIs(t, err, ErrInvalid)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	credits := int64(150)
	updated, err := svc.Update(ctx, tema.ID, UpdateInput{Credits: &credits})
	require.NoError(t, err)
	assert.Equal(t, int64(150), updated.Credits)
	assert.Equal(t, "TEMA", updated.Name)
}

// editOnGet runs edit once, right after the first Get returns.
type editOnGet struct {
	Repository
	edit func()
}

func (r *editOnGet) Get(ctx context.Context, id string) (Cause, error) {
	cause, err := r.Repository.Get(ctx, id)
	if r.edit != nil {
		edit := r.edit
		r.edit = nil
		edit()
	}
	return cause, err
}

func TestSetLogoKeepsConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	repo := &editOnGet{Repository: NewMemoryRepository()}
	svc := NewService(repo, store, logging.Discard())

	cause, err := svc.Create(ctx, CreateInput{Name: "TEMA", Description: "d", Credits: 10})
	require.NoError(t, err)

	credits := int64(75)
	repo.edit = func() {
		_, err := svc.Update(ctx, cause.ID, UpdateInput{Credits: &credits})
		require.NoError(t, err)
	}
	withLogo, err := svc.SetLogo(ctx, cause.ID, "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, int64(75), withLogo.Credits)
	assert.NotEmpty(t, withLogo.LogoKey)

	negative := int64(-1)
	_, err = svc.Update(ctx, cause.ID, UpdateInput{Credits: &negative})
	assert.ErrorIs(t, err, ErrInvalid)
	stored, err := svc.Get(ctx, cause.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(75), stored.Credits)
	assert.Equal(t, withLogo.LogoKey, stored.LogoKey)
}

func TestSetLogoReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	cause, err := svc.Create(ctx, CreateInput{Name: "TEMA", Description: "d", Credits: 10})
	require.NoError(t, err)

	_, err = svc.SetLogo(ctx, cause.ID, "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedLogo)

	first, err := svc.SetLogo(ctx, cause.ID, "image/png", strings.NewReader("png-1"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(first.LogoKey, ".png"))

	svc.now = func() time.Time { return time.Now().Add(time.Second) }
	second, err := svc.SetLogo(ctx, cause.ID, "image/jpeg; charset=binary", strings.NewReader("jpg-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.LogoKey, second.LogoKey)

	_, err = store.Open(ctx, first.LogoKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	body, err := storage.ReadString(ctx, store, second.LogoKey)
	require.NoError(t, err)
	assert.Equal(t, "jpg-2", body)

	require.NoError(t, svc.Delete(ctx, cause.ID))
	_, err = store.Open(ctx, second.LogoKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, cause.ID), ErrNotFound)
}

func TestHandlerSignsLogoURL(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	cause, err := svc.Create(ctx, CreateInput{Name: "TEMA", Description: "d", Credits: 10})
	require.NoError(t, err)

	signer := storage.NewSigner("http://api.test/api/v1/files", []byte("k"))
	h := NewHandler(svc, signer, time.Hour)
	app := fiber.New()
	app.Put("/causes/:id/logo", h.SetLogo)
	app.Get("/causes", h.List)

	req := httptest.NewRequest(fiber.MethodPut, "/causes/"+cause.ID+"/logo", strings.NewReader("png"))
	req.Header.Set(fiber.HeaderContentType, "image/png")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got causeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, strings.HasPrefix(got.LogoURL, "http://api.test/api/v1/files/causes/"+cause.ID+"/logo-"))
	assert.Contains(t, got.LogoURL, "sig=")

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/causes?active=true", nil))
	require.NoError(t, err)
	var listed struct {
		Causes []causeResponse `json:"causes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed.Causes, 1)
	assert.NotEmpty(t, listed.Causes[0].LogoURL)
}
