package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/donustur/donustur/internal/storage"
)

const codePlaceholder = "${code}"

// ErrTemplateMissing is returned when a trigger's template is absent or empty.
var ErrTemplateMissing = errors.New("failed to load email template")

//go:embed templates/*.html
var defaultTemplates embed.FS

// Message is a rendered email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	Trigger  string
}

// Renderer turns a trigger and code into an email using templates held in
// object storage.
type Renderer struct {
	store   storage.Store
	catalog Catalog
	logger  *slog.Logger
}

// NewRenderer builds a renderer.
func NewRenderer(store storage.Store, catalog Catalog, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{store: store, catalog: catalog, logger: logger}
}

// Render loads the trigger's template and substitutes the first ${code}
// placeholder.
func (r *Renderer) Render(ctx context.Context, trigger, to, code string) (Message, error) {
	entry, known := r.catalog.Resolve(trigger)
	if !known {
		r.logger.WarnContext(ctx, "using default template key and subject for trigger", slog.String("trigger", trigger))
	}

	body, err := storage.ReadString(ctx, r.store, entry.Template)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Message{}, fmt.Errorf("%w: %s", ErrTemplateMissing, entry.Template)
		}
		return Message{}, fmt.Errorf("load template %s: %w", entry.Template, err)
	}
	if strings.TrimSpace(body) == "" {
		return Message{}, fmt.Errorf("%w: %s is empty", ErrTemplateMissing, entry.Template)
	}

	return Message{
		To:       to,
		Subject:  entry.Subject,
		HTMLBody: strings.Replace(body, codePlaceholder, code, 1),
		Trigger:  trigger,
	}, nil
}

// InstallDefaultTemplates copies the bundled templates into the store under
// the catalogue prefix unless an object already exists there.
func InstallDefaultTemplates(ctx context.Context, store storage.Store, catalog Catalog) ([]string, error) {
	names, err := fs.Glob(defaultTemplates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	var installed []string
	for _, name := range names {
		key := catalog.TemplatePrefix + path.Base(name)
		rc, err := store.Open(ctx, key)
		if err == nil {
			rc.Close()
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return installed, err
		}
		body, err := defaultTemplates.ReadFile(name)
		if err != nil {
			return installed, err
		}
		if err := store.Put(ctx, key, bytes.NewReader(body)); err != nil {
			return installed, fmt.Errorf("install %s: %w", key, err)
		}
		installed = append(installed, key)
	}
	return installed, nil
}
