package mailer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Authentication triggers that send a code by email.
const (
	TriggerSignUp         = "CustomMessage_SignUp"
	TriggerResendCode     = "CustomMessage_ResendCode"
	TriggerForgotPassword = "CustomMessage_ForgotPassword"
)

// Entry binds a trigger to a template object key and a subject line.
type Entry struct {
	Template string `yaml:"template"`
	Subject  string `yaml:"subject"`
}

// Catalog maps triggers to templates.
type Catalog struct {
	DefaultSubject string           `yaml:"default_subject"`
	TemplatePrefix string           `yaml:"template_prefix"`
	Triggers       map[string]Entry `yaml:"triggers"`
}

// DefaultCatalog returns the built-in trigger mapping. ResendCode reuses the
// sign-up template.
func DefaultCatalog() Catalog {
	const prefix = "email-templates/auth/"
	verify := "Eposta adresini doğrula"
	return Catalog{
		DefaultSubject: "Dönüştür",
		TemplatePrefix: prefix,
		Triggers: map[string]Entry{
			TriggerSignUp:         {Template: prefix + TriggerSignUp + ".html", Subject: verify},
			TriggerResendCode:     {Template: prefix + TriggerSignUp + ".html", Subject: verify},
			TriggerForgotPassword: {Template: prefix + TriggerForgotPassword + ".html", Subject: "Şifreni sıfırla"},
		},
	}
}

// LoadCatalog reads a YAML catalogue and layers it over the defaults. An empty
// path returns the defaults unchanged.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read mail catalog: %w", err)
	}
	var file Catalog
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse mail catalog: %w", err)
	}
	if file.DefaultSubject != "" {
		cat.DefaultSubject = file.DefaultSubject
	}
	if file.TemplatePrefix != "" {
		cat.TemplatePrefix = file.TemplatePrefix
	}
	for trigger, entry := range file.Triggers {
		base, ok := cat.Triggers[trigger]
		if !ok {
			base = cat.fallback(trigger)
		}
		if entry.Template != "" {
			base.Template = entry.Template
		}
		if entry.Subject != "" {
			base.Subject = entry.Subject
		}
		cat.Triggers[trigger] = base
	}
	return cat, nil
}

// Resolve returns the entry for a trigger. Unknown triggers resolve to
// <prefix><trigger>.html with the default subject and ok=false.
func (c Catalog) Resolve(trigger string) (Entry, bool) {
	if entry, ok := c.Triggers[trigger]; ok {
		if entry.Subject == "" {
			entry.Subject = c.DefaultSubject
		}
		return entry, true
	}
	return c.fallback(trigger), false
}

func (c Catalog) fallback(trigger string) Entry {
	return Entry{Template: c.TemplatePrefix + trigger + ".html", Subject: c.DefaultSubject}
}
