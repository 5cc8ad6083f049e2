package notify

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"os"
	texttemplate "text/template"
	"time"

	"github.com/cloudbday/cloudbday/internal/person"
	"github.com/cloudbday/cloudbday/internal/tenant"
)

// Default template names, used when a tenant does not configure its own.
const (
	DefaultHTMLTemplate = "birthday.html"
	DefaultTextTemplate = "birthday.txt"
)

//go:embed templates/*
var builtin embed.FS

// Data is the value templates are executed with.
type Data struct {
	Celebrant *person.Person
	Tenant    *tenant.Tenant
	Date      time.Time
}

// Renderer executes tenant templates. Tenant paths are resolved inside dir;
// a missing file falls back to the built-in template of the same kind.
type Renderer struct {
	files    fs.FS
	defaults fs.FS
}

// NewRenderer creates a renderer reading from dir. An empty dir uses only
// the built-in templates.
func NewRenderer(dir string) *Renderer {
	defaults, _ := fs.Sub(builtin, "templates")
	r := &Renderer{defaults: defaults}
	if dir != "" {
		r.files = os.DirFS(dir)
	}
	return r
}

// Render returns the HTML and text bodies for d.
func (r *Renderer) Render(d Data) (htmlBody, textBody string, err error) {
	htmlSrc, err := r.source(d.Tenant.HTMLTemplate, DefaultHTMLTemplate)
	if err != nil {
		return "", "", err
	}
	textSrc, err := r.source(d.Tenant.TextTemplate, DefaultTextTemplate)
	if err != nil {
		return "", "", err
	}

	ht, err := htmltemplate.New("html").Parse(htmlSrc)
	if err != nil {
		return "", "", fmt.Errorf("parse html template: %w", err)
	}
	tt, err := texttemplate.New("text").Parse(textSrc)
	if err != nil {
		return "", "", fmt.Errorf("parse text template: %w", err)
	}

	var hb, tb bytes.Buffer
	if err := ht.Execute(&hb, d); err != nil {
		return "", "", fmt.Errorf("render html template: %w", err)
	}
	if err := tt.Execute(&tb, d); err != nil {
		return "", "", fmt.Errorf("render text template: %w", err)
	}
	return hb.String(), tb.String(), nil
}

func (r *Renderer) source(name, fallback string) (string, error) {
	if name != "" && r.files != nil {
		if !fs.ValidPath(name) {
			return "", fmt.Errorf("template path %q escapes the templates directory", name)
		}
		b, err := fs.ReadFile(r.files, name)
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read template %s: %w", name, err)
		}
	}
	b, err := fs.ReadFile(r.defaults, fallback)
	if err != nil {
		return "", fmt.Errorf("read built-in template %s: %w", fallback, err)
	}
	return string(b), nil
}
