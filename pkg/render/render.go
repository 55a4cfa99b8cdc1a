// Package render executes the embedded HTML page templates.
//
// Every page under templates/<section>/<page>.html defines "content" and is
// wrapped by the shared "layout" in templates/layout.html. Pages are looked
// up by their path relative to templates/, e.g. "errors/404.html".
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/ghuser/dkn/pkg/auth"
)

//go:embed templates
var templateFS embed.FS

// Page names used outside their own service.
const (
	PageNotFound    = "errors/404.html"
	PageForbidden   = "errors/403.html"
	PageServerError = "errors/500.html"
)

// ErrUnknownPage is returned when Render is asked for a page that was not parsed.
var ErrUnknownPage = errors.New("unknown page template")

// View is the data every page receives. CurrentUser is Anonymous for
// requests without a login.
type View struct {
	Title       string
	CurrentUser auth.User
	Flashes     []auth.Flash
	CSRFField   template.HTML
	Data        any
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every embedded page. urlFor resolves endpoint names in
// templates through the "url" function.
func New(urlFor func(name string) string) (*Renderer, error) {
	funcs := template.FuncMap{
		"url": urlFor,
	}

	paths, err := fs.Glob(templateFS, "templates/*/*.html")
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(paths))
	for _, p := range paths {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", p)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		pages[strings.TrimPrefix(p, "templates/")] = t
	}
	return &Renderer{pages: pages}, nil
}

// Has reports whether name is a known page.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render executes page name into a buffer and, only on success, writes it
// with status. Nothing is written when execution fails.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, v View) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}
