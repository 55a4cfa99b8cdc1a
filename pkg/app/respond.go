package app

import (
	"errors"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/ghuser/dkn/pkg/auth"
	"github.com/ghuser/dkn/pkg/errhttp"
	"github.com/ghuser/dkn/pkg/httpx"
	"github.com/ghuser/dkn/pkg/render"
)

// Titled is implemented by page data that names its page.
type Titled interface {
	PageTitle() string
}

// Render executes page with the current identity, pending flashes and the
// CSRF field. The identity comes from the request context, so anonymous
// requests render with auth.Anonymous.
func (a *Application) Render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	title := ""
	if t, ok := data.(Titled); ok {
		title = t.PageTitle()
	}
	a.render(w, r, status, page, title, data)
}

func (a *Application) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	v := render.View{
		Title:       title,
		CurrentUser: auth.UserFromCtx(r.Context()),
		Flashes:     a.Login.Flashes(w, r),
		CSRFField:   csrf.TemplateField(r),
		Data:        data,
	}
	if err := a.Renderer.Render(w, status, page, v); err != nil {
		a.Logger.ErrorContext(r.Context(), "render failed", "page", page, "error", err)
		httpx.Text(w, http.StatusInternalServerError, "")
	}
}

// NotFound renders the not-found page with 404.
func (a *Application) NotFound(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusNotFound, render.PageNotFound, "Page Not Found", nil)
}

// Forbidden renders the access-denied page with 403.
func (a *Application) Forbidden(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusForbidden, render.PageForbidden, "Access Denied", nil)
}

// ServerError logs err and renders the server-error page with 500. Outside
// production the error text is shown on the page.
func (a *Application) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = errors.New(http.StatusText(http.StatusInternalServerError))
	}
	a.Logger.ErrorContext(r.Context(), "server error", "path", r.URL.Path, "error", err)

	var detail any
	if !a.Config.IsProduction() {
		detail = httpx.SafeError(err, http.StatusInternalServerError, false)
	}
	a.render(w, r, http.StatusInternalServerError, render.PageServerError, "Internal Server Error", detail)
}

// panicked is the recovery responder; the panic itself is already logged.
func (a *Application) panicked(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusInternalServerError, render.PageServerError, "Internal Server Error", nil)
}

// HandleError answers with the error page matching err's status. Statuses
// without a dedicated page fall back to plain text.
func (a *Application) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	switch status := errhttp.StatusOf(err); status {
	case http.StatusUnauthorized, http.StatusForbidden:
		a.render(w, r, status, render.PageForbidden, "Access Denied", nil)
	case http.StatusNotFound:
		a.NotFound(w, r)
	case http.StatusInternalServerError:
		a.ServerError(w, r, err)
	default:
		a.Logger.WarnContext(r.Context(), "request rejected", "status", status, "error", err)
		httpx.Text(w, status, httpx.SafeError(err, status, a.Config.IsProduction()))
	}
}
