// Package api mounts the public landing page.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/dkn/pkg/app"
)

type homePage struct{}

func (homePage) PageTitle() string { return "Home" }

// HomeRoutes registers GET / as the main.index endpoint.
func HomeRoutes(r chi.Router, a *app.Application) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		a.Render(w, r, http.StatusOK, "main/index.html", homePage{})
	})
	a.Endpoint("main.index", "/")
}
