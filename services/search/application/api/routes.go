package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ghuser/dkn/pkg/app"
	appsvcs "github.com/ghuser/dkn/services/auth/application/services"
	"github.com/ghuser/dkn/services/search/application/handlers"
)

// SearchRoutes registers the login-only user directory as search.index.
func SearchRoutes(r chi.Router, a *app.Application) {
	h := handlers.NewSearchHandler(a, appsvcs.New(a).Users)
	r.With(a.Login.RequireLogin).Get("/search", h.Execute)
	a.Endpoint("search.index", "/search")
}
