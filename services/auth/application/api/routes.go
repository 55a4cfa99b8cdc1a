package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ghuser/dkn/pkg/app"
	"github.com/ghuser/dkn/services/auth/application/handlers"
	appsvcs "github.com/ghuser/dkn/services/auth/application/services"
)

// loginAttemptsPerMinute bounds password guessing per client IP.
const loginAttemptsPerMinute = 10

// AuthRoutes registers the login and logout endpoints and installs the
// session user loader on the application's login manager.
func AuthRoutes(r chi.Router, a *app.Application) {
	svcs := appsvcs.New(a)
	a.Login.SetUserLoader(svcs.Users.LoadSessionUser)

	h := handlers.NewLoginHandler(a, svcs)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.Show)
		r.With(httprate.LimitByIP(loginAttemptsPerMinute, time.Minute)).Post("/login", h.Submit)
		r.Post("/logout", h.Logout)
	})

	a.Endpoint("auth.login", "/auth/login")
	a.Endpoint("auth.logout", "/auth/logout")
}
