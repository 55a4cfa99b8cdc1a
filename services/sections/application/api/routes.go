// Package api mounts the consultant, champion, governance and admin
// workspaces. Each requires a login; all but the consultant workspace also
// require the matching role, and admins pass every gate.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/dkn/pkg/app"
	"github.com/ghuser/dkn/pkg/auth"
	appsvcs "github.com/ghuser/dkn/services/auth/application/services"
	"github.com/ghuser/dkn/services/sections/application/handlers"
)

func ConsultantRoutes(r chi.Router, a *app.Application) {
	mount(r, a, "consultant", a.Login.RequireLogin, handlers.Consultant(a))
}

func ChampionRoutes(r chi.Router, a *app.Application) {
	mount(r, a, "champion", a.Login.RequireRole(a.Forbidden, auth.RoleChampion), handlers.Champion(a))
}

func GovernanceRoutes(r chi.Router, a *app.Application) {
	users := appsvcs.New(a).Users
	mount(r, a, "governance", a.Login.RequireRole(a.Forbidden, auth.RoleGovernance), handlers.Governance(users))
}

func AdminRoutes(r chi.Router, a *app.Application) {
	users := appsvcs.New(a).Users
	mount(r, a, "admin", a.Login.RequireRole(a.Forbidden, auth.RoleAdmin), handlers.Admin(a, users))
}

// mount serves the section at /<name> and records <name>.index.
func mount(r chi.Router, a *app.Application, name string, gate func(http.Handler) http.Handler, build handlers.Builder) {
	path := "/" + name
	r.With(gate).Get(path, handlers.Section(a, build))
	a.Endpoint(name+".index", path)
}
