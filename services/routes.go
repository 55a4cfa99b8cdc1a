// Package services lists the application's route groups and background
// subscribers.
package services

import (
	"context"

	"github.com/ghuser/dkn/pkg/app"
	authapi "github.com/ghuser/dkn/services/auth/application/api"
	authsvcs "github.com/ghuser/dkn/services/auth/application/services"
	"github.com/ghuser/dkn/services/auth/application/subscribers"
	homeapi "github.com/ghuser/dkn/services/home/application/api"
	searchapi "github.com/ghuser/dkn/services/search/application/api"
	sectionsapi "github.com/ghuser/dkn/services/sections/application/api"
)

// RouteGroups returns the groups in registration order.
func RouteGroups() []app.RouteGroup {
	return []app.RouteGroup{
		{Name: "main", Register: homeapi.HomeRoutes},
		{Name: "auth", Register: authapi.AuthRoutes},
		{Name: "consultant", Register: sectionsapi.ConsultantRoutes},
		{Name: "champion", Register: sectionsapi.ChampionRoutes},
		{Name: "governance", Register: sectionsapi.GovernanceRoutes},
		{Name: "admin", Register: sectionsapi.AdminRoutes},
		{Name: "search", Register: searchapi.SearchRoutes},
	}
}

// StartSubscribers registers every event consumer on a's bus.
func StartSubscribers(ctx context.Context, a *app.Application) error {
	return subscribers.StartLastLogin(ctx, a, authsvcs.New(a))
}
