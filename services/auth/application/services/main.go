package services

import (
	"github.com/ghuser/dkn/pkg/app"
	"github.com/ghuser/dkn/services/auth/infrastructure/persistence/sqlstore"
)

// Services is the application-layer service container for this bounded context.
// It wires domain services with their infrastructure implementations.
type Services struct {
	Users *UserService
}

// New wires all user application services with infrastructure from the Application container.
func New(a *app.Application) *Services {
	repo := sqlstore.NewUserRepository(a.Db)
	return &Services{
		Users: NewUserService(repo, a.UserCache, a.EventBus, a.Telemetry.Meter("github.com/ghuser/dkn/services/auth"), a.Logger),
	}
}
