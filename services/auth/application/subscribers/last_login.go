// Package subscribers consumes user-domain events.
package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/dkn/pkg/app"
	appsvcs "github.com/ghuser/dkn/services/auth/application/services"
	authdomain "github.com/ghuser/dkn/services/auth/domain"
	domainevents "github.com/ghuser/dkn/services/auth/domain/events"
)

// StartLastLogin subscribes to user.logged_in and stores each login time on
// the user row. It returns once the subscription is registered; handler
// failures are logged until ctx is cancelled or the bus closes.
func StartLastLogin(ctx context.Context, a *app.Application, svcs *appsvcs.Services) error {
	errCh, err := a.EventBus.Subscribe(ctx, domainevents.TopicUserLoggedIn, LastLoginHandler(svcs.Users))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", domainevents.TopicUserLoggedIn, err)
	}
	go func() {
		for err := range errCh {
			a.Logger.ErrorContext(ctx, "last-login handler failed", "error", err)
		}
	}()
	return nil
}

// LastLoginHandler decodes a UserLoggedInEvent and records it. Events for
// deleted users are acknowledged without retry.
func LastLoginHandler(users *appsvcs.UserService) func(context.Context, *message.Message) error {
	return func(ctx context.Context, msg *message.Message) error {
		var evt domainevents.UserLoggedInEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			// A malformed payload will never decode; retrying cannot help.
			return nil
		}
		err := users.RecordLogin(ctx, evt.UserID, evt.OccurredAt)
		if errors.Is(err, authdomain.ErrUserNotFound) {
			return nil
		}
		return err
	}
}
