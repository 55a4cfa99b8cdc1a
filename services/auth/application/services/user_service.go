package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"

	"github.com/ghuser/dkn/pkg/auth"
	pkgcache "github.com/ghuser/dkn/pkg/cache"
	"github.com/ghuser/dkn/pkg/events"
	"github.com/ghuser/dkn/pkg/logger"
	authdomain "github.com/ghuser/dkn/services/auth/domain"
	domainevents "github.com/ghuser/dkn/services/auth/domain/events"
	"github.com/ghuser/dkn/services/auth/domain/models"
	"github.com/ghuser/dkn/services/auth/domain/repositories"
	domainsvcs "github.com/ghuser/dkn/services/auth/domain/services"
)

// dummyHash is compared against when the username does not exist so an
// unknown account costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dkn-timing-equaliser-0"), bcrypt.DefaultCost)

// SearchPage is one page of the user directory.
type SearchPage struct {
	Query   string
	Users   []*models.User
	Total   int
	Page    int
	PerPage int
}

// HasPrev reports whether a page precedes this one.
func (p SearchPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether results continue past this page.
func (p SearchPage) HasNext() bool { return p.Page < p.Pages() }

// Pages is the number of pages; an empty result still has one.
func (p SearchPage) Pages() int { return pageCount(p.Total, p.PerPage) }

func pageCount(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 1
	}
	return (total-1)/perPage + 1
}

// UserService orchestrates account creation, password login and the
// session user lookups. Reads for the session loader are served from Redis
// when a cache is configured.
type UserService struct {
	repo     repositories.UserRepository
	cache    *pkgcache.UserCache
	bus      *events.EventBus
	log      logger.Logger
	logins   metric.Int64Counter
	hashCost int
}

// NewUserService wires the service. cache, bus and meter may be nil.
func NewUserService(
	repo repositories.UserRepository,
	userCache *pkgcache.UserCache,
	bus *events.EventBus,
	meter metric.Meter,
	log logger.Logger,
) *UserService {
	s := &UserService{repo: repo, cache: userCache, bus: bus, log: log, hashCost: bcrypt.DefaultCost}
	if meter != nil {
		c, err := meter.Int64Counter("dkn.auth.logins",
			metric.WithDescription("Login attempts by result"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Warn("failed to create login counter", "error", err)
		} else {
			s.logins = c
		}
	}
	return s
}

// CreateUser validates the input, hashes the password and persists a new
// active user. An empty role means consultant.
func (s *UserService) CreateUser(ctx context.Context, username, email, password, role string) (*models.User, error) {
	name, err := models.NewUsername(username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", authdomain.ErrInvalidUsername, err)
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", authdomain.ErrInvalidRole, err)
	}
	if err := domainsvcs.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %w", authdomain.ErrInvalidEmail, err)
	}
	if err := domainsvcs.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", authdomain.ErrWeakPassword, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.NewUser(name, email, string(hash), r)
	if err := domainsvcs.ValidateUserForCreation(user); err != nil {
		return nil, fmt.Errorf("validate user: %w", err)
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// SeedAdmin creates an admin account only while the users table is empty.
// It reports whether a user was created.
func (s *UserService) SeedAdmin(ctx context.Context, username, email, password string) (bool, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, username, email, password, models.RoleAdmin.String()); err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate checks username and password. Unknown usernames and wrong
// passwords both return ErrInvalidCredentials; disabled accounts return
// ErrInactiveUser. A successful login publishes UserLoggedInEvent.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			s.countLogin(ctx, "invalid")
			return nil, authdomain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.countLogin(ctx, "invalid")
		return nil, authdomain.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.countLogin(ctx, "inactive")
		return nil, authdomain.ErrInactiveUser
	}

	s.countLogin(ctx, "success")
	s.publishLoggedIn(ctx, user)
	return user, nil
}

func (s *UserService) publishLoggedIn(ctx context.Context, user *models.User) {
	if s.bus == nil {
		return
	}
	evt := domainevents.UserLoggedInEvent{
		EventID:    uuid.New(),
		Version:    1,
		UserID:     user.ID,
		Username:   user.Username.String(),
		OccurredAt: time.Now().UTC(),
	}
	msg, err := events.NewMessage(evt)
	if err == nil {
		msg.Metadata.Set("event_id", evt.EventID.String())
		msg.Metadata.Set("event_version", "1")
		err = s.bus.Publish(ctx, domainevents.TopicUserLoggedIn, msg)
	}
	if err != nil {
		// The login itself has succeeded; only last-login tracking is lost.
		s.log.WarnContext(ctx, "failed to publish login event", "user_id", user.ID, "error", err)
	}
}

func (s *UserService) countLogin(ctx context.Context, result string) {
	if s.logins != nil {
		s.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

// RecordLogin stores the login time and drops the cached snapshot.
func (s *UserService) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.repo.UpdateLastLogin(ctx, id, at); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

// LoadSessionUser resolves a session's user id to an identity using a
// read-through cache:
//  1. Check Redis first.
//  2. On a miss (or cache error), query the database.
//  3. Warm the cache with the database result.
//
// Missing and disabled accounts return auth.ErrUnknownUser.
func (s *UserService) LoadSessionUser(ctx context.Context, id uuid.UUID) (auth.User, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		switch {
		case err == nil:
			if !cached.IsActive {
				return auth.Anonymous, auth.ErrUnknownUser
			}
			return auth.User{ID: cached.ID, Username: cached.Username, Email: cached.Email, Role: cached.Role}, nil
		case !errors.Is(err, redis.Nil):
			s.log.WarnContext(ctx, "user cache read failed", "user_id", id, "error", err)
		}
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			return auth.Anonymous, auth.ErrUnknownUser
		}
		return auth.Anonymous, fmt.Errorf("load session user: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, &pkgcache.CachedUser{
			ID:       user.ID,
			Username: user.Username.String(),
			Email:    user.Email,
			Role:     user.Role.String(),
			IsActive: user.IsActive,
		}); err != nil {
			s.log.WarnContext(ctx, "user cache write failed", "user_id", id, "error", err)
		}
	}

	if !user.IsActive {
		return auth.Anonymous, auth.ErrUnknownUser
	}
	return Identity(user), nil
}

// Search returns page (1-based) of the user directory. Pages below 1 are
// treated as 1 and pages past the end as the last page.
func (s *UserService) Search(ctx context.Context, query string, page, perPage int) (SearchPage, error) {
	if perPage < 1 {
		perPage = 10
	}
	// The offset (page-1)*perPage must stay within int.
	page = max(1, min(page, math.MaxInt/perPage))

	search := func(page int) ([]*models.User, int, error) {
		users, total, err := s.repo.Search(ctx, query, repositories.QueryOpts{
			Limit:  perPage,
			Offset: (page - 1) * perPage,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("search users: %w", err)
		}
		return users, total, nil
	}

	users, total, err := search(page)
	if err != nil {
		return SearchPage{}, err
	}
	if last := pageCount(total, perPage); page > last {
		page = last
		if users, total, err = search(page); err != nil {
			return SearchPage{}, err
		}
	}
	return SearchPage{Query: query, Users: users, Total: total, Page: page, PerPage: perPage}, nil
}

// RoleCounts returns the number of active users per role, with every role present.
func (s *UserService) RoleCounts(ctx context.Context) (map[models.Role]int, error) {
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("role counts: %w", err)
	}
	for _, r := range models.Roles {
		if _, ok := counts[r]; !ok {
			counts[r] = 0
		}
	}
	return counts, nil
}

func (s *UserService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.WarnContext(ctx, "user cache delete failed", "user_id", id, "error", err)
	}
}

// Identity maps a domain user to the identity carried on requests.
func Identity(u *models.User) auth.User {
	return auth.User{
		ID:       u.ID,
		Username: u.Username.String(),
		Email:    u.Email,
		Role:     u.Role.String(),
	}
}
