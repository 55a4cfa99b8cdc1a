package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// UserCacheTTL bounds how long a role or activation change can go unseen
	// by the session user loader.
	UserCacheTTL = 5 * time.Minute

	userCacheKeyPrefix = "user"
)

// CachedUser is the identity snapshot the session loader needs on every
// request. Stored as a Redis hash under "user:{id}".
type CachedUser struct {
	ID       uuid.UUID
	Username string
	Email    string
	Role     string
	IsActive bool
}

// UserCache is a read-through cache in front of the users table.
type UserCache struct {
	client *RedisClient
}

func NewUserCache(r *RedisClient) *UserCache {
	return &UserCache{client: r}
}

// Get returns redis.Nil when the entry does not exist or has expired.
func (c *UserCache) Get(ctx context.Context, id uuid.UUID) (*CachedUser, error) {
	vals, err := c.client.Client().HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if len(vals) == 0 {
		return nil, redis.Nil
	}

	uid, err := uuid.Parse(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("cache parse id: %w", err)
	}
	active, err := strconv.ParseBool(vals["is_active"])
	if err != nil {
		return nil, fmt.Errorf("cache parse is_active: %w", err)
	}

	return &CachedUser{
		ID:       uid,
		Username: vals["username"],
		Email:    vals["email"],
		Role:     vals["role"],
		IsActive: active,
	}, nil
}

// Set writes the snapshot and its TTL in one pipeline.
func (c *UserCache) Set(ctx context.Context, u *CachedUser) error {
	key := c.key(u.ID)
	pipe := c.client.Client().Pipeline()
	pipe.HSet(ctx, key,
		"id", u.ID.String(),
		"username", u.Username,
		"email", u.Email,
		"role", u.Role,
		"is_active", strconv.FormatBool(u.IsActive),
	)
	pipe.Expire(ctx, key, UserCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *UserCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Client().Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *UserCache) key(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", userCacheKeyPrefix, id)
}
