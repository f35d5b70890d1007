package repository

import (
	"context"
	"time"

	"github.com/eaglebank/identity-service/shared/models"
	sharedredis "github.com/eaglebank/identity-service/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const userViewKeyPrefix = "user:view:"

// UserReadRepository keeps the Redis read model of users current.
type UserReadRepository struct {
	cache *sharedredis.ViewCache[models.UserView]
}

func NewUserReadRepository(redisClient *goredis.Client, ttl time.Duration) *UserReadRepository {
	return &UserReadRepository{
		cache: sharedredis.NewViewCache[models.UserView](redisClient, ttl),
	}
}

// CacheUserView stores or refreshes the projection after a mutation.
func (r *UserReadRepository) CacheUserView(ctx context.Context, view *models.UserView) error {
	return r.cache.Set(ctx, userViewKeyPrefix+view.ID, view)
}

// EvictUserView drops the projection of a user that no longer exists.
func (r *UserReadRepository) EvictUserView(ctx context.Context, id string) error {
	return r.cache.Delete(ctx, userViewKeyPrefix+id)
}
