package remote

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 3 * time.Second

// Redis is a Store backed by one Redis set per user.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed completion store.
func NewRedis(client *redis.Client) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}
	return &Redis{client: client}, nil
}

// completionKey returns the set key holding a user's completed chapters.
func completionKey(userID string) string {
	return "progress:" + userID + ":completed"
}

func (s *Redis) FetchUnits(ctx context.Context, userID string) (map[int]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	members, err := s.client.SMembers(ctx, completionKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch completions: %w", err)
	}

	units := map[int]struct{}{}
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil || id <= 0 {
			continue
		}
		units[id] = struct{}{}
	}
	return units, nil
}

func (s *Redis) UpsertCompletion(ctx context.Context, userID string, unitID int, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	key := completionKey(userID)
	if completed {
		if err := s.client.SAdd(ctx, key, unitID).Err(); err != nil {
			return fmt.Errorf("add completion: %w", err)
		}
		return nil
	}
	if err := s.client.SRem(ctx, key, unitID).Err(); err != nil {
		return fmt.Errorf("remove completion: %w", err)
	}
	return nil
}
