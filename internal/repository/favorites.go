package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"movie-discovery-service/internal/discovery"

	"github.com/redis/go-redis/v9"
)

const (
	favoritesPrefix   = "discovery:favorites:"
	maxToggleAttempts = 64
)

// RedisFavorites keeps one favorites set per owner in a Redis set. Every
// operation is a single Redis transaction, so no per-owner state is held
// in process and several service instances can share the sets.
type RedisFavorites struct {
	client *redis.Client
}

// NewRedisFavorites creates a RedisFavorites sharing client
func NewRedisFavorites(client *redis.Client) *RedisFavorites {
	return &RedisFavorites{client: client}
}

// For returns the store of one owner
func (r *RedisFavorites) For(owner string) discovery.FavoritesStore {
	return &ownerFavorites{client: r.client, key: favoritesPrefix + owner}
}

type ownerFavorites struct {
	client *redis.Client
	key    string
}

func (o *ownerFavorites) Load(ctx context.Context) (map[int]struct{}, error) {
	members, err := o.client.SMembers(ctx, o.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}

	ids := make(map[int]struct{}, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (o *ownerFavorites) Save(ctx context.Context, ids map[int]struct{}) error {
	_, err := o.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, o.key)
		if len(ids) > 0 {
			members := make([]interface{}, 0, len(ids))
			for id := range ids {
				members = append(members, strconv.Itoa(id))
			}
			pipe.SAdd(ctx, o.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	return nil
}

// Toggle flips id with WATCH + MULTI; a concurrent change to the set
// makes the transaction fail and it is retried
func (o *ownerFavorites) Toggle(ctx context.Context, id int) (bool, error) {
	member := strconv.Itoa(id)
	var added bool

	txf := func(tx *redis.Tx) error {
		isMember, err := tx.SIsMember(ctx, o.key, member).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if isMember {
				pipe.SRem(ctx, o.key, member)
			} else {
				pipe.SAdd(ctx, o.key, member)
			}
			return nil
		})
		added = !isMember
		return err
	}

	for i := 0; i < maxToggleAttempts; i++ {
		err := o.client.Watch(ctx, txf, o.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("toggle favorite: %w", err)
		}
		return added, nil
	}
	return false, fmt.Errorf("toggle favorite: %w", redis.TxFailedErr)
}
