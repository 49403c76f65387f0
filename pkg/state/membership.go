package state

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisMembership keeps the last segment-entry membership of each journey in
// a Redis set.
type RedisMembership struct {
	client *redis.Client
}

func NewRedisMembership(client *redis.Client) *RedisMembership {
	return &RedisMembership{client: client}
}

func membershipKey(journeyID string) string {
	return membershipKeyPrefix + journeyID
}

func (m *RedisMembership) Entered(ctx context.Context, journeyID string, members []string) ([]string, error) {
	seen, err := m.client.SMembers(ctx, membershipKey(journeyID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load membership of journey %s: %w", journeyID, err)
	}

	known := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		known[id] = struct{}{}
	}
	var entered []string
	for _, id := range members {
		if _, ok := known[id]; !ok {
			entered = append(entered, id)
		}
	}
	return entered, nil
}

func (m *RedisMembership) Commit(ctx context.Context, journeyID string, members []string) error {
	key := membershipKey(journeyID)
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			args := make([]interface{}, len(members))
			for i, id := range members {
				args[i] = id
			}
			pipe.SAdd(ctx, key, args...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store membership of journey %s: %w", journeyID, err)
	}
	return nil
}
