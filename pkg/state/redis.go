// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	// KeyPrefix is the prefix for every key this service writes.
	KeyPrefix = "marketing_automation:"

	audienceKeyPrefix   = KeyPrefix + "audience:"
	lockKeyPrefix       = KeyPrefix + "lock:"
	attributeKeyPrefix  = KeyPrefix + "attrs:"
	customersKeyPrefix  = KeyPrefix + "customers:"
	locationKeyPrefix   = KeyPrefix + "location_customers:"
	membershipKeyPrefix = KeyPrefix + "journey_members:"
)

// RedisConfig holds connection settings for InitRedisClient.
type RedisConfig struct {
	Host       string
	Port       string
	Password   string
	MaxRetries int
}

// InitRedisClient connects to Redis, retrying the initial ping with
// exponential backoff.
func InitRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Host + ":" + cfg.Port,
		Password:     cfg.Password,
		DB:           0, // use default DB
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)

	err := backoff.Retry(func() error {
		if _, err := client.Ping(ctx).Result(); err != nil {
			logrus.Warnf("Redis connection failed: %v, retrying...", err)
			return err
		}
		return nil
	}, b)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	logrus.Infof("connected to Redis at %s:%s", cfg.Host, cfg.Port)
	return client, nil
}
