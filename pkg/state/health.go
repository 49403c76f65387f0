// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// HealthChecker runs named dependency checks with a shared timeout.
type HealthChecker struct {
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewHealthChecker creates a checker with a 2 second timeout per run.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]CheckFunc),
		timeout: 2 * time.Second,
	}
}

// Add registers a check under name.
func (h *HealthChecker) Add(name string, check CheckFunc) *HealthChecker {
	h.checks[name] = check
	return h
}

// AddRedis registers a PING against client.
func (h *HealthChecker) AddRedis(client *redis.Client) *HealthChecker {
	return h.Add("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// Check runs every check in name order and returns the first failure.
func (h *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			logrus.Errorf("%s health check failed: %v", name, err)
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	logrus.Debugf("health check passed")
	return nil
}

// IsHealthy returns true if every dependency is reachable.
func (h *HealthChecker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx) == nil
}
