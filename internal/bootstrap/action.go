// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/action"
	actionBuiltin "github.com/AccelByte/extend-marketing-automation/pkg/action/builtin"
	"github.com/AccelByte/extend-marketing-automation/pkg/catalog"
	"github.com/sirupsen/logrus"
)

// InitActionExecutor creates the executor that hands journey deliveries to
// their channel actions, configured from the catalog's channels section.
//
// ============================================================
// DEVELOPER: Register custom action types here.
// ============================================================
// Actions deliver email, in-app and push messages. Each channel
// entry in config/catalog.yaml binds an action type to the node
// types it serves.
//
// Steps to add a new action:
// 1. Create your action in pkg/action/builtin/
// 2. Implement the Action interface
// 3. Register the action type in pkg/action/builtin/init.go
// 4. Add a channel entry to config/catalog.yaml
//
// The builtin actions:
// - builtin.publish → publishes a DeliveryRequest on the message bus
// - builtin.log → logs the delivery (local development)
// ============================================================
func InitActionExecutor(
	cat *catalog.Catalog,
	deps *actionBuiltin.Dependencies,
	timeout time.Duration,
) (*action.Executor, error) {
	actionBuiltin.RegisterActions(deps)

	if err := catalog.ValidateWiring(cat); err != nil {
		return nil, err
	}
	logrus.Info("catalog wiring validation passed")

	registry := action.NewRegistry()
	if err := action.RegisterActions(registry, cat.Channels); err != nil {
		return nil, fmt.Errorf("failed to register actions: %w", err)
	}

	logrus.Infof("registered %d channel actions", registry.Count())

	executor := action.NewExecutor(registry)
	executor.SetActionTimeout(timeout)
	logrus.Infof("initialized action executor (action timeout %s)", timeout)

	return executor, nil
}
