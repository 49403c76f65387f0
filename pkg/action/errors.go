package action

import "errors"

var (
	// ErrActionNotFound indicates that a requested action doesn't exist in the registry.
	ErrActionNotFound = errors.New("action not found in registry")

	// ErrNoChannelAction indicates that no enabled action serves a delivery channel.
	ErrNoChannelAction = errors.New("no action serves channel")

	// ErrInvalidConfig indicates that an action's configuration is invalid.
	ErrInvalidConfig = errors.New("invalid action configuration")
)
