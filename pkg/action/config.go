package action

import (
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/cenkalti/backoff/v4"
)

// ActionConfig is the base configuration for all actions.
// This is typically loaded from the YAML catalog.
type ActionConfig struct {
	ID      string `yaml:"id" json:"id" validate:"required"`
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type" validate:"required"` // e.g., "builtin.publish"
	Enabled bool   `yaml:"enabled" json:"enabled"`
	// Channels lists the node types the action serves: email, inapp, push.
	Channels   []canvas.NodeType      `yaml:"channels" json:"channels" validate:"required,min=1,dive,oneof=email inapp push"`
	Retry      *RetryConfig           `yaml:"retry,omitempty" json:"retry,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters" json:"parameters"`
}

// Serves reports whether the action handles the channel.
func (c *ActionConfig) Serves(channel canvas.NodeType) bool {
	for _, ch := range c.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// RetryConfig defines retry behavior for failed actions.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=0"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
	Backoff     string        `yaml:"backoff" json:"backoff" validate:"omitempty,oneof=constant exponential"`
}

// BackOff builds the retry policy. A nil config means a single attempt.
func (c *RetryConfig) BackOff() backoff.BackOff {
	if c == nil || c.MaxAttempts <= 1 {
		return &backoff.StopBackOff{}
	}

	var b backoff.BackOff
	switch c.Backoff {
	case "exponential":
		eb := backoff.NewExponentialBackOff()
		if c.Delay > 0 {
			eb.InitialInterval = c.Delay
		}
		b = eb
	default:
		b = backoff.NewConstantBackOff(c.Delay)
	}
	return backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1))
}

// GetParameterInt retrieves an integer parameter with a default.
func (c *ActionConfig) GetParameterInt(key string, defaultValue int) int {
	if val, ok := c.Parameters[key]; ok {
		if intVal, ok := val.(int); ok {
			return intVal
		}
	}
	return defaultValue
}

// GetParameterString retrieves a string parameter with a default.
func (c *ActionConfig) GetParameterString(key string, defaultValue string) string {
	if val, ok := c.Parameters[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return defaultValue
}

// GetParameterBool retrieves a boolean parameter with a default.
func (c *ActionConfig) GetParameterBool(key string, defaultValue bool) bool {
	if val, ok := c.Parameters[key]; ok {
		if boolVal, ok := val.(bool); ok {
			return boolVal
		}
	}
	return defaultValue
}
