package action

import (
	"errors"
	"testing"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
)

func TestCreateAction(t *testing.T) {
	RegisterActionType("test.factory", func(config ActionConfig) (Action, error) {
		return &testAction{config: config}, nil
	})

	tests := []struct {
		name      string
		config    ActionConfig
		expectNil bool
		expectErr error
	}{
		{"enabled", ActionConfig{ID: "a1", Type: "test.factory", Enabled: true, Channels: []canvas.NodeType{canvas.NodeEmail}}, false, nil},
		{"disabled", ActionConfig{ID: "a2", Type: "test.factory"}, true, nil},
		{"unknown type", ActionConfig{ID: "a3", Type: "missing", Enabled: true}, true, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := CreateAction(tt.config)
			if !errors.Is(err, tt.expectErr) {
				t.Errorf("CreateAction() error = %v, expected %v", err, tt.expectErr)
			}
			if (act == nil) != tt.expectNil {
				t.Errorf("CreateAction() = %v, expectNil %v", act, tt.expectNil)
			}
		})
	}

	if !IsRegisteredType("test.factory") || IsRegisteredType("missing") {
		t.Error("IsRegisteredType() mismatch")
	}
}

func TestRegisterActions(t *testing.T) {
	RegisterActionType("test.factory", func(config ActionConfig) (Action, error) {
		return &testAction{config: config}, nil
	})
	registry := NewRegistry()

	err := RegisterActions(registry, []ActionConfig{
		{ID: "a1", Type: "test.factory", Enabled: true},
		{ID: "a2", Type: "missing", Enabled: true},
		{ID: "a3", Type: "test.factory"},
	})
	if err != nil {
		t.Fatalf("RegisterActions() error = %v", err)
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, expected 1", registry.Count())
	}
}
