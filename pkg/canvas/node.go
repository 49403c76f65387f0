package canvas

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"gopkg.in/yaml.v3"
)

// NodeType is the kind of a journey node.
type NodeType string

const (
	NodeStart  NodeType = "start"
	NodeEmail  NodeType = "email"
	NodeInApp  NodeType = "inapp"
	NodePush   NodeType = "push"
	NodeBranch NodeType = "branch"
	NodeWait   NodeType = "wait"
	NodeExit   NodeType = "exit"
)

// IsChannel reports whether nodes of this type hand a message to a delivery channel.
func (t NodeType) IsChannel() bool {
	return t == NodeEmail || t == NodeInApp || t == NodePush
}

// Branch edge handles.
const (
	HandleYes = "yes"
	HandleNo  = "no"
)

// NodeConfig is the type-specific configuration of a node. The concrete type is
// fixed by the node type when the node is decoded.
type NodeConfig interface {
	isNodeConfig()
}

// StartConfig configures the start node.
type StartConfig struct{}

// ChannelConfig configures email, in-app and push nodes.
type ChannelConfig struct {
	TemplateID string            `yaml:"template_id" json:"templateId"`
	Subject    string            `yaml:"subject,omitempty" json:"subject,omitempty"`
	Title      string            `yaml:"title,omitempty" json:"title,omitempty"`
	Body       string            `yaml:"body,omitempty" json:"body,omitempty"`
	Data       map[string]string `yaml:"data,omitempty" json:"data,omitempty"`
}

// BranchConfig configures a branch node. Customers matching the condition follow
// the "yes" edge, everyone else the "no" edge.
type BranchConfig struct {
	Condition rule.Condition `yaml:",inline"`
}

// WaitConfig configures a wait node, either as a Go duration string ("36h") or
// as an amount of minutes, hours or days.
type WaitConfig struct {
	Duration string `yaml:"duration,omitempty" json:"duration,omitempty"`
	Amount   int    `yaml:"amount,omitempty" json:"amount,omitempty"`
	Unit     string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// ExitConfig configures an explicit exit node.
type ExitConfig struct {
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

func (StartConfig) isNodeConfig()   {}
func (ChannelConfig) isNodeConfig() {}
func (BranchConfig) isNodeConfig()  {}
func (WaitConfig) isNodeConfig()    {}
func (ExitConfig) isNodeConfig()    {}

// MarshalJSON flattens the condition so branch config reads {"rules":...,"combination":...}.
func (c BranchConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Condition)
}

func (c *BranchConfig) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.Condition)
}

// Delay returns the wait time of the node.
func (c WaitConfig) Delay() (time.Duration, error) {
	if c.Duration != "" {
		d, err := time.ParseDuration(c.Duration)
		if err != nil {
			return 0, fmt.Errorf("invalid wait duration %q: %w", c.Duration, err)
		}
		if d <= 0 {
			return 0, fmt.Errorf("wait duration must be positive, got %s", c.Duration)
		}
		return d, nil
	}

	if c.Amount <= 0 {
		return 0, fmt.Errorf("wait amount must be positive, got %d", c.Amount)
	}

	switch strings.ToLower(c.Unit) {
	case "minute", "minutes":
		return time.Duration(c.Amount) * time.Minute, nil
	case "hour", "hours":
		return time.Duration(c.Amount) * time.Hour, nil
	case "day", "days":
		return time.Duration(c.Amount) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown wait unit %q (expected minutes, hours or days)", c.Unit)
}

// Position is the editor placement of a node. It is carried through untouched.
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Node is one step of a journey graph.
type Node struct {
	ID       string     `yaml:"id" json:"id"`
	Type     NodeType   `yaml:"type" json:"type"`
	Config   NodeConfig `yaml:"config" json:"config"`
	Position *Position  `yaml:"position,omitempty" json:"position,omitempty"`
}

type nodeWire struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Config   json.RawMessage `json:"config,omitempty"`
	Position *Position       `json:"position,omitempty"`
}

// UnmarshalJSON decodes the node and its config into the concrete type for the node type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var wire nodeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	cfg, err := DecodeConfig(wire.Type, wire.Config)
	if err != nil {
		return fmt.Errorf("node %q: %w", wire.ID, err)
	}

	*n = Node{ID: wire.ID, Type: wire.Type, Config: cfg, Position: wire.Position}
	return nil
}

func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var wire struct {
		ID       string    `yaml:"id"`
		Type     NodeType  `yaml:"type"`
		Config   yaml.Node `yaml:"config"`
		Position *Position `yaml:"position"`
	}
	if err := value.Decode(&wire); err != nil {
		return err
	}

	cfg, err := newConfig(wire.Type)
	if err != nil {
		return fmt.Errorf("line %d: node %q: %w", value.Line, wire.ID, err)
	}
	if !wire.Config.IsZero() {
		if err := wire.Config.Decode(cfg); err != nil {
			return fmt.Errorf("line %d: node %q config: %w", value.Line, wire.ID, err)
		}
	}

	*n = Node{ID: wire.ID, Type: wire.Type, Config: deref(cfg), Position: wire.Position}
	return nil
}

// DecodeConfig decodes raw JSON config for a node type. Unknown node types are rejected.
func DecodeConfig(t NodeType, raw json.RawMessage) (NodeConfig, error) {
	cfg, err := newConfig(t)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", t, err)
		}
	}
	return deref(cfg), nil
}

func newConfig(t NodeType) (interface{}, error) {
	switch t {
	case NodeStart:
		return &StartConfig{}, nil
	case NodeEmail, NodeInApp, NodePush:
		return &ChannelConfig{}, nil
	case NodeBranch:
		return &BranchConfig{}, nil
	case NodeWait:
		return &WaitConfig{}, nil
	case NodeExit:
		return &ExitConfig{}, nil
	}
	return nil, fmt.Errorf("unknown node type %q", t)
}

func deref(cfg interface{}) NodeConfig {
	switch c := cfg.(type) {
	case *StartConfig:
		return *c
	case *ChannelConfig:
		return *c
	case *BranchConfig:
		return *c
	case *WaitConfig:
		return *c
	case *ExitConfig:
		return *c
	}
	return nil
}

// Channel returns the channel config of an email, in-app or push node.
func (n Node) Channel() (ChannelConfig, bool) {
	c, ok := n.Config.(ChannelConfig)
	return c, ok && n.Type.IsChannel()
}

// Branch returns the config of a branch node.
func (n Node) Branch() (BranchConfig, bool) {
	c, ok := n.Config.(BranchConfig)
	return c, ok
}

// Wait returns the config of a wait node.
func (n Node) Wait() (WaitConfig, bool) {
	c, ok := n.Config.(WaitConfig)
	return c, ok
}

// Edge connects two nodes. SourceHandle tells apart multiple outgoing edges of
// one node, such as a branch's "yes" and "no".
type Edge struct {
	ID           string `yaml:"id" json:"id"`
	Source       string `yaml:"source" json:"source"`
	SourceHandle string `yaml:"source_handle,omitempty" json:"sourceHandle,omitempty"`
	Target       string `yaml:"target" json:"target"`
}
