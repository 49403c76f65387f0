package journey

import (
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func node(id string, typ canvas.NodeType, cfg canvas.NodeConfig) canvas.Node {
	return canvas.Node{ID: id, Type: typ, Config: cfg}
}

func link(src, handle, dst string) canvas.Edge {
	return canvas.Edge{ID: src + "-" + dst, Source: src, SourceHandle: handle, Target: dst}
}

// welcomeJourney is start -> email -> wait 2d -> branch(orders_count >= 1) -> yes: push / no: exit
func welcomeJourney() *Journey {
	return &Journey{
		ID:             "j1",
		OrganizationID: "org1",
		Name:           "Welcome",
		Status:         StatusDraft,
		TriggerType:    TriggerEvent,
		TriggerEvent:   "user.registered",
		Graph: canvas.Graph{
			Nodes: []canvas.Node{
				node("start", canvas.NodeStart, canvas.StartConfig{}),
				node("mail", canvas.NodeEmail, canvas.ChannelConfig{TemplateID: "tpl-welcome", Subject: "Hi"}),
				node("wait", canvas.NodeWait, canvas.WaitConfig{Amount: 2, Unit: "days"}),
				node("branch", canvas.NodeBranch, canvas.BranchConfig{Condition: rule.Condition{
					Rules:       []rule.SegmentRule{rule.New("orders_count", rule.OpGte, rule.NumberValue(1))},
					Combination: rule.And,
				}}),
				node("push", canvas.NodePush, canvas.ChannelConfig{TemplateID: "tpl-push"}),
				node("bye", canvas.NodeExit, canvas.ExitConfig{Reason: "no order"}),
			},
			Edges: []canvas.Edge{
				link("start", "", "mail"),
				link("mail", "", "wait"),
				link("wait", "", "branch"),
				link("branch", canvas.HandleYes, "push"),
				link("branch", canvas.HandleNo, "bye"),
			},
		},
	}
}

func attrs(kv ...interface{}) rule.Attributes {
	out := rule.Attributes{}
	for i := 0; i+1 < len(kv); i += 2 {
		key := kv[i].(string)
		switch v := kv[i+1].(type) {
		case string:
			out[key] = rule.StringValue(v)
		case int:
			out[key] = rule.NumberValue(float64(v))
		case float64:
			out[key] = rule.NumberValue(v)
		}
	}
	return out
}
