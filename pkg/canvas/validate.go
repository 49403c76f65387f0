package canvas

import (
	"fmt"
	"strings"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
)

// EmptyCanvasError is the only error reported for a graph without nodes.
const EmptyCanvasError = "journey canvas is empty"

// Validate proves a graph is executable. It returns every problem found, in check
// order: start node, channel templates, branch handles, cycles, then node config
// and dangling edges. An empty result means the journey can be activated.
func Validate(g Graph) []string {
	if g.IsEmpty() {
		return []string{EmptyCanvasError}
	}

	var errs []string
	errs = append(errs, checkStart(g)...)
	errs = append(errs, checkTemplates(g)...)
	errs = append(errs, checkBranches(g)...)
	if cycle := findCycle(g); cycle != "" {
		errs = append(errs, fmt.Sprintf("journey contains a cycle through node %q", cycle))
	}
	errs = append(errs, checkNodeConfig(g)...)
	errs = append(errs, checkEdges(g)...)
	return errs
}

func checkStart(g Graph) []string {
	starts := g.StartNodes()
	if len(starts) != 1 {
		return []string{fmt.Sprintf("journey must have exactly one start node, found %d", len(starts))}
	}
	if len(g.Outgoing(starts[0].ID)) == 0 {
		return []string{fmt.Sprintf("start node %q has no outgoing connection", starts[0].ID)}
	}
	return nil
}

func checkTemplates(g Graph) []string {
	var errs []string
	for _, n := range g.Nodes {
		if !n.Type.IsChannel() {
			continue
		}
		cfg, _ := n.Channel()
		if strings.TrimSpace(cfg.TemplateID) == "" {
			errs = append(errs, fmt.Sprintf("%s node %q is missing a template", n.Type, n.ID))
		}
	}
	return errs
}

func checkBranches(g Graph) []string {
	var errs []string
	for _, n := range g.Nodes {
		if n.Type != NodeBranch {
			continue
		}
		var yes, no bool
		for _, e := range g.Outgoing(n.ID) {
			switch e.SourceHandle {
			case HandleYes:
				yes = true
			case HandleNo:
				no = true
			}
		}
		if !yes {
			errs = append(errs, fmt.Sprintf("branch node %q is missing a %q connection", n.ID, HandleYes))
		}
		if !no {
			errs = append(errs, fmt.Sprintf("branch node %q is missing a %q connection", n.ID, HandleNo))
		}
	}
	return errs
}

func checkNodeConfig(g Graph) []string {
	var errs []string
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			errs = append(errs, fmt.Sprintf("node id %q is used more than once", n.ID))
		}
		seen[n.ID] = true

		switch n.Type {
		case NodeWait:
			cfg, _ := n.Wait()
			if _, err := cfg.Delay(); err != nil {
				errs = append(errs, fmt.Sprintf("wait node %q: %v", n.ID, err))
			}
		case NodeBranch:
			cfg, _ := n.Branch()
			if cfg.Condition.IsEmpty() {
				errs = append(errs, fmt.Sprintf("branch node %q has no condition", n.ID))
			}
			for _, e := range rule.ValidateCondition(cfg.Condition) {
				errs = append(errs, fmt.Sprintf("branch node %q: %s", n.ID, e))
			}
		}
	}
	return errs
}

func checkEdges(g Graph) []string {
	var errs []string
	for _, e := range g.Edges {
		if _, ok := g.Node(e.Source); !ok {
			errs = append(errs, fmt.Sprintf("edge %q references unknown source node %q", e.ID, e.Source))
		}
		if _, ok := g.Node(e.Target); !ok {
			errs = append(errs, fmt.Sprintf("edge %q references unknown target node %q", e.ID, e.Target))
		}
	}
	return errs
}

const (
	unvisited uint8 = iota
	onStack
	done
)

type frame struct {
	node int
	next int
}

// findCycle runs an iterative depth-first search over every node and returns the
// ID of the first node reached by a back-edge, or "" when the graph is acyclic.
// Nodes live in an arena indexed by position; the explicit stack bounds memory on
// adversarial input.
func findCycle(g Graph) string {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	adj := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		src, ok := index[e.Source]
		if !ok {
			continue
		}
		dst, ok := index[e.Target]
		if !ok {
			continue
		}
		adj[src] = append(adj[src], dst)
	}

	state := make([]uint8, len(g.Nodes))
	stack := make([]frame, 0, len(g.Nodes))

	for root := range g.Nodes {
		if state[root] != unvisited {
			continue
		}
		state[root] = onStack
		stack = append(stack[:0], frame{node: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(adj[top.node]) {
				succ := adj[top.node][top.next]
				top.next++
				switch state[succ] {
				case onStack:
					return g.Nodes[succ].ID
				case unvisited:
					state[succ] = onStack
					stack = append(stack, frame{node: succ})
				}
				continue
			}
			state[top.node] = done
			stack = stack[:len(stack)-1]
		}
	}

	return ""
}
