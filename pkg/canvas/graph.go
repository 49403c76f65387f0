package canvas

// Graph is the node/edge representation of a journey.
type Graph struct {
	Nodes []Node `yaml:"nodes" json:"nodes"`
	Edges []Edge `yaml:"edges" json:"edges"`
}

// IsEmpty reports whether the graph has no nodes.
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// Node returns the node with the given ID.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// StartNodes returns every node of type start.
func (g Graph) StartNodes() []Node {
	var starts []Node
	for _, n := range g.Nodes {
		if n.Type == NodeStart {
			starts = append(starts, n)
		}
	}
	return starts
}

// Start returns the start node when there is exactly one.
func (g Graph) Start() (Node, bool) {
	starts := g.StartNodes()
	if len(starts) != 1 {
		return Node{}, false
	}
	return starts[0], true
}

// Outgoing returns the edges leaving a node, in declaration order.
func (g Graph) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Next returns the target of the first edge leaving id with the given handle.
// An empty handle follows the first outgoing edge whatever its handle.
func (g Graph) Next(id, handle string) (string, bool) {
	for _, e := range g.Edges {
		if e.Source != id {
			continue
		}
		if handle == "" || e.SourceHandle == handle {
			return e.Target, true
		}
	}
	return "", false
}
