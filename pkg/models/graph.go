// Package models defines the core domain models for generated automation graphs and their lifecycle records.
package models

// PortTypeMain is the only port kind emitted by generation today.
const PortTypeMain = "main"

// AutomationGraph is the node/connection/settings structure produced by generation
// and consumed by the execution engine. Its JSON form is the wire contract.
type AutomationGraph struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"name"`
	Nodes       []Node           `json:"nodes"`
	Connections Connections      `json:"connections"`
	Settings    map[string]any   `json:"settings,omitempty"`
	Active      bool             `json:"active"`
	Tags        []map[string]any `json:"tags,omitempty"`
}

// Node is one step of an automation graph. Connections address nodes by Name, not ID.
type Node struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	TypeVersion    float64        `json:"typeVersion"`
	Position       [2]float64     `json:"position"`
	Parameters     map[string]any `json:"parameters"`
	Credentials    map[string]any `json:"credentials,omitempty"`
	ContinueOnFail *bool          `json:"continueOnFail,omitempty"`
}

// ConnectionTarget is the receiving end of a connection.
type ConnectionTarget struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Connections maps source node name -> output port type -> output slots -> targets.
type Connections map[string]map[string][][]ConnectionTarget

// NodeNames returns the set of node names present in the graph.
func (g *AutomationGraph) NodeNames() map[string]struct{} {
	names := make(map[string]struct{}, len(g.Nodes))
	for _, node := range g.Nodes {
		names[node.Name] = struct{}{}
	}

	return names
}

// NodeByName returns the first node with the given name.
func (g *AutomationGraph) NodeByName(name string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i], true
		}
	}

	return nil, false
}

// Targets calls fn for every connection target in the graph.
func (c Connections) Targets(fn func(source, port string, slot, position int, target ConnectionTarget)) {
	for source, ports := range c {
		for port, slots := range ports {
			for slot, targets := range slots {
				for position, target := range targets {
					fn(source, port, slot, position, target)
				}
			}
		}
	}
}

// Refusal is a structured decline returned by generation instead of a graph.
type Refusal struct {
	Reason string `json:"reason"`
}
