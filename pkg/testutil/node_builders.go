// Package testutil provides automation graph builders for tests.
package testutil

import (
	"github.com/dukex/autograph/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a manual trigger node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) models.Node {
	node := models.Node{
		ID:          uuid.New().String(),
		Name:        "Start",
		Type:        "n8n-nodes-base.manualTrigger",
		TypeVersion: 1,
		Position:    [2]float64{100, 300},
		Parameters:  map[string]any{},
	}

	for _, override := range overrides {
		override(&node)
	}

	return node
}

func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

func WithType(nodeType string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = [2]float64{x, y}
	}
}

func WithParameters(parameters map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Parameters = parameters
	}
}

func WithCredentials(credentials map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Credentials = credentials
	}
}

// CreateTestGraph creates a graph named "test" holding nodes and no connections.
func CreateTestGraph(nodes ...models.Node) *models.AutomationGraph {
	if nodes == nil {
		nodes = []models.Node{}
	}

	return &models.AutomationGraph{
		Name:        "test",
		Nodes:       nodes,
		Connections: models.Connections{},
	}
}

// Connect adds a main-port connection from source to target on output slot 0.
func Connect(graph *models.AutomationGraph, source, target string) *models.AutomationGraph {
	if graph.Connections == nil {
		graph.Connections = models.Connections{}
	}

	ports, ok := graph.Connections[source]
	if !ok {
		ports = map[string][][]models.ConnectionTarget{}
		graph.Connections[source] = ports
	}

	if len(ports[models.PortTypeMain]) == 0 {
		ports[models.PortTypeMain] = [][]models.ConnectionTarget{{}}
	}

	ports[models.PortTypeMain][0] = append(ports[models.PortTypeMain][0], models.ConnectionTarget{
		Node:  target,
		Type:  models.PortTypeMain,
		Index: 0,
	})

	return graph
}

// CreateTestWorkflowWithNodes creates a two-node webhook to Slack graph.
func CreateTestWorkflowWithNodes() *models.AutomationGraph {
	graph := CreateTestGraph(
		CreateTestNode(WithID("1"), WithName("Webhook"), WithType("n8n-nodes-base.webhook"), WithParameters(map[string]any{"path": "hook"})),
		CreateTestNode(WithID("2"), WithName("Slack"), WithType("n8n-nodes-base.slack"), WithPosition(300, 300), WithParameters(map[string]any{"text": "hello"})),
	)
	graph.Name = "Webhook to Slack"

	return Connect(graph, "Webhook", "Slack")
}
