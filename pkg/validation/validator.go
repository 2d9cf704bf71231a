// Package validation decides whether a candidate JSON object is a well-formed automation graph,
// a structured refusal, or neither.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const (
	kindField       = "kind"
	kindGraph       = "graph"
	kindRefusal     = "refusal"
	legacyErrorKey  = "error"
	rootSchemaField = "(root)"
)

// Outcome is the result of a successful validation: exactly one of Graph or Refusal is set.
type Outcome struct {
	Graph   *models.AutomationGraph
	Refusal *models.Refusal
}

// IsRefusal reports whether the candidate was a structured decline.
func (o Outcome) IsRefusal() bool {
	return o.Refusal != nil
}

// Validator checks candidates against the graph wire format.
type Validator struct {
	schema *gojsonschema.Schema
}

// New compiles the graph schema.
func New() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(models.GraphSchema()))
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

var defaultValidator = sync.OnceValues(New)

// Default returns a shared validator.
func Default() *Validator {
	v, err := defaultValidator()
	if err != nil {
		panic(err)
	}

	return v
}

// Validate parses text and runs the validation gates in order, stopping at the first failing gate.
func (v *Validator) Validate(text string) (Outcome, error) {
	var parsed any

	decoder := json.NewDecoder(strings.NewReader(text))
	if err := decoder.Decode(&parsed); err != nil {
		return Outcome{}, apperr.Wrap("validation.Validate", apperr.KindParse, "candidate is not valid JSON: "+err.Error(), err)
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return Outcome{}, apperr.New("validation.Validate", apperr.KindParse, "candidate contains trailing data after the JSON value")
	}

	return v.ValidateValue(parsed)
}

// ValidateValue runs the gates after parsing on an already-decoded JSON value.
func (v *Validator) ValidateValue(parsed any) (Outcome, error) {
	doc, ok := parsed.(map[string]any)
	if !ok {
		return Outcome{}, apperr.Schema("validation.Validate", []apperr.Violation{
			{Path: rootSchemaField, Message: "expected a JSON object"},
		})
	}

	doc, refusal, err := discriminate(doc)
	if err != nil {
		return Outcome{}, err
	}

	if refusal != nil {
		return Outcome{Refusal: refusal}, nil
	}

	graph, err := v.structural(doc)
	if err != nil {
		return Outcome{}, err
	}

	if violations := References(graph); len(violations) > 0 {
		return Outcome{}, apperr.Schema("validation.Validate", violations)
	}

	if violations := UniqueNames(graph); len(violations) > 0 {
		return Outcome{}, apperr.Schema("validation.Validate", violations)
	}

	return Outcome{Graph: graph}, nil
}

// ValidateGraph re-validates an already-typed graph through its wire form.
// A refusal is never a valid answer here.
func (v *Validator) ValidateGraph(graph *models.AutomationGraph) (*models.AutomationGraph, error) {
	if graph == nil {
		return nil, apperr.Schema("validation.ValidateGraph", []apperr.Violation{
			{Path: rootSchemaField, Message: "graph is required"},
		})
	}

	raw, err := json.Marshal(graph)
	if err != nil {
		return nil, apperr.Wrap("validation.ValidateGraph", apperr.KindParse, "failed to encode graph", err)
	}

	outcome, err := v.Validate(string(raw))
	if err != nil {
		return nil, err
	}

	if outcome.IsRefusal() {
		return nil, apperr.Schema("validation.ValidateGraph", []apperr.Violation{
			{Path: rootSchemaField, Message: "expected a graph, got a refusal"},
		})
	}

	return outcome.Graph, nil
}

// discriminate separates refusals from graph candidates. The tagged form
// {"kind": "refusal"|"graph"} takes precedence; untagged candidates are refusals
// when they carry an error string and none of the graph fields.
func discriminate(doc map[string]any) (map[string]any, *models.Refusal, error) {
	if kind, ok := doc[kindField].(string); ok {
		switch kind {
		case kindRefusal:
			reason, ok := doc["reason"].(string)
			if !ok || strings.TrimSpace(reason) == "" {
				return nil, nil, apperr.Schema("validation.Validate", []apperr.Violation{
					{Path: "reason", Message: "refusal requires a non-empty reason string"},
				})
			}

			return nil, &models.Refusal{Reason: reason}, nil
		case kindGraph:
			graph := make(map[string]any, len(doc)-1)
			for k, val := range doc {
				if k != kindField {
					graph[k] = val
				}
			}

			return graph, nil, nil
		}
	}

	reason, ok := doc[legacyErrorKey].(string)
	if !ok {
		return doc, nil, nil
	}

	for _, field := range models.GraphFields {
		if _, present := doc[field]; present {
			return doc, nil, nil
		}
	}

	return nil, &models.Refusal{Reason: reason}, nil
}

func (v *Validator) structural(doc map[string]any) (*models.AutomationGraph, error) {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, apperr.Wrap("validation.Validate", apperr.KindParse, "failed to evaluate graph schema", err)
	}

	if !result.Valid() {
		violations := make([]apperr.Violation, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, apperr.Violation{Path: desc.Field(), Message: desc.Description()})
		}

		sortViolations(violations)

		return nil, apperr.Schema("validation.Validate", violations)
	}

	// Round-trip through the generic form so numbers such as 1.0 decode into integer fields.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, apperr.Wrap("validation.Validate", apperr.KindParse, "failed to encode candidate", err)
	}

	var graph models.AutomationGraph

	decoder := json.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&graph); err != nil {
		return nil, apperr.Schema("validation.Validate", []apperr.Violation{
			{Path: rootSchemaField, Message: err.Error()},
		})
	}

	return &graph, nil
}

// References reports every connection target whose node is not the name of a node in the graph.
func References(graph *models.AutomationGraph) []apperr.Violation {
	names := graph.NodeNames()

	var violations []apperr.Violation

	graph.Connections.Targets(func(source, port string, slot, position int, target models.ConnectionTarget) {
		if _, ok := names[target.Node]; ok {
			return
		}

		violations = append(violations, apperr.Violation{
			Path:    strings.Join([]string{"connections", source, port, strconv.Itoa(slot), strconv.Itoa(position), "node"}, "."),
			Message: fmt.Sprintf("references unknown node %q", target.Node),
		})
	})

	sortViolations(violations)

	return violations
}

// UniqueNames reports every node whose name repeats an earlier node's name.
func UniqueNames(graph *models.AutomationGraph) []apperr.Violation {
	seen := make(map[string]int, len(graph.Nodes))

	var violations []apperr.Violation

	for i, node := range graph.Nodes {
		if first, ok := seen[node.Name]; ok {
			violations = append(violations, apperr.Violation{
				Path:    fmt.Sprintf("nodes.%d.name", i),
				Message: fmt.Sprintf("duplicate node name %q (first used by nodes.%d)", node.Name, first),
			})

			continue
		}

		seen[node.Name] = i
	}

	return violations
}

func sortViolations(violations []apperr.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Path != violations[j].Path {
			return violations[i].Path < violations[j].Path
		}

		return violations[i].Message < violations[j].Message
	})
}
