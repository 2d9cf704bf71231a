package models

// JSONSchema represents a JSON Schema document used for structural validation.
type JSONSchema struct {
	Schema      string               `json:"$schema,omitempty"`
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property
type Property struct {
	Type                 string               `json:"type,omitempty"`
	Description          string               `json:"description,omitempty"`
	Enum                 []any                `json:"enum,omitempty"`
	Default              any                  `json:"default,omitempty"`
	Format               string               `json:"format,omitempty"`
	MinLength            *int                 `json:"minLength,omitempty"`
	MaxLength            *int                 `json:"maxLength,omitempty"`
	Minimum              *float64             `json:"minimum,omitempty"`
	MinItems             *int                 `json:"minItems,omitempty"`
	MaxItems             *int                 `json:"maxItems,omitempty"`
	Pattern              string               `json:"pattern,omitempty"`
	Items                *Property            `json:"items,omitempty"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	AdditionalProperties *Property            `json:"additionalProperties,omitempty"`
	Required             []string             `json:"required,omitempty"`
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// GraphFields lists the top-level keys that belong to the automation graph shape.
var GraphFields = []string{"id", "name", "nodes", "connections", "settings", "active", "tags"}

// GraphSchema returns the schema of the automation graph wire format.
func GraphSchema() *JSONSchema {
	target := &Property{
		Type:     "object",
		Required: []string{"node", "type", "index"},
		Properties: map[string]*Property{
			"node":  {Type: "string"},
			"type":  {Type: "string"},
			"index": {Type: "integer", Minimum: floatPtr(0)},
		},
	}

	node := &Property{
		Type:     "object",
		Required: []string{"id", "name", "type", "typeVersion", "position", "parameters"},
		Properties: map[string]*Property{
			"id":          {Type: "string"},
			"name":        {Type: "string", MinLength: intPtr(1)},
			"type":        {Type: "string"},
			"typeVersion": {Type: "number"},
			"position": {
				Type:     "array",
				Items:    &Property{Type: "number"},
				MinItems: intPtr(2),
				MaxItems: intPtr(2),
			},
			"parameters":     {Type: "object"},
			"credentials":    {Type: "object"},
			"continueOnFail": {Type: "boolean"},
		},
	}

	return &JSONSchema{
		Schema:   "http://json-schema.org/draft-07/schema#",
		Title:    "AutomationGraph",
		Type:     "object",
		Required: []string{"name", "nodes", "connections"},
		Properties: map[string]*Property{
			"id":    {Type: "string"},
			"name":  {Type: "string", MinLength: intPtr(1)},
			"nodes": {Type: "array", Items: node},
			"connections": {
				Type: "object",
				AdditionalProperties: &Property{
					Type: "object",
					AdditionalProperties: &Property{
						Type:  "array",
						Items: &Property{Type: "array", Items: target},
					},
				},
			},
			"settings": {Type: "object"},
			"active":   {Type: "boolean"},
			"tags":     {Type: "array", Items: &Property{Type: "object"}},
		},
	}
}
