package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/routinekit/pkg/schema"
)

const routineSchemaURL = "https://routinekit.dev/schemas/routine.json"

// routineSchemaJSON is the JSON Schema for serialized routines. Subroutines are
// routines too, so the definition is recursive.
const routineSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://routinekit.dev/schemas/routine.json",
  "$ref": "#/$defs/routine",
  "$defs": {
    "routine": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "complexity": { "type": "integer", "minimum": 0 },
        "nodes": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/node" }
        },
        "nodeLinks": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/link" }
        },
        "translations": { "$ref": "#/$defs/translations" }
      },
      "additionalProperties": false
    },
    "node": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": {
          "type": "string",
          "enum": ["Start", "End", "RoutineList", "Decision", "Loop", "Redirect", "Combine"]
        },
        "columnIndex": { "type": ["integer", "null"] },
        "rowIndex": { "type": ["integer", "null"] },
        "data": { "type": ["object", "null"] },
        "translations": { "$ref": "#/$defs/translations" }
      },
      "additionalProperties": false,
      "allOf": [
        {
          "if": { "properties": { "type": { "const": "RoutineList" } } },
          "then": { "properties": { "data": { "$ref": "#/$defs/routineListData" } } }
        },
        {
          "if": { "properties": { "type": { "const": "End" } } },
          "then": { "properties": { "data": { "$ref": "#/$defs/endData" } } }
        },
        {
          "if": { "properties": { "type": { "const": "Decision" } } },
          "then": { "properties": { "data": { "$ref": "#/$defs/decisionData" } } }
        },
        {
          "if": { "properties": { "type": { "const": "Loop" } } },
          "then": { "properties": { "data": { "$ref": "#/$defs/loopData" } } }
        }
      ]
    },
    "link": {
      "type": "object",
      "required": ["id", "fromId", "toId"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "fromId": { "type": "string", "minLength": 1 },
        "toId": { "type": "string", "minLength": 1 },
        "whens": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/condition" }
        }
      },
      "additionalProperties": false
    },
    "condition": {
      "type": "object",
      "required": ["expression"],
      "properties": {
        "id": { "type": "string" },
        "engine": { "type": "string" },
        "expression": { "type": "string", "minLength": 1 },
        "translations": { "$ref": "#/$defs/translations" }
      },
      "additionalProperties": false
    },
    "translations": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["language"],
        "properties": {
          "language": { "type": "string", "minLength": 2 },
          "title": { "type": "string" },
          "description": { "type": "string" },
          "instructions": { "type": "string" }
        },
        "additionalProperties": false
      }
    },
    "routineListData": {
      "type": ["object", "null"],
      "properties": {
        "isOrdered": { "type": "boolean" },
        "isOptional": { "type": "boolean" },
        "items": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/item" }
        }
      },
      "additionalProperties": false
    },
    "item": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "index": { "type": "integer", "minimum": 0 },
        "isOptional": { "type": "boolean" },
        "routine": { "$ref": "#/$defs/routine" },
        "translations": { "$ref": "#/$defs/translations" }
      },
      "additionalProperties": false
    },
    "endData": {
      "type": ["object", "null"],
      "properties": { "wasSuccessful": { "type": "boolean" } },
      "additionalProperties": false
    },
    "decisionData": {
      "type": ["object", "null"],
      "properties": {
        "conditions": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/condition" }
        }
      },
      "additionalProperties": false
    },
    "loopData": {
      "type": ["object", "null"],
      "properties": {
        "maxLoops": { "type": "integer", "minimum": 0 },
        "operation": { "type": "string" },
        "whiles": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/condition" }
        }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates routine documents against the routine JSON Schema
// and run inputs against caller-supplied schemas. It is safe for concurrent use.
type JSONSchemaValidator struct {
	routineSchema *jsonschema.Schema

	// mu guards the cache of compiled input schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the routine schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(routineSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal routine schema: %w", err)
	}
	if err := c.AddResource(routineSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add routine schema resource: %w", err)
	}
	compiled, err := c.Compile(routineSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile routine schema: %w", err)
	}

	return &JSONSchemaValidator{
		routineSchema: compiled,
		cache:         make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateRoutine serializes r and validates it against the routine schema.
func (v *JSONSchemaValidator) ValidateRoutine(r *schema.Routine) error {
	if r == nil {
		return schema.NewError(schema.ErrCodeValidation, "routine is nil")
	}
	doc, err := toJSONValue(r)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize routine").WithCause(err)
	}
	return v.validateDoc(doc)
}

// ValidateDocument validates a raw JSON routine document before it is decoded.
func (v *JSONSchemaValidator) ValidateDocument(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "routine document is not valid JSON").WithCause(err)
	}
	return v.validateDoc(doc)
}

func (v *JSONSchemaValidator) validateDoc(doc any) error {
	if err := v.routineSchema.Validate(doc); err != nil {
		return toGraphError(err)
	}
	return nil
}

// ValidateInput validates run inputs against a JSON Schema provided as raw bytes.
// The schema is compiled and cached for subsequent calls with the same schema.
func (v *JSONSchemaValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	if len(inputSchema) == 0 {
		return nil
	}
	if input == nil {
		input = map[string]any{}
	}

	compiled, err := v.getOrCompile(inputSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid input schema").WithCause(err)
	}

	doc, err := toJSONValue(input)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize input").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return toGraphError(err)
	}
	return nil
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := fmt.Sprintf("routinekit://input-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a Go value through JSON so that numbers become
// json.Number, as the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// toGraphError flattens a jsonschema.ValidationError into one GraphError whose
// details list every leaf violation with its instance location.
func toGraphError(err error) *schema.GraphError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
