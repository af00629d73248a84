package flow

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// flowSchemaJSON is a structural pre-pass over the raw flow document,
// applied before field-by-field validation. It catches shape errors
// (wrong types, a "steps" that isn't an array) with a single clear
// message instead of letting them surface as confusing Go unmarshal
// errors deep in step parsing.
const flowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "oneOf": [
    {"type": "array", "items": {"$ref": "#/$defs/step"}},
    {
      "type": "object",
      "required": ["steps"],
      "properties": {
        "steps": {"type": "array", "items": {"$ref": "#/$defs/step"}}
      }
    }
  ],
  "$defs": {
    "step": {
      "type": "object",
      "properties": {
        "key": {"type": "string"},
        "id": {"type": "string"},
        "agent_name": {"type": "string"},
        "agent": {"type": "string"},
        "role_desc": {"type": "string"},
        "role": {"type": "string"},
        "command": {"type": "string"},
        "instruction": {"type": "string"},
        "input_template": {"type": "string"},
        "style": {"type": "string"},
        "is_code": {"type": "boolean"},
        "enabled": {"type": "boolean"},
        "timeout": {"type": "integer"},
        "timeout_seconds": {"type": "integer"},
        "max_input_chars": {"type": "integer"},
        "max_output_chars": {"type": "integer"},
        "max_context_chars": {"type": "integer"}
      }
    }
  }
}`

var (
	flowSchemaOnce sync.Once
	flowSchema     *jsonschema.Schema
	flowSchemaErr  error
)

func compiledFlowSchema() (*jsonschema.Schema, error) {
	flowSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(flowSchemaJSON)))
		if err != nil {
			flowSchemaErr = fmt.Errorf("flow: decode schema resource: %w", err)
			return
		}
		if err := c.AddResource("flow.json", doc); err != nil {
			flowSchemaErr = fmt.Errorf("flow: compile schema resource: %w", err)
			return
		}
		sch, err := c.Compile("flow.json")
		if err != nil {
			flowSchemaErr = fmt.Errorf("flow: compile schema: %w", err)
			return
		}
		flowSchema = sch
	})
	return flowSchema, flowSchemaErr
}

// validateShape runs the structural pre-pass over raw flow document
// bytes, before any step-level semantic validation happens.
func validateShape(data []byte) error {
	sch, err := compiledFlowSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return configErrorf("flow: invalid JSON: %v", err)
	}
	if err := sch.Validate(inst); err != nil {
		return configErrorf("flow: %v", err)
	}
	return nil
}
