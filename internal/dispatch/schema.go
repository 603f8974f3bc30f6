package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func compileSchema(toolName string, schema json.RawMessage) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	return jsonschema.CompileString(toolName+".json", string(schema))
}

func firstLeafValidationError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if err == nil {
		return nil
	}
	if len(err.Causes) == 0 {
		return err
	}
	for _, c := range err.Causes {
		if leaf := firstLeafValidationError(c); leaf != nil {
			return leaf
		}
	}
	return err
}

// validateArgs checks decoded arguments against a compiled schema and reports the
// first leaf failure with its JSON pointer.
func validateArgs(toolName string, s *jsonschema.Schema, args any) error {
	if s == nil {
		return nil
	}
	if err := s.Validate(args); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := firstLeafValidationError(ve)
			loc := leaf.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msg := leaf.Message
			if msg == "" {
				msg = leaf.Error()
			}
			return fmt.Errorf("invalid arguments for %s at %s: %s", toolName, loc, msg)
		}
		return fmt.Errorf("invalid arguments for %s: %v", toolName, err)
	}
	return nil
}
