package main

import (
	"fmt"
	"os"

	"github.com/cozodb/cozo-go/value"
	"gopkg.in/yaml.v3"
)

// loadParams reads a YAML mapping of query parameters, mirroring
// `database.ParseGeneratorConfig`'s "empty path means no config" and
// yaml.v3-decode-into-a-struct pattern, generalized to decode into a
// generic map since a parameter value can be any Value kind rather
// than a fixed config shape.
func loadParams(path string) (map[string]value.Value, error) {
	if path == "" {
		return map[string]value.Value{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	out := make(map[string]value.Value, len(doc))
	for k, v := range doc {
		cv, err := paramValue(v)
		if err != nil {
			return nil, fmt.Errorf("params[%s]: %w", k, err)
		}
		out[k] = cv
	}
	return out, nil
}

// paramValue converts one YAML-decoded scalar/list into a value.Value.
// Maps are rejected: spec.md's Value sum has no object variant.
func paramValue(v any) (value.Value, error) {
	switch x := v.(type) {
	case nil:
		return value.Null, nil
	case bool:
		return value.Bool(x), nil
	case int:
		return value.Int(int64(x)), nil
	case int64:
		return value.Int(x), nil
	case float64:
		return value.Float(x), nil
	case string:
		return value.Str(x), nil
	case []any:
		elems := make([]value.Value, len(x))
		for i, e := range x {
			cv, err := paramValue(e)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = cv
		}
		return value.List(elems), nil
	default:
		return value.Value{}, fmt.Errorf("unsupported param type %T", v)
	}
}
