package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/ragsweep/internal/sweep"
)

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error

	compiledOnce sync.Once
	compiled     *validator.Schema
	compileErr   error
)

// JSONSchema returns the JSON Schema for the Config struct.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			FieldNameTag:               "yaml",
			RequiredFromJSONSchemaTags: true,
			Mapper:                     mapType,
		}
		schema := r.Reflect(&Config{})
		schemaJSON, schemaErr = json.MarshalIndent(schema, "", "  ")
	})
	return schemaJSON, schemaErr
}

var (
	durationType  = reflect.TypeOf(time.Duration(0))
	componentType = reflect.TypeOf(sweep.Component{})
)

// mapType overrides types whose YAML form differs from their Go shape.
func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case durationType:
		return &jsonschema.Schema{
			AnyOf: []*jsonschema.Schema{
				{Type: "string", Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`},
				{Type: "integer", Minimum: json.Number("0")},
			},
		}
	case componentType, reflect.PointerTo(componentType):
		props := jsonschema.NewProperties()
		props.Set("type", &jsonschema.Schema{Type: "string", MinLength: ptr(uint64(1))})
		props.Set("params", &jsonschema.Schema{Type: "object"})
		return &jsonschema.Schema{
			AnyOf: []*jsonschema.Schema{
				{Type: "string", MinLength: ptr(uint64(1))},
				{Type: "null"},
				{
					Type:                 "object",
					Properties:           props,
					Required:             []string{"type"},
					AdditionalProperties: jsonschema.FalseSchema,
				},
			},
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func compiledSchema() (*validator.Schema, error) {
	compiledOnce.Do(func() {
		raw, err := JSONSchema()
		if err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = validator.CompileString("ragsweep.schema.json", string(raw))
	})
	return compiled, compileErr
}

// ValidateRaw checks a raw config map, as produced by LoadRaw, against the
// generated schema.
func ValidateRaw(raw map[string]any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}
