// Package params decodes free-form component parameters (the "params" map of a
// chunker, embedder, reranker or store descriptor) into typed configuration
// structs. Decoding is strict: unknown keys are rejected so that a typo in a
// sweep file surfaces as a validation error instead of a silently ignored knob.
package params

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Decode copies params onto out, which must be a pointer to a struct with yaml
// tags. Fields absent from params keep whatever value out already holds, so
// callers pre-populate out with defaults.
func Decode(params map[string]any, out any) error {
	if out == nil {
		return errors.New("params: nil target")
	}
	if len(params) == 0 {
		return nil
	}
	payload, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("params: serialize: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("params: expected single document")
	}
	return nil
}
