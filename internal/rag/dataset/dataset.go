// Package dataset loads evaluation datasets: queries paired with the
// reference passages and chunk keys a good retriever should return.
package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/ragsweep/internal/rag/metrics"
)

// Dataset is an evaluation dataset.
type Dataset struct {
	Version     int       `yaml:"version" json:"version"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Examples    []Example `yaml:"examples" json:"examples"`
}

// Example is one query with its ground truth.
type Example struct {
	ID    string `yaml:"id" json:"id"`
	Query string `yaml:"query" json:"query"`

	// ReferenceChunks are passages that answer the query.
	ReferenceChunks []string `yaml:"reference_chunks,omitempty" json:"reference_chunks,omitempty"`

	// Expected lists relevant chunks by document and section.
	Expected []metrics.ChunkKey `yaml:"expected,omitempty" json:"expected,omitempty"`

	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Load reads a dataset from YAML, JSON or JSON5.
func Load(path string) (*Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("dataset path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	ds, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ds, nil
}

// Parse decodes a dataset. ext selects JSON5 for ".json"/".json5" and strict
// YAML otherwise.
func Parse(data []byte, ext string) (*Dataset, error) {
	var ds Dataset
	switch strings.ToLower(ext) {
	case ".json", ".json5":
		if err := json5.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("parse dataset: %w", err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&ds); err != nil {
			return nil, fmt.Errorf("parse dataset: %w", err)
		}
		if err := decoder.Decode(&struct{}{}); err != io.EOF {
			return nil, fmt.Errorf("parse dataset: expected single document")
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks that every example is usable.
func (d *Dataset) Validate() error {
	if len(d.Examples) == 0 {
		return fmt.Errorf("dataset has no examples")
	}
	seen := make(map[string]bool, len(d.Examples))
	for i, ex := range d.Examples {
		if strings.TrimSpace(ex.ID) == "" {
			return fmt.Errorf("example %d missing id", i)
		}
		if seen[ex.ID] {
			return fmt.Errorf("duplicate example id %q", ex.ID)
		}
		seen[ex.ID] = true
		if strings.TrimSpace(ex.Query) == "" {
			return fmt.Errorf("example %q missing query", ex.ID)
		}
		if len(ex.ReferenceChunks) == 0 && len(ex.Expected) == 0 {
			return fmt.Errorf("example %q has neither reference_chunks nor expected", ex.ID)
		}
		for j, exp := range ex.Expected {
			if strings.TrimSpace(exp.DocID) == "" {
				return fmt.Errorf("example %q expected[%d] missing doc_id", ex.ID, j)
			}
		}
	}
	return nil
}

// Sample pairs an example's ground truth with retrieval output.
func (e Example) Sample() metrics.Sample {
	return metrics.Sample{ReferenceChunks: e.ReferenceChunks, Expected: e.Expected}
}
