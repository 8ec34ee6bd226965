// Package sweep expands a RAG parameter space into experiment configs, builds
// each shared preprocessing index once, runs evaluations under a global
// concurrency bound and assembles an ordered, normalized result set.
//
// The package computes no metrics and stores no documents. Builds and
// evaluations are delegated to a Builder and an Evaluator.
package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Component describes a chunker, embedder or reranker by type and
// construction parameters.
type Component struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// UnmarshalYAML accepts a bare type name ("lexical") as well as the
// {type, params} mapping.
func (c *Component) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*c = Component{Type: node.Value}
		return nil
	}
	type plain Component
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Component(p)
	return nil
}

// Key is the canonical identity of the component: its type plus its params
// encoded as JSON with sorted keys. Two components with equal keys are
// interchangeable.
func (c Component) Key() string {
	key, err := c.key()
	if err != nil {
		return fmt.Sprintf("%s%v", c.Type, c.Params)
	}
	return key
}

func (c Component) key() (string, error) {
	if len(c.Params) == 0 {
		return c.Type, nil
	}
	// encoding/json sorts map keys at every level.
	b, err := json.Marshal(c.Params)
	if err != nil {
		return "", err
	}
	return c.Type + string(b), nil
}

// String renders a short label such as "recursive(chunk_size=500)".
func (c Component) String() string {
	if len(c.Params) == 0 {
		return c.Type
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.Params[k]))
	}
	return c.Type + "(" + strings.Join(parts, ", ") + ")"
}

// Spec is the sweep specification. Empty lists take the defaults applied by
// WithDefaults.
type Spec struct {
	Chunkers  []Component `yaml:"chunkers" json:"chunkers,omitempty"`
	Embedders []Component `yaml:"embedders" json:"embedders,omitempty"`
	KValues   []int       `yaml:"k_values" json:"k_values,omitempty"`

	// Rerankers may contain nil entries, meaning no reranking.
	Rerankers []*Component `yaml:"rerankers" json:"rerankers,omitempty"`

	Metrics []string `yaml:"metrics" json:"metrics,omitempty"`

	// MaxConcurrency bounds in-flight evaluations across the whole sweep.
	// Zero means DefaultMaxConcurrency.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency,omitempty"`
}

// Defaults.
const (
	DefaultChunker        = "recursive"
	DefaultEmbedder       = "hashing"
	DefaultK              = 5
	DefaultMaxConcurrency = 4
)

// DefaultMetrics are the token-level metrics used when a spec names none.
func DefaultMetrics() []string {
	return []string{"token_level_recall", "token_level_precision", "token_level_iou"}
}

// WithDefaults returns a copy of s with every empty list replaced by a
// freshly constructed default.
func (s Spec) WithDefaults() Spec {
	out := Spec{
		Chunkers:       append([]Component(nil), s.Chunkers...),
		Embedders:      append([]Component(nil), s.Embedders...),
		KValues:        append([]int(nil), s.KValues...),
		Rerankers:      append([]*Component(nil), s.Rerankers...),
		Metrics:        append([]string(nil), s.Metrics...),
		MaxConcurrency: s.MaxConcurrency,
	}
	if len(out.Chunkers) == 0 {
		out.Chunkers = []Component{{Type: DefaultChunker}}
	}
	if len(out.Embedders) == 0 {
		out.Embedders = []Component{{Type: DefaultEmbedder}}
	}
	if len(out.KValues) == 0 {
		out.KValues = []int{DefaultK}
	}
	if len(out.Rerankers) == 0 {
		out.Rerankers = []*Component{nil}
	}
	if len(out.Metrics) == 0 {
		out.Metrics = DefaultMetrics()
	}
	if out.MaxConcurrency == 0 {
		out.MaxConcurrency = DefaultMaxConcurrency
	}
	return out
}

// Size is the number of configs the spec expands to after defaults.
func (s Spec) Size() int {
	d := s.WithDefaults()
	return len(d.Chunkers) * len(d.Embedders) * len(d.KValues) * len(d.Rerankers)
}

// GroupKey identifies a preprocessing group.
type GroupKey string

// NewGroupKey builds the key shared by configs with equal chunker and
// embedder keys.
func NewGroupKey(chunker, embedder Component) GroupKey {
	b, _ := json.Marshal([2]string{chunker.Key(), embedder.Key()})
	return GroupKey(b)
}

// Config is one point of the sweep. Index is its position in enumeration
// order and its slot in the result.
type Config struct {
	Index    int        `json:"index"`
	Chunker  Component  `json:"chunker"`
	Embedder Component  `json:"embedder"`
	K        int        `json:"k"`
	Reranker *Component `json:"reranker"`
}

// GroupKey returns the preprocessing group of the config.
func (c Config) GroupKey() GroupKey {
	return NewGroupKey(c.Chunker, c.Embedder)
}

// RerankerLabel returns the reranker label, or "none".
func (c Config) RerankerLabel() string {
	if c.Reranker == nil {
		return "none"
	}
	return c.Reranker.String()
}

// String renders "chunker | embedder | k=N | reranker".
func (c Config) String() string {
	return fmt.Sprintf("%s | %s | k=%d | %s", c.Chunker, c.Embedder, c.K, c.RerankerLabel())
}

// Group is the set of configs sharing one preprocessing build.
type Group struct {
	Key      GroupKey
	Chunker  Component
	Embedder Component
	Configs  []Config
}

// Label renders "chunker | embedder".
func (g Group) Label() string {
	return fmt.Sprintf("%s | %s", g.Chunker, g.Embedder)
}

// Plan is the expanded sweep.
type Plan struct {
	Spec    Spec
	Configs []Config
	Groups  []Group
}

// Index is a built retrieval index. It is read-only once published and
// released with Close when the sweep ends.
type Index interface {
	Close() error
}

// Builder performs the preprocessing for one (chunker, embedder) pair.
// A build that is cancelled must release any partial state before returning.
type Builder interface {
	Build(ctx context.Context, chunker, embedder Component) (Index, error)
}

// GroupValidator is optionally implemented by a Builder to reject a pair
// before building. Validation errors are not retried.
type GroupValidator interface {
	ValidateGroup(chunker, embedder Component) error
}

// EvalRequest is the input of one evaluation.
type EvalRequest struct {
	Index    Index
	Config   Config
	K        int
	Reranker *Component
	Metrics  []string
}

// Outcome is what an evaluation returns. Metric keys carry "@k".
type Outcome struct {
	Metrics        map[string]float64
	TraceReference string
}

// Evaluator runs one evaluation against a built index.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (*Outcome, error)
}

// ConfigValidator is optionally implemented by an Evaluator to reject a
// config before it runs. Validation errors are not retried and the
// evaluator is never called for the config.
type ConfigValidator interface {
	ValidateConfig(cfg Config) error
}

// Result is the outcome of one config.
type Result struct {
	Config         Config             `json:"config"`
	Metrics        map[string]float64 `json:"metrics"`
	TraceReference string             `json:"trace_reference,omitempty"`
	Failure        *Failure           `json:"failure,omitempty"`

	err error
}

// Succeeded reports whether the config completed.
func (r Result) Succeeded() bool {
	return r.Failure == nil
}

// Err returns the original error of a failed result, or nil. It is not
// serialized.
func (r Result) Err() error {
	return r.err
}

// SweepResult holds one Result per config in enumeration order.
type SweepResult []Result

// Failed returns the failed results.
func (s SweepResult) Failed() SweepResult {
	var out SweepResult
	for _, r := range s {
		if r.Failure != nil {
			out = append(out, r)
		}
	}
	return out
}
