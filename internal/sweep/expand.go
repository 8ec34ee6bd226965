package sweep

import (
	"fmt"
	"strings"
)

// Expand validates spec and enumerates its Cartesian product.
//
// Configs are grouped by (chunker, embedder) in first-seen order of the
// chunker x embedder loop. Within a group k is the outer loop and reranker
// the inner loop. Duplicate entries are kept: equal chunker or embedder
// entries land in the same group and contribute duplicate configs.
//
// knownMetric, when non-nil, rejects unknown metric names.
func Expand(spec Spec, knownMetric func(string) bool) (*Plan, error) {
	if spec.MaxConcurrency < 0 {
		return nil, invalidSpec("max_concurrency", "must be positive, got %d", spec.MaxConcurrency)
	}
	spec = spec.WithDefaults()

	for i, k := range spec.KValues {
		if k <= 0 {
			return nil, invalidSpec("k_values", "entry %d must be positive, got %d", i, k)
		}
	}
	if err := validateComponents("chunkers", spec.Chunkers); err != nil {
		return nil, err
	}
	if err := validateComponents("embedders", spec.Embedders); err != nil {
		return nil, err
	}
	rerankers := make([]*Component, len(spec.Rerankers))
	for i, r := range spec.Rerankers {
		rerankers[i] = normalizeReranker(r)
		if rerankers[i] == nil {
			continue
		}
		if err := validateComponent(fmt.Sprintf("rerankers[%d]", i), *rerankers[i]); err != nil {
			return nil, err
		}
	}
	spec.Rerankers = rerankers
	for i, name := range spec.Metrics {
		if strings.TrimSpace(name) == "" {
			return nil, invalidSpec("metrics", "entry %d is empty", i)
		}
		if knownMetric != nil && !knownMetric(name) {
			return nil, invalidSpec("metrics", "unknown metric %q", name)
		}
	}

	var groups []*Group
	byKey := make(map[GroupKey]*Group)
	for _, chunker := range spec.Chunkers {
		for _, embedder := range spec.Embedders {
			key := NewGroupKey(chunker, embedder)
			g, ok := byKey[key]
			if !ok {
				g = &Group{Key: key, Chunker: chunker, Embedder: embedder}
				byKey[key] = g
				groups = append(groups, g)
			}
			for _, k := range spec.KValues {
				for _, reranker := range spec.Rerankers {
					g.Configs = append(g.Configs, Config{
						Chunker:  chunker,
						Embedder: embedder,
						K:        k,
						Reranker: reranker,
					})
				}
			}
		}
	}

	plan := &Plan{Spec: spec, Groups: make([]Group, 0, len(groups))}
	for _, g := range groups {
		for i := range g.Configs {
			g.Configs[i].Index = len(plan.Configs)
			plan.Configs = append(plan.Configs, g.Configs[i])
		}
		plan.Groups = append(plan.Groups, *g)
	}
	return plan, nil
}

func validateComponents(field string, components []Component) error {
	for i, c := range components {
		if err := validateComponent(fmt.Sprintf("%s[%d]", field, i), c); err != nil {
			return err
		}
	}
	return nil
}

func validateComponent(field string, c Component) error {
	if strings.TrimSpace(c.Type) == "" {
		return invalidSpec(field, "type is required")
	}
	if _, err := c.key(); err != nil {
		return invalidSpec(field, "params cannot be encoded: %v", err)
	}
	return nil
}

// normalizeReranker maps the "none" type to no reranking.
func normalizeReranker(r *Component) *Component {
	if r == nil {
		return nil
	}
	if t := strings.ToLower(strings.TrimSpace(r.Type)); t == "none" || (t == "" && len(r.Params) == 0) {
		return nil
	}
	return r
}
