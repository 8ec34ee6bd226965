package sweep

import (
	"errors"
	"sort"
	"sync"
)

// NormalizeMetricName strips one trailing "@<digits>" suffix, so
// "token_level_recall@10" becomes "token_level_recall". Any other "@" is
// left alone.
func NormalizeMetricName(name string) string {
	at := -1
	for i := len(name) - 1; i >= 0; i-- {
		c := name[i]
		if c == '@' {
			at = i
			break
		}
		if c < '0' || c > '9' {
			return name
		}
	}
	if at < 0 || at == len(name)-1 {
		return name
	}
	return name[:at]
}

// NormalizeMetrics renames the keys of one result. Values are never merged
// across results. If two keys normalize to the same name the key that sorts
// last wins.
func NormalizeMetrics(raw map[string]float64) map[string]float64 {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]float64, len(raw))
	for _, k := range keys {
		out[NormalizeMetricName(k)] = raw[k]
	}
	return out
}

var errNotRun = errors.New("not executed")

// Aggregator collects outcomes in any order from any goroutine and returns
// them in enumeration order.
type Aggregator struct {
	mu      sync.Mutex
	results []Result
}

// NewAggregator creates one slot per config. Slots that are never recorded
// report a "not executed" evaluation failure.
func NewAggregator(configs []Config) *Aggregator {
	a := &Aggregator{results: make([]Result, len(configs))}
	for i, cfg := range configs {
		a.results[i] = resultOf(cfg, nil, errNotRun)
	}
	return a
}

// Record stores the outcome of cfg in its slot. A non-nil err marks the
// result failed.
func (a *Aggregator) Record(cfg Config, out *Outcome, err error) {
	r := resultOf(cfg, out, err)
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.Index >= 0 && cfg.Index < len(a.results) {
		a.results[cfg.Index] = r
	}
}

// Result returns a copy of the slots in enumeration order.
func (a *Aggregator) Result() SweepResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(SweepResult, len(a.results))
	copy(out, a.results)
	return out
}

func resultOf(cfg Config, out *Outcome, err error) Result {
	if err == nil && out == nil {
		err = errors.New("evaluator returned no outcome")
	}
	if err != nil {
		return Result{
			Config:  cfg,
			Metrics: map[string]float64{},
			Failure: failureOf(err),
			err:     err,
		}
	}
	return Result{
		Config:         cfg,
		Metrics:        NormalizeMetrics(out.Metrics),
		TraceReference: out.TraceReference,
	}
}
