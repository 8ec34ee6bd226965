package report

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/haasonsaas/ragsweep/internal/sweep"
)

var (
	// ErrNoResults is returned when there is nothing to compare.
	ErrNoResults = errors.New("no results to compare")

	// ErrNoMetrics is returned when no result carries a selected metric.
	ErrNoMetrics = errors.New("no metrics to compare")
)

// Line chart x-axis dimensions.
const (
	DimChunker  = "chunker"
	DimEmbedder = "embedder"
	DimK        = "k"
	DimReranker = "reranker"
)

var dimensions = []string{DimChunker, DimEmbedder, DimK, DimReranker}

// Comparison builds chart data from sweep results. Metric names are
// normalized so results at different k line up.
type Comparison struct {
	results sweep.SweepResult
	metrics []map[string]float64
}

// NewComparison wraps a non-empty result set.
func NewComparison(results sweep.SweepResult) (*Comparison, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	c := &Comparison{results: results, metrics: make([]map[string]float64, len(results))}
	for i, r := range results {
		c.metrics[i] = sweep.NormalizeMetrics(r.Metrics)
	}
	return c, nil
}

// Grid holds one row per config and one column per metric. Missing values
// are 0.
type Grid struct {
	Metrics []string
	Labels  []string
	Values  [][]float64
}

// Bar returns the data of a grouped bar chart: configs on one axis, one bar
// per metric.
func (c *Comparison) Bar(metrics []string) (Grid, error) {
	return c.grid(metrics)
}

// Heatmap returns the configs x metrics grid.
func (c *Comparison) Heatmap(metrics []string) (Grid, error) {
	return c.grid(metrics)
}

func (c *Comparison) grid(filter []string) (Grid, error) {
	names := c.metricNames(filter)
	if len(names) == 0 {
		return Grid{}, ErrNoMetrics
	}
	g := Grid{
		Metrics: names,
		Labels:  make([]string, len(c.results)),
		Values:  make([][]float64, len(c.results)),
	}
	for i, r := range c.results {
		g.Labels[i] = r.Config.String()
		row := make([]float64, len(names))
		for j, name := range names {
			row[j] = c.metrics[i][name]
		}
		g.Values[i] = row
	}
	return g, nil
}

func (c *Comparison) metricNames(filter []string) []string {
	normalized := make(sweep.SweepResult, len(c.results))
	for i := range c.results {
		normalized[i].Metrics = c.metrics[i]
	}
	return metricNames(normalized, filter)
}

// Point is one x position of a series.
type Point struct {
	X string
	Y float64
}

// Series is one line: configs that agree on every dimension but x.
type Series struct {
	Label  string
	Points []Point
}

// LineChart plots one metric against one config dimension.
type LineChart struct {
	Metric string
	X      string
	Series []Series
}

// Line returns one chart per metric with x on the horizontal axis. Series
// are the groups of remaining dimensions in first-seen order; points are
// sorted by x, numerically for k.
func (c *Comparison) Line(x string, metrics []string) ([]LineChart, error) {
	others := make([]string, 0, len(dimensions)-1)
	valid := false
	for _, d := range dimensions {
		if d == x {
			valid = true
			continue
		}
		others = append(others, d)
	}
	if !valid {
		return nil, fmt.Errorf("x must be one of %s, got %q", strings.Join(dimensions, ", "), x)
	}
	names := c.metricNames(metrics)
	if len(names) == 0 {
		return nil, ErrNoMetrics
	}

	type group struct {
		label string
		rows  []int
	}
	var order []string
	groups := make(map[string]*group)
	for i, r := range c.results {
		parts := make([]string, len(others))
		for j, d := range others {
			parts[j] = d + "=" + dimensionValue(r.Config, d)
		}
		key := strings.Join(parts, " | ")
		g, ok := groups[key]
		if !ok {
			g = &group{label: key}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, i)
	}

	charts := make([]LineChart, 0, len(names))
	for _, name := range names {
		chart := LineChart{Metric: name, X: x}
		for _, key := range order {
			g := groups[key]
			s := Series{Label: g.label, Points: make([]Point, 0, len(g.rows))}
			rows := append([]int(nil), g.rows...)
			sort.SliceStable(rows, func(a, b int) bool {
				ra, rb := c.results[rows[a]].Config, c.results[rows[b]].Config
				if x == DimK {
					return ra.K < rb.K
				}
				return dimensionValue(ra, x) < dimensionValue(rb, x)
			})
			for _, row := range rows {
				s.Points = append(s.Points, Point{
					X: dimensionValue(c.results[row].Config, x),
					Y: c.metrics[row][name],
				})
			}
			chart.Series = append(chart.Series, s)
		}
		charts = append(charts, chart)
	}
	return charts, nil
}

func dimensionValue(cfg sweep.Config, dim string) string {
	switch dim {
	case DimChunker:
		return cfg.Chunker.String()
	case DimEmbedder:
		return cfg.Embedder.String()
	case DimK:
		return strconv.Itoa(cfg.K)
	default:
		return cfg.RerankerLabel()
	}
}
