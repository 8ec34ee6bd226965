package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

const barWidth = 30

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	// heat ramps from low to high scores.
	heat = []lipgloss.Color{"52", "94", "136", "142", "106", "70", "34", "28"}

	barPalette = []lipgloss.Color{"12", "11", "13", "14", "10", "9"}
)

// Renderer writes comparison views as text. Styled output uses lipgloss
// tables and colors; plain output is tab aligned.
type Renderer struct {
	w      io.Writer
	styled bool
}

// NewRenderer styles output only when w is a terminal.
func NewRenderer(w io.Writer) *Renderer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Renderer{w: w, styled: styled}
}

// NewPlainRenderer never styles its output.
func NewPlainRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Styled reports whether output is styled.
func (r *Renderer) Styled() bool {
	return r.styled
}

// Bar draws one horizontal bar per config and metric.
func (r *Renderer) Bar(g Grid) error {
	r.title("Experiment comparison")
	width := maxLen(g.Metrics)
	for i, label := range g.Labels {
		fmt.Fprintf(r.w, "%s\n", r.styleIf(titleStyle, label))
		for j, metric := range g.Metrics {
			v := g.Values[i][j]
			bar := strings.Repeat("█", scaled(v, barWidth))
			if r.styled {
				bar = lipgloss.NewStyle().Foreground(barPalette[j%len(barPalette)]).Render(bar)
			}
			fmt.Fprintf(r.w, "  %-*s %s %.2f\n", width, metric, bar, v)
		}
	}
	return nil
}

// Heatmap draws the configs x metrics grid.
func (r *Renderer) Heatmap(g Grid) error {
	r.title("Sweep results heatmap")
	headers := append([]string{"config"}, g.Metrics...)
	rows := make([][]string, len(g.Labels))
	for i, label := range g.Labels {
		row := []string{label}
		for _, v := range g.Values[i] {
			cell := fmt.Sprintf("%.2f", v)
			if r.styled {
				cell = lipgloss.NewStyle().
					Background(heat[min(scaled(v, len(heat)), len(heat)-1)]).
					Foreground(lipgloss.Color("15")).
					Render(" " + cell + " ")
			}
			row = append(row, cell)
		}
		rows[i] = row
	}
	return r.table(headers, rows)
}

// Line draws each chart as a table: one row per series, one column per x.
func (r *Renderer) Line(charts []LineChart) error {
	for _, chart := range charts {
		r.title(fmt.Sprintf("%s by %s", chart.Metric, chart.X))

		var xs []string
		seen := make(map[string]bool)
		for _, s := range chart.Series {
			for _, p := range s.Points {
				if !seen[p.X] {
					seen[p.X] = true
					xs = append(xs, p.X)
				}
			}
		}
		headers := append([]string{"series"}, xs...)
		rows := make([][]string, 0, len(chart.Series))
		for _, s := range chart.Series {
			values := make(map[string]string, len(s.Points))
			for _, p := range s.Points {
				values[p.X] = fmt.Sprintf("%.2f", p.Y)
			}
			row := []string{s.Label}
			for _, x := range xs {
				v, ok := values[x]
				if !ok {
					v = "-"
				}
				row = append(row, v)
			}
			rows = append(rows, row)
		}
		if err := r.table(headers, rows); err != nil {
			return err
		}
		fmt.Fprintln(r.w)
	}
	return nil
}

// Summary lists every config with its status and metrics.
func (r *Renderer) Summary(rep *Report) error {
	s := rep.Summary()
	r.title(fmt.Sprintf("%s: %d configs, %d succeeded, %d failed", rep.Experiment, s.Configs, s.Succeeded, s.Failed))

	names := metricNames(rep.Results, nil)
	headers := append([]string{"config", "status"}, names...)
	rows := make([][]string, 0, len(rep.Results))
	for _, res := range rep.Results {
		status := r.styleIf(okStyle, "ok")
		if res.Failure != nil {
			status = r.styleIf(failStyle, fmt.Sprintf("%s: %s", res.Failure.Stage, res.Failure.Message))
		}
		row := []string{res.Config.String(), status}
		for _, name := range names {
			cell := "-"
			if v, ok := res.Metrics[name]; ok {
				cell = fmt.Sprintf("%.4f", v)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	if err := r.table(headers, rows); err != nil {
		return err
	}
	if rep.RunID != "" {
		fmt.Fprintln(r.w, r.styleIf(mutedStyle, "run "+rep.RunID))
	}
	return nil
}

func (r *Renderer) table(headers []string, rows [][]string) error {
	if r.styled {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(mutedStyle).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		_, err := fmt.Fprintln(r.w, t.String())
		return err
	}

	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (r *Renderer) title(text string) {
	fmt.Fprintln(r.w, r.styleIf(titleStyle, text))
}

func (r *Renderer) styleIf(style lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return style.Render(text)
}

// scaled maps a score in [0, 1] onto [0, n].
func scaled(v float64, n int) int {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return n
	}
	return int(v * float64(n))
}

func maxLen(values []string) int {
	w := 0
	for _, v := range values {
		w = max(w, len(v))
	}
	return w
}
