package eval

import "time"

// Report captures one evaluation.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Dataset     string    `json:"dataset"`
	K           int       `json:"k"`

	// Metrics holds per-metric averages keyed "name@k".
	Metrics map[string]float64 `json:"metrics"`

	// TraceReference identifies the evaluation's trace.
	TraceReference string `json:"trace_reference,omitempty"`

	Summary Summary      `json:"summary"`
	Cases   []CaseResult `json:"cases"`
}

// CaseResult contains metrics for a single example.
type CaseResult struct {
	CaseID    string             `json:"case_id"`
	Query     string             `json:"query"`
	Retrieved []string           `json:"retrieved"`
	Expected  int                `json:"expected"`
	Metrics   map[string]float64 `json:"metrics"`
	QueryTime time.Duration      `json:"query_time"`
}

// Summary aggregates metrics across cases.
type Summary struct {
	Cases        int                `json:"cases"`
	Averages     map[string]float64 `json:"averages"`
	AvgRetrieved float64            `json:"avg_retrieved"`
	Duration     time.Duration      `json:"duration"`
}

func summarize(cases []CaseResult, names []string, elapsed time.Duration) Summary {
	s := Summary{
		Cases:    len(cases),
		Averages: make(map[string]float64, len(names)),
		Duration: elapsed,
	}
	for _, name := range names {
		s.Averages[name] = 0
	}
	if len(cases) == 0 {
		return s
	}
	retrieved := 0
	for _, c := range cases {
		retrieved += len(c.Retrieved)
		for _, name := range names {
			s.Averages[name] += c.Metrics[name]
		}
	}
	count := float64(len(cases))
	for _, name := range names {
		s.Averages[name] /= count
	}
	s.AvgRetrieved = float64(retrieved) / count
	return s
}
