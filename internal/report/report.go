// Package report serializes sweep results and renders comparison views.
package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/haasonsaas/ragsweep/internal/sweep"
)

// Report is the persisted outcome of one sweep or single evaluation.
type Report struct {
	RunID       string            `json:"run_id"`
	Experiment  string            `json:"experiment"`
	Description string            `json:"description,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Results     sweep.SweepResult `json:"results"`
}

// Summary counts outcomes.
type Summary struct {
	Configs   int            `json:"configs"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByStage   map[string]int `json:"by_stage,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// Summary counts succeeded and failed configs, with failures by stage.
func (r *Report) Summary() Summary {
	s := Summary{Configs: len(r.Results), Duration: r.FinishedAt.Sub(r.StartedAt)}
	for _, res := range r.Results {
		if res.Succeeded() {
			s.Succeeded++
			continue
		}
		s.Failed++
		if s.ByStage == nil {
			s.ByStage = make(map[string]int)
		}
		s.ByStage[string(res.Failure.Stage)]++
	}
	return s
}

// Best returns the successful result with the highest value of metric, or
// false when none reports it. Ties keep the earliest config.
func (r *Report) Best(metric string) (sweep.Result, bool) {
	var best sweep.Result
	found := false
	for _, res := range r.Results {
		if !res.Succeeded() {
			continue
		}
		v, ok := res.Metrics[metric]
		if !ok {
			continue
		}
		if !found || v > best.Metrics[metric] {
			best, found = res, true
		}
	}
	return best, found
}

// Load reads a report written by WriteJSON, or a JSONL file of results.
func Load(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	rep, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rep, nil
}

// Read decodes a JSON report or JSONL results.
func Read(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("results are empty")
	}

	var rep Report
	if err := json.Unmarshal(trimmed, &rep); err == nil && rep.Results != nil {
		return &rep, nil
	}

	// One result object per line.
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var res sweep.Result
		if err := json.Unmarshal([]byte(text), &res); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rep.Results = append(rep.Results, res)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &rep, nil
}
