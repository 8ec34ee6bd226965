package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/haasonsaas/ragsweep/internal/sweep"
)

// Formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// FileName returns the artifact name for a format.
func FileName(format string) string {
	return "results." + format
}

// Encode renders rep in the given format.
func Encode(format string, rep *Report) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJSON:
		err = WriteJSON(&buf, rep)
	case FormatJSONL:
		err = WriteJSONL(&buf, rep)
	case FormatCSV:
		err = WriteCSV(&buf, rep)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes the whole report as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteJSONL writes one result per line in enumeration order.
func WriteJSONL(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	for _, res := range rep.Results {
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes one row per config. Metric columns are the sorted union of
// metric names; a config without a metric leaves the cell empty.
func WriteCSV(w io.Writer, rep *Report) error {
	names := metricNames(rep.Results, nil)

	cw := csv.NewWriter(w)
	header := []string{"chunker", "embedder", "k", "reranker", "status", "stage", "trace_reference"}
	if err := cw.Write(append(header, names...)); err != nil {
		return err
	}
	for _, res := range rep.Results {
		status, stage := "ok", ""
		if res.Failure != nil {
			status, stage = "failed", string(res.Failure.Stage)
		}
		row := []string{
			res.Config.Chunker.String(),
			res.Config.Embedder.String(),
			strconv.Itoa(res.Config.K),
			res.Config.RerankerLabel(),
			status,
			stage,
			res.TraceReference,
		}
		for _, name := range names {
			cell := ""
			if v, ok := res.Metrics[name]; ok {
				cell = strconv.FormatFloat(v, 'f', -1, 64)
			}
			row = append(row, cell)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// metricNames returns the sorted union of metric names, limited to filter
// when it is non-empty.
func metricNames(results sweep.SweepResult, filter []string) []string {
	seen := make(map[string]struct{})
	for _, res := range results {
		for name := range res.Metrics {
			seen[name] = struct{}{}
		}
	}
	allowed := make(map[string]struct{}, len(filter))
	for _, f := range filter {
		allowed[f] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		if len(allowed) > 0 {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
