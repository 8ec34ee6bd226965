// Package artifacts persists sweep reports to a local directory or an
// S3-compatible bucket.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/haasonsaas/ragsweep/internal/report"
)

// ErrNotFound is returned by Get when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store holds named artifacts. Names are slash separated and relative.
type Store interface {
	// Put writes data under name and returns a reference to the stored
	// object (file:// or s3://).
	Put(ctx context.Context, name string, data io.Reader, opts PutOptions) (string, error)
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// PutOptions carries object attributes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Options configures Open.
type Options struct {
	S3 S3StoreConfig
}

// Open returns the store for location: s3://bucket/prefix selects S3,
// anything else is a local directory.
func Open(ctx context.Context, location string, opts Options) (Store, error) {
	if rest, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		cfg := opts.S3
		cfg.Bucket = bucket
		cfg.Prefix = prefix
		return NewS3Store(ctx, &cfg)
	}
	return NewLocalStore(location)
}

// SaveReport writes rep once per format as <run id>/results.<format> and
// returns the references in format order.
func SaveReport(ctx context.Context, store Store, rep *report.Report, formats []string) ([]string, error) {
	if rep.RunID == "" {
		return nil, errors.New("report has no run id")
	}
	refs := make([]string, 0, len(formats))
	for _, format := range formats {
		data, err := report.Encode(format, rep)
		if err != nil {
			return refs, err
		}
		name := path.Join(rep.RunID, report.FileName(format))
		ref, err := store.Put(ctx, name, bytes.NewReader(data), PutOptions{
			ContentType: contentType(format),
			Metadata: map[string]string{
				"run-id":     rep.RunID,
				"experiment": rep.Experiment,
			},
		})
		if err != nil {
			return refs, fmt.Errorf("save %s: %w", name, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func contentType(format string) string {
	switch format {
	case report.FormatJSON:
		return "application/json"
	case report.FormatJSONL:
		return "application/x-ndjson"
	case report.FormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// cleanName rejects names that would escape the store root.
func cleanName(name string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(name, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return cleaned, nil
}
