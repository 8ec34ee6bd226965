// Package kb loads a knowledge base of text and markdown files into documents.
package kb

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/ragsweep/pkg/models"
)

// DefaultExtensions are the file types loaded when none are configured.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// Options configures loading.
type Options struct {
	// Extensions filters files by extension (case-insensitive, leading dot optional).
	Extensions []string
}

// Load reads path, a single file or a directory walked recursively in lexical
// order. Document IDs are slash-separated paths relative to the directory (the
// base name for a single file). Hidden files and directories are skipped.
func Load(path string, opts Options) ([]*models.Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("knowledge base path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge base: %w", err)
	}
	allowed := extensionSet(opts.Extensions)

	if !info.IsDir() {
		doc, err := loadFile(path, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		return []*models.Document{doc}, nil
	}

	var docs []*models.Document
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if p != path && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		doc, err := loadFile(p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge base: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("knowledge base %s contains no matching files", path)
	}
	return docs, nil
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

func loadFile(path, id string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc := &models.Document{
		ID:        id,
		Name:      filepath.Base(path),
		SourceURI: path,
		LoadedAt:  time.Now(),
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdown", ".mkd":
		doc.ContentType = "text/markdown"
		parseMarkdown(doc, string(data))
	default:
		doc.ContentType = "text/plain"
		doc.Content = string(data)
		doc.Metadata.Title = firstLine(doc.Content)
	}
	return doc, nil
}

// firstLine returns the first non-empty line, capped at 100 bytes.
func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 100 {
			cut := 100
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			return line[:cut] + "..."
		}
		return line
	}
	return ""
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
