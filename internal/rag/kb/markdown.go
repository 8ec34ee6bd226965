package kb

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/ragsweep/pkg/models"
)

type frontmatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Keywords    []string `yaml:"keywords"`
	Date        string   `yaml:"date"`
}

var headingRegex = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)

// parseMarkdown strips YAML frontmatter into metadata and falls back to the
// first heading for the title. Invalid frontmatter is kept as content.
func parseMarkdown(doc *models.Document, content string) {
	fm, body, ok := splitFrontmatter(content)
	if ok {
		var data frontmatter
		if err := yaml.Unmarshal([]byte(fm), &data); err == nil {
			content = body
			doc.Metadata.Title = data.Title
			tags := append(append([]string{}, data.Tags...), data.Keywords...)
			if len(tags) > 0 {
				doc.Metadata.Tags = tags
			}
			custom := map[string]any{}
			if data.Description != "" {
				custom["description"] = data.Description
			}
			if data.Date != "" {
				custom["date"] = data.Date
			}
			if len(custom) > 0 {
				doc.Metadata.Custom = custom
			}
		}
	}
	doc.Content = content
	if doc.Metadata.Title == "" {
		doc.Metadata.Title = firstHeading(content)
	}
}

// splitFrontmatter separates a leading "---" delimited block from the body.
func splitFrontmatter(content string) (fm, body string, ok bool) {
	trimmed := strings.TrimLeft(content, "\ufeff \t\r\n")
	if !strings.HasPrefix(trimmed, "---") {
		return "", content, false
	}
	lines := strings.Split(trimmed, "\n")
	for i := 1; i < len(lines); i++ {
		switch strings.TrimSpace(lines[i]) {
		case "---", "...":
			return strings.Join(lines[1:i], "\n"), strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\r\n"), true
		}
	}
	return "", content, false
}

func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if m := headingRegex.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return m[1]
		}
	}
	return ""
}
