// Package projectfile reads and writes project documents: Markdown files
// with a YAML frontmatter block holding the project metadata.
package projectfile

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/projectsync/internal/models"
)

const delim = "---"

// ErrNoFrontmatter is returned for documents without a metadata block.
var ErrNoFrontmatter = errors.New("projectfile: missing frontmatter")

// Parse decodes a project document. The body becomes the description; the
// name falls back to the first H1 heading.
func Parse(data []byte) (*models.Project, error) {
	block, body, ok := splitFrontmatter(data)
	if !ok {
		return nil, ErrNoFrontmatter
	}

	var p models.Project
	if err := yaml.Unmarshal(block, &p); err != nil {
		return nil, fmt.Errorf("projectfile: parse frontmatter: %w", err)
	}
	p.Description = strings.TrimRight(body, "\n")
	if p.Name == "" {
		p.Name = firstHeading(body)
	}
	return &p, nil
}

// Format encodes p as a project document.
func Format(p *models.Project) ([]byte, error) {
	meta, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("projectfile: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(meta)
	buf.WriteString(delim + "\n")
	if p.Description != "" {
		buf.WriteString(p.Description)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// splitFrontmatter separates the YAML block (between leading --- lines) from
// the Markdown body.
func splitFrontmatter(data []byte) ([]byte, string, bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", false
	}

	block := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")
	return block, body, true
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
