// Package frontmatter parses the optional YAML header on material
// files. A header pins the title, category, and source attribution of
// material so they survive the trip through the imports folder.
package frontmatter

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mytalk-labs/mytalk/pkg/core"
)

// Material is the parsed header of a material file.
type Material struct {
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	// Source records where the material originally came from, usually
	// the URL it was imported from.
	Source string `yaml:"source"`
}

// Result holds the outcome of header extraction.
type Result struct {
	Material  *Material
	Body      string // material text after the header
	HasHeader bool
}

// headerPattern matches a leading --- ... --- block.
var headerPattern = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n?`)

// Extract splits a material file into its YAML header and body. Files
// without a header come back unchanged with an empty Material.
func Extract(content string) (*Result, error) {
	result := &Result{
		Material: &Material{},
		Body:     content,
	}

	matches := headerPattern.FindStringSubmatch(content)
	if matches == nil {
		return result, nil
	}

	result.HasHeader = true
	result.Body = strings.TrimSpace(headerPattern.ReplaceAllString(content, ""))

	material, err := parseHeaderYAML(matches[1])
	if err != nil {
		return nil, err
	}

	result.Material = material
	return result, nil
}

// parseHeaderYAML parses header content with strict field validation.
func parseHeaderYAML(yamlContent string) (*Material, error) {
	// Decode into a map first to reject unknown fields
	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &rawMap); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	knownFields := map[string]bool{
		"title":    true,
		"category": true,
		"source":   true,
	}
	for field := range rawMap {
		if !knownFields[field] {
			return nil, &UnknownFieldError{Field: field}
		}
	}

	var material Material
	if err := yaml.Unmarshal([]byte(yamlContent), &material); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("failed to parse header: %v", err)}
	}

	if material.Category != "" && !core.Category(material.Category).Valid() {
		return nil, &ParseError{
			Message: fmt.Sprintf("invalid category %q, must be one of: %s",
				material.Category, joinCategories()),
		}
	}

	return &material, nil
}

// Render writes a header block for the given material. Empty fields
// are left out; an all-empty material renders to nothing.
func Render(m *Material) string {
	var sb strings.Builder
	if m.Title != "" {
		fmt.Fprintf(&sb, "title: %s\n", quoteIfNeeded(m.Title))
	}
	if m.Category != "" {
		fmt.Fprintf(&sb, "category: %s\n", m.Category)
	}
	if m.Source != "" {
		fmt.Fprintf(&sb, "source: %s\n", quoteIfNeeded(m.Source))
	}
	if sb.Len() == 0 {
		return ""
	}
	return "---\n" + sb.String() + "---\n\n"
}

// quoteIfNeeded wraps values that YAML would otherwise mangle.
func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ":#{}[]&*!|>'\"%@`") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func joinCategories() string {
	cats := core.AllCategories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// ParseError reports a malformed material header.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError reports a header field this version does not know.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in material header", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
