// Package export renders library scripts into shareable files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mytalk-labs/mytalk/internal/workspace"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// Format selects the export rendering.
type Format string

// Supported export formats.
const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Known returns the supported format names.
func Known() []string {
	return []string{string(FormatJSON), string(FormatMarkdown)}
}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format: %q (known: %s)", s, strings.Join(Known(), ", "))
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return ".json"
}

// Bundle is one script with its versions, ready to render.
type Bundle struct {
	Script   *core.Script
	Versions []*core.Version
}

// document is the JSON export shape.
type document struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	TitleKo    string            `json:"title_ko,omitempty"`
	Category   string            `json:"category"`
	SourceKind string            `json:"source_kind"`
	Source     string            `json:"source,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Versions   []documentVersion `json:"versions"`
}

type documentVersion struct {
	Kind        string `json:"kind"`
	Content     string `json:"content"`
	Translation string `json:"translation,omitempty"`
	AudioPath   string `json:"audio_path,omitempty"`
	Voice       string `json:"voice,omitempty"`
	Engine      string `json:"engine,omitempty"`
}

// JSON renders the bundle as an indented JSON document.
func JSON(b Bundle) ([]byte, error) {
	doc := document{
		ID:         b.Script.ID,
		Title:      b.Script.Title,
		TitleKo:    b.Script.TitleKo,
		Category:   string(b.Script.Category),
		SourceKind: string(b.Script.SourceKind),
		Source:     b.Script.Source,
		CreatedAt:  b.Script.CreatedAt,
		Versions:   make([]documentVersion, 0, len(b.Versions)),
	}
	for _, v := range b.Versions {
		doc.Versions = append(doc.Versions, documentVersion{
			Kind:        string(v.Kind),
			Content:     v.Content,
			Translation: v.Translation,
			AudioPath:   v.AudioPath,
			Voice:       v.Voice,
			Engine:      v.Engine,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders the bundle as a study sheet: title block, one section
// per version with its Korean translation underneath.
func Markdown(b Bundle) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", b.Script.Title)
	if b.Script.TitleKo != "" {
		fmt.Fprintf(&sb, "%s\n\n", b.Script.TitleKo)
	}
	fmt.Fprintf(&sb, "- Category: %s\n", b.Script.Category)
	if b.Script.Source != "" {
		fmt.Fprintf(&sb, "- Source: %s (%s)\n", b.Script.Source, b.Script.SourceKind)
	}
	if !b.Script.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "- Created: %s\n", b.Script.CreatedAt.Format("2006-01-02"))
	}

	for _, v := range b.Versions {
		fmt.Fprintf(&sb, "\n## %s\n\n", v.Kind.Display())
		sb.WriteString(strings.TrimSpace(v.Content))
		sb.WriteString("\n")
		if v.Translation != "" {
			sb.WriteString("\n### 한국어\n\n")
			sb.WriteString(strings.TrimSpace(v.Translation))
			sb.WriteString("\n")
		}
	}
	return []byte(sb.String())
}

// Write renders the bundle and writes it into dir, named after the
// script's creation stamp and title the way project folders are. The
// file is overwritten when it already exists.
func Write(dir string, b Bundle, format Format) (string, error) {
	var data []byte
	switch format {
	case FormatJSON:
		var err error
		data, err = JSON(b)
		if err != nil {
			return "", err
		}
	case FormatMarkdown:
		data = Markdown(b)
	default:
		return "", fmt.Errorf("unknown export format: %q", format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s%s",
		b.Script.CreatedAt.UTC().Format("20060102_150405"),
		workspace.SafeTitle(b.Script.Title),
		format.Ext())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
