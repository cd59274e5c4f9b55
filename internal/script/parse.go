// Package script parses generated study scripts and prepares dialogue
// content for translation, practice, and speech synthesis.
package script

import (
	"errors"
	"strings"
)

// Marker lines expected in generation responses. The prompt packs instruct
// the model to emit these; matching is case-insensitive and tolerates
// markdown adornment around the marker.
const (
	markerEnglishTitle = "english title:"
	markerKoreanTitle  = "korean title:"
	markerScript       = "script:"
)

// Parsed holds the parts extracted from a raw generation response.
type Parsed struct {
	Title   string
	TitleKo string
	Body    string
}

// ParseGenerated extracts the English title, Korean title, and script body
// from a raw model response. When no markers are present the first non-empty
// line becomes the title and the full text the body, so a well-formed but
// unmarked response still produces a usable script.
func ParseGenerated(text string) (*Parsed, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.New("empty generation response")
	}

	p := &Parsed{}
	var body []string
	inBody := false

	for _, line := range strings.Split(trimmed, "\n") {
		if inBody {
			body = append(body, line)
			continue
		}

		norm := normalizeMarker(line)
		switch {
		case strings.HasPrefix(norm, markerEnglishTitle):
			p.Title = markerValue(line)
		case strings.HasPrefix(norm, markerKoreanTitle):
			p.TitleKo = markerValue(line)
		case strings.HasPrefix(norm, markerScript):
			inBody = true
			if v := markerValue(line); v != "" {
				body = append(body, v)
			}
		}
	}

	if !inBody {
		// No SCRIPT: marker. Treat the whole response as the body and take
		// the first non-empty line as the title unless one was marked.
		if p.Title == "" {
			for _, line := range strings.Split(trimmed, "\n") {
				if s := strings.TrimSpace(strings.TrimLeft(line, "# ")); s != "" {
					p.Title = strings.Trim(s, "*")
					break
				}
			}
		}
		p.Body = trimmed
		return p, nil
	}

	p.Body = strings.TrimSpace(strings.Join(body, "\n"))
	if p.Body == "" {
		return nil, errors.New("generation response has no script body")
	}
	if p.Title == "" {
		p.Title = "Untitled"
	}
	return p, nil
}

// normalizeMarker lowercases a line and strips heading and bold adornment so
// "**ENGLISH TITLE:** ..." matches the plain marker.
func normalizeMarker(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "# ")
	s = strings.ReplaceAll(s, "**", "")
	return strings.ToLower(strings.TrimSpace(s))
}

// markerValue returns the text after the first colon on a marker line.
func markerValue(line string) string {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return ""
	}
	v := strings.TrimSpace(line[idx+1:])
	return strings.TrimSpace(strings.Trim(v, "*"))
}
