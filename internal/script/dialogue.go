package script

import (
	"regexp"
	"strings"
)

// Speaker roles recognized in dialogue scripts.
const (
	RoleHost     = "host"
	RoleGuest    = "guest"
	RoleNarrator = "narrator"
)

var (
	stageDirectionLine = regexp.MustCompile(`^\s*\[[^\]]*\]\s*$`)
	stageDirection     = regexp.MustCompile(`\[[^\]]*\]`)
	rolePrefix         = regexp.MustCompile(`(?i)^(host|guest|a|b)\s*[:：]\s*`)
	scenePrefix        = regexp.MustCompile(`(?i)^(setting|scene|title)\s*[:：]`)
)

// CleanDialogue strips stage directions and scene preamble from generated
// dialogue, leaving only speakable lines. Repeated blank lines collapse to
// one.
func CleanDialogue(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	lastBlank := true // drop leading blanks

	for _, line := range lines {
		if stageDirectionLine.MatchString(line) {
			continue
		}
		cleaned := stageDirection.ReplaceAllString(line, "")
		trimmed := strings.TrimSpace(cleaned)
		if scenePrefix.MatchString(trimmed) {
			continue
		}
		if trimmed == "" {
			if lastBlank {
				continue
			}
			lastBlank = true
			out = append(out, "")
			continue
		}
		lastBlank = false
		out = append(out, trimmed)
	}

	// Drop a trailing blank left by the collapse.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// Line is one speaker turn of a dialogue.
type Line struct {
	Role string
	Text string
}

// SplitRoles splits dialogue into ordered speaker turns. Host/A map to
// RoleHost, Guest/B to RoleGuest; unprefixed lines belong to the narrator.
// Input is cleaned first, so stage directions never reach the synthesizer.
func SplitRoles(text string) []Line {
	var turns []Line
	for _, raw := range strings.Split(CleanDialogue(text), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		m := rolePrefix.FindString(line)
		if m == "" {
			turns = append(turns, Line{Role: RoleNarrator, Text: line})
			continue
		}

		role := RoleHost
		switch strings.ToLower(strings.TrimRight(strings.TrimSpace(m), ":： \t")) {
		case "guest", "b":
			role = RoleGuest
		}
		if spoken := strings.TrimSpace(line[len(m):]); spoken != "" {
			turns = append(turns, Line{Role: role, Text: spoken})
		}
	}
	return turns
}

// SpeakableText returns dialogue content with speaker prefixes and stage
// directions removed, for single-voice synthesis.
func SpeakableText(text string) string {
	turns := SplitRoles(text)
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, "\n")
}

// HasDialogue reports whether the text contains speaker-prefixed turns.
func HasDialogue(text string) bool {
	for _, t := range SplitRoles(text) {
		if t.Role != RoleNarrator {
			return true
		}
	}
	return false
}
