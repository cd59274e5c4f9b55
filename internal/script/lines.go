package script

import "strings"

// PracticeLines splits a script into lines for step-by-step practice.
// Dialogue scripts yield one labeled speaker turn per line; prose scripts are
// split into sentences.
func PracticeLines(text string) []string {
	turns := SplitRoles(text)
	if HasDialogue(text) {
		lines := make([]string, 0, len(turns))
		for _, t := range turns {
			switch t.Role {
			case RoleHost:
				lines = append(lines, "Host: "+t.Text)
			case RoleGuest:
				lines = append(lines, "Guest: "+t.Text)
			default:
				lines = append(lines, t.Text)
			}
		}
		return lines
	}

	var lines []string
	for _, t := range turns {
		lines = append(lines, splitSentences(t.Text)...)
	}
	return lines
}

// splitSentences breaks prose on sentence enders followed by whitespace.
// Go's regexp has no lookbehind, so this is a simple scan.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// End of sentence only when followed by whitespace or end of text.
		if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\t' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}
