package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/mytalk-labs/mytalk/pkg/core"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var templateFuncs = template.FuncMap{
	"shortID":    webShortID,
	"date":       formatDate,
	"paragraphs": paragraphs,
	"audioURL":   audioURL,
	"display":    displayKind,
}

// Each page gets its own template set so "content" blocks never
// collide across pages.
var (
	homeTmpl   = parsePage("home.html")
	scriptTmpl = parsePage("script.html")
	runTmpl    = parsePage("run.html")
)

func parsePage(name string) *template.Template {
	return template.Must(template.New("layout.html").
		Funcs(templateFuncs).
		ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

// renderPage writes a full page response.
func renderPage(w http.ResponseWriter, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.Copy(w, &buf)
}

// renderFragment executes one named template to a string, for SSE
// element patches.
func renderFragment(tmpl *template.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// staticHandler serves the embedded assets with long-lived caching.
func staticHandler() http.Handler {
	fileServer := http.FileServer(http.FS(staticFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fileServer.ServeHTTP(w, r)
	})
}

func webShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDate(t time.Time) string {
	return t.Local().Format("Jan 2, 2006")
}

// paragraphs converts plain script text into escaped HTML paragraphs.
// Speaker-labelled dialogue lines keep their line breaks.
func paragraphs(s string) []template.HTML {
	var out []template.HTML
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		escaped := template.HTMLEscapeString(block)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>")
		out = append(out, template.HTML(escaped))
	}
	return out
}

// audioURL builds the playback URL for a version's audio file.
func audioURL(projectDir, audioPath string) string {
	return "/audio/" + path.Join(projectDir, audioPath)
}

func displayKind(kind core.VersionKind) string {
	return kind.Display()
}
