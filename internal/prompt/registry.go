// Package prompt loads prompt template packs written in Starlark.
// Built-in templates cover generation, translation, and the derived practice
// versions; .star files in the prompts directory override them by function
// name.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mytalk-labs/mytalk/pkg/core"
	"go.starlark.net/starlark"
)

//go:embed builtin/*.star
var builtinFS embed.FS

// Names of the built-in templates the pipeline depends on. Derived version
// templates share their name with the version kind (ted, podcast, daily).
const (
	TemplateOriginal     = "original"
	TemplateFromMaterial = "from_material"
	TemplateTranslate    = "translate"
)

// Template is a loaded prompt function.
type Template struct {
	Name   string
	Args   []string
	Doc    string
	Source string // "builtin" or the path of the overriding file

	fn *starlark.Function
}

// Registry holds loaded prompt templates by name.
type Registry struct {
	templates map[string]*Template
}

// Load builds a registry from the embedded built-in pack, then applies
// overrides from .star files in userDir. A missing userDir is fine.
func Load(userDir string) (*Registry, error) {
	r := &Registry{templates: make(map[string]*Template)}

	entries, err := fs.Glob(builtinFS, "builtin/*.star")
	if err != nil {
		return nil, fmt.Errorf("failed to scan built-in prompts: %w", err)
	}
	sort.Strings(entries)
	for _, name := range entries {
		src, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in prompt %s: %w", name, err)
		}
		if err := r.execSource(name, src, "builtin"); err != nil {
			return nil, err
		}
	}

	if userDir != "" {
		if err := r.loadDir(userDir); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// loadDir loads every .star file in dir as overrides.
func (r *Registry) loadDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// No prompts directory is fine, built-ins apply.
			return nil
		}
		return fmt.Errorf("failed to access prompts directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("prompts path is not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.star"))
	if err != nil {
		return fmt.Errorf("failed to scan prompts directory: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		src, err := os.ReadFile(file) //nolint:gosec // G304: paths come from the configured prompts directory
		if err != nil {
			return fmt.Errorf("failed to read prompt file %s: %w", file, err)
		}
		if err := r.execSource(file, src, file); err != nil {
			return err
		}
	}
	return nil
}

// execSource executes one Starlark file and registers its exported functions.
func (r *Registry) execSource(filename string, src []byte, source string) error {
	thread := &starlark.Thread{
		Name: "prompt:" + filepath.Base(filename),
		Print: func(_ *starlark.Thread, _ string) {
			// Ignore prints during loading
		},
	}

	globals, err := starlark.ExecFile(thread, filename, src, nil) //nolint:staticcheck // SA1019: ExecFileOptions migration pending upstream guidance
	if err != nil {
		return fmt.Errorf("prompts/%s: %v", filepath.Base(filename), err)
	}

	for name, value := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		fn, ok := value.(*starlark.Function)
		if !ok {
			continue
		}

		args := make([]string, 0, fn.NumParams())
		for i := 0; i < fn.NumParams(); i++ {
			param, _ := fn.Param(i)
			args = append(args, param)
		}

		r.templates[name] = &Template{
			Name:   name,
			Args:   args,
			Doc:    strings.TrimSpace(fn.Doc()),
			Source: source,
			fn:     fn,
		}
	}
	return nil
}

// Has reports whether a template is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// List returns all templates sorted by name.
func (r *Registry) List() []*Template {
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Render calls a template with string keyword arguments and returns the
// prompt text.
func (r *Registry) Render(name string, args map[string]string) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %s", name)
	}

	kwargs := make([]starlark.Tuple, 0, len(args))
	for k, v := range args {
		kwargs = append(kwargs, starlark.Tuple{starlark.String(k), starlark.String(v)})
	}

	thread := &starlark.Thread{Name: "render:" + name}
	out, err := starlark.Call(thread, t.fn, nil, kwargs)
	if err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}

	s, ok := starlark.AsString(out)
	if !ok {
		return "", fmt.Errorf("prompt %s must return a string, got %s", name, out.Type())
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("prompt %s rendered empty", name)
	}
	return s, nil
}

// Original renders the base generation prompt.
func (r *Registry) Original(topic string, category core.Category) (string, error) {
	return r.Render(TemplateOriginal, map[string]string{
		"topic":    topic,
		"category": string(category),
	})
}

// FromMaterial renders the generation prompt for imported source
// material (a file, a web page, or OCR text).
func (r *Registry) FromMaterial(material string, category core.Category) (string, error) {
	return r.Render(TemplateFromMaterial, map[string]string{
		"material": material,
		"category": string(category),
	})
}

// Translate renders the Korean translation prompt.
func (r *Registry) Translate(text string) (string, error) {
	return r.Render(TemplateTranslate, map[string]string{"text": text})
}

// Derive renders the derivation prompt for a version kind.
func (r *Registry) Derive(kind core.VersionKind, scriptText string) (string, error) {
	return r.Render(string(kind), map[string]string{"script": scriptText})
}
