package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/mytalk-labs/mytalk/internal/engine"
	"github.com/mytalk-labs/mytalk/internal/stats"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

const sessionName = "mytalk"

// createTimeout bounds a background generation run.
const createTimeout = 10 * time.Minute

type basePage struct {
	Title string
	Lang  string
}

type statsStrip struct {
	TodayCreated   int
	TodayPracticed int
	TodayMinutes   int
	Streak         int
}

type createForm struct {
	Categories []core.Category
	Kinds      []core.VersionKind
	Providers  []string
	Voices     []string
	Category   core.Category
	Provider   string
	Voice      string
	Audio      bool
	Error      string
}

type scriptItem struct {
	ID          string
	ShortID     string
	Title       string
	TitleKo     string
	Category    core.Category
	Created     string
	Kinds       []string
	HasAudio    bool
	KoreanFirst bool
}

type libraryView struct {
	Scripts []scriptItem
	Total   int
}

type homePageData struct {
	basePage
	Stats   statsStrip
	Form    createForm
	Library libraryView
}

type scriptPageData struct {
	basePage
	Script    *core.Script
	Versions  []*core.Version
	Practiced bool
}

type runPageData struct {
	basePage
	Run runView
}

// prefs are the per-browser preferences kept in the session cookie.
type prefs struct {
	Provider string
	Voice    string
	Lang     string
	Category core.Category
	Audio    bool
}

func (s *Server) prefs(r *http.Request) prefs {
	p := prefs{
		Provider: s.defaultProvider,
		Voice:    s.defaultVoice,
		Lang:     "en",
		Category: core.CategoryEveryday,
		Audio:    true,
	}

	sess, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		return p
	}
	if v, ok := sess.Values["provider"].(string); ok && v != "" {
		p.Provider = v
	}
	if v, ok := sess.Values["voice"].(string); ok && v != "" {
		p.Voice = v
	}
	if v, ok := sess.Values["lang"].(string); ok && v != "" {
		p.Lang = v
	}
	if v, ok := sess.Values["category"].(string); ok && core.Category(v).Valid() {
		p.Category = core.Category(v)
	}
	if v, ok := sess.Values["audio"].(bool); ok {
		p.Audio = v
	}
	return p
}

func (s *Server) savePrefs(w http.ResponseWriter, r *http.Request, p prefs) {
	sess, _ := s.sessionStore.Get(r, sessionName)
	sess.Values["provider"] = p.Provider
	sess.Values["voice"] = p.Voice
	sess.Values["lang"] = p.Lang
	sess.Values["category"] = string(p.Category)
	sess.Values["audio"] = p.Audio
	if err := sess.Save(r, w); err != nil {
		s.logger.Warn("failed to save session", "error", err)
	}
}

// handleHome renders the library with the create form and stats strip.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	p := s.prefs(r)

	lib, err := s.libraryView(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	renderPage(w, homeTmpl, homePageData{
		basePage: basePage{Title: "Library", Lang: p.Lang},
		Stats:    s.statsStrip(),
		Form:     s.createForm(p, ""),
		Library:  lib,
	})
}

func (s *Server) createForm(p prefs, errMsg string) createForm {
	return createForm{
		Categories: core.AllCategories(),
		Kinds:      core.DerivedKinds(),
		Providers:  s.providers,
		Voices:     s.voices,
		Category:   p.Category,
		Provider:   p.Provider,
		Voice:      p.Voice,
		Audio:      p.Audio,
		Error:      errMsg,
	}
}

func (s *Server) libraryView(p prefs) (libraryView, error) {
	scripts, err := s.store.ListScripts(core.SearchOptions{})
	if err != nil {
		return libraryView{}, fmt.Errorf("failed to list scripts: %w", err)
	}

	view := libraryView{Total: len(scripts)}
	for _, sc := range scripts {
		item := scriptItem{
			ID:          sc.ID,
			ShortID:     webShortID(sc.ID),
			Title:       sc.Title,
			TitleKo:     sc.TitleKo,
			Category:    sc.Category,
			Created:     formatDate(sc.CreatedAt),
			KoreanFirst: p.Lang == "ko",
		}
		versions, err := s.store.ListVersions(sc.ID)
		if err == nil {
			for _, v := range versions {
				item.Kinds = append(item.Kinds, string(v.Kind))
				if v.AudioPath != "" {
					item.HasAudio = true
				}
			}
		}
		view.Scripts = append(view.Scripts, item)
	}
	return view, nil
}

// statsStrip reads today's numbers for the dashboard, zeroes on error.
func (s *Server) statsStrip() statsStrip {
	recorder := stats.NewRecorder(s.store)
	strip := statsStrip{}

	if today, err := recorder.Today(); err == nil && today != nil {
		strip.TodayCreated = today.ScriptsCreated
		strip.TodayPracticed = today.ScriptsPracticed
		strip.TodayMinutes = today.StudyMinutes
	}
	if streak, err := recorder.Streak(); err == nil {
		strip.Streak = streak
	}
	return strip
}

// handleLibraryUpdates is the long-lived SSE endpoint for the home
// page. It pushes a fresh library fragment whenever scripts change.
// No initial send: the content is already server-rendered.
func (s *Server) handleLibraryUpdates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			if err := s.sendLibrary(sse, r); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (s *Server) sendLibrary(sse *datastar.ServerSentEventGenerator, r *http.Request) error {
	lib, err := s.libraryView(s.prefs(r))
	if err != nil {
		return err
	}
	frag, err := renderFragment(homeTmpl, "library", lib)
	if err != nil {
		return err
	}
	return sse.PatchElements(frag)
}

// handleCreate starts a generation run from the create form and sends
// the browser to the progress page.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	topic := strings.TrimSpace(r.PostFormValue("topic"))
	category := core.Category(r.PostFormValue("category"))
	if !category.Valid() {
		category = core.CategoryEveryday
	}

	kinds := make([]core.VersionKind, 0, 3)
	for _, k := range r.PostForm["kinds"] {
		kind := core.VersionKind(k)
		if kind.Valid() && kind != core.KindOriginal {
			kinds = append(kinds, kind)
		}
	}
	audio := r.PostFormValue("audio") != ""

	p := s.prefs(r)
	if v := r.PostFormValue("provider"); v != "" {
		p.Provider = v
	}
	if v := r.PostFormValue("voice"); v != "" {
		p.Voice = v
	}
	p.Category = category
	p.Audio = audio
	s.savePrefs(w, r, p)

	if topic == "" {
		s.renderHomeError(w, r, p, "A topic is required.")
		return
	}

	eng, err := s.engineFor(p.Provider, p.Voice)
	if err != nil {
		s.renderHomeError(w, r, p, err.Error())
		return
	}

	run := s.runs.add(topic)
	go s.runCreate(eng, run, engine.Request{
		Source:   core.SourceTopic,
		Input:    topic,
		Category: category,
		Kinds:    kinds,
		Audio:    audio,
	})

	http.Redirect(w, r, "/runs/"+run.ID, http.StatusSeeOther)
}

func (s *Server) renderHomeError(w http.ResponseWriter, r *http.Request, p prefs, msg string) {
	lib, err := s.libraryView(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusUnprocessableEntity)
	renderPage(w, homeTmpl, homePageData{
		basePage: basePage{Title: "Library", Lang: p.Lang},
		Stats:    s.statsStrip(),
		Form:     s.createForm(p, msg),
		Library:  lib,
	})
}

// engineFor picks the engine for a run. Form overrides build a fresh
// engine when a factory is configured.
func (s *Server) engineFor(provider, voice string) (*engine.Engine, error) {
	if s.newEngine == nil {
		return s.engine, nil
	}
	if provider == s.defaultProvider && voice == s.defaultVoice {
		return s.engine, nil
	}
	return s.newEngine(provider, voice)
}

// runCreate executes one generation in the background. It runs on its
// own context so navigating away never cancels a run in flight.
func (s *Server) runCreate(eng *engine.Engine, run *liveRun, req engine.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()

	req.OnProgress = run.observe
	res, err := eng.CreateScript(ctx, req)
	if err != nil {
		s.logger.Error("generation failed", "run", run.ID, "topic", run.Topic, "error", err)
	}
	run.finish(res, err)

	// The library changed; refresh any open home pages.
	s.notifier.Broadcast()
}

// handleRunPage renders the progress page for a run.
func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "run not found or expired", http.StatusNotFound)
		return
	}

	p := s.prefs(r)
	renderPage(w, runTmpl, runPageData{
		basePage: basePage{Title: "Creating your script", Lang: p.Lang},
		Run:      run.view(),
	})
}

// handleRunProgress is the per-run SSE endpoint. It patches the step
// list on every update and redirects to the script when the run
// completes. The state is re-read before each wait so a run that
// finished between page render and connect is never missed.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	sse := datastar.NewSSE(w, r)

	updates := run.updates.Subscribe()
	defer run.updates.Unsubscribe(updates)

	ctx := r.Context()
	for {
		view := run.view()

		frag, err := renderFragment(runTmpl, "run-steps", view)
		if err != nil {
			_ = sse.ConsoleError(err)
			return
		}
		if err := sse.PatchElements(frag); err != nil {
			return
		}

		switch view.Status {
		case core.RunStatusCompleted:
			_ = sse.ExecuteScript(fmt.Sprintf("window.location.href = %q", "/scripts/"+view.ScriptID))
			return
		case core.RunStatusFailed:
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-updates:
		}
	}
}

// handleScript renders one script with all its versions.
func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	script, err := s.store.GetScript(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	versions, err := s.store.ListVersions(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	p := s.prefs(r)
	renderPage(w, scriptTmpl, scriptPageData{
		basePage:  basePage{Title: script.Title, Lang: p.Lang},
		Script:    script,
		Versions:  versions,
		Practiced: r.URL.Query().Get("practiced") == "1",
	})
}

// handlePracticed records a practice session for a script.
func (s *Server) handlePracticed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetScript(id); err != nil {
		http.NotFound(w, r)
		return
	}

	if err := stats.NewRecorder(s.store).ScriptPracticed(); err != nil {
		s.logger.Warn("failed to record practice", "script", id, "error", err)
	}
	http.Redirect(w, r, "/scripts/"+id+"?practiced=1", http.StatusSeeOther)
}

// handleDelete removes a script, its versions, and its project folder.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.DeleteScript(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.notifier.Broadcast()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLang switches the interface language preference.
func (s *Server) handleLang(w http.ResponseWriter, r *http.Request) {
	set := r.URL.Query().Get("set")
	if set == "en" || set == "ko" {
		p := s.prefs(r)
		p.Lang = set
		s.savePrefs(w, r, p)
	}

	back := r.Referer()
	if back == "" {
		back = "/"
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
