package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mytalk-labs/mytalk/internal/llm"
	"github.com/mytalk-labs/mytalk/internal/script"
	"github.com/mytalk-labs/mytalk/internal/tts"
	"github.com/mytalk-labs/mytalk/internal/workspace"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// Request describes one script creation.
type Request struct {
	// Source is where the script comes from (default topic).
	Source core.SourceKind
	// Input is the topic text, or the file path / URL / image path the
	// material was read from.
	Input string
	// Material is the extracted source text for non-topic sources.
	Material string
	// Category classifies the script (default everyday).
	Category core.Category
	// Kinds are the derived versions to produce. Nil means all of them.
	Kinds []core.VersionKind
	// Audio requests synthesis for the original and every derived kind.
	Audio bool
	// OnProgress receives step updates. Audio steps run concurrently,
	// so the callback must be safe to call from multiple goroutines.
	OnProgress ProgressFunc
}

// Progress is a step update emitted while a creation runs.
type Progress struct {
	Step   string
	Status core.StepStatus
	Done   int // steps finished so far
	Total  int
	Detail string
}

// ProgressFunc receives progress updates.
type ProgressFunc func(Progress)

// Result is a finished creation. Run is always set, the rest only on
// success.
type Result struct {
	Run      *core.Run
	Script   *core.Script
	Versions []*core.Version
	Project  *workspace.Project
}

// CreateScript executes the full creation pipeline. Every step is
// recorded on the run before execution starts, so a failed run still
// shows what never got the chance to happen. Text steps are fatal:
// the first failure skips the rest and fails the run. Audio steps are
// not: a script without audio is still usable, so synthesis failures
// are recorded and the run completes.
func (e *Engine) CreateScript(ctx context.Context, req Request) (*Result, error) {
	if err := e.normalize(&req); err != nil {
		return nil, err
	}

	provider, err := e.ensureProvider()
	if err != nil {
		return nil, err
	}
	genPrompt, err := e.generationPrompt(req)
	if err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun()
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Info("creation run started",
		"run_id", run.ID, "source", req.Source, "category", req.Category,
		"kinds", len(req.Kinds), "audio", req.Audio)

	c := &creation{
		engine:       e,
		req:          req,
		run:          run,
		provider:     provider,
		genPrompt:    genPrompt,
		derived:      make(map[core.VersionKind]string),
		translations: make(map[core.VersionKind]string),
		versions:     make(map[core.VersionKind]*core.Version),
	}

	if err := c.recordPlan(); err != nil {
		e.completeRun(run.ID, core.RunStatusFailed, err)
		return &Result{Run: e.refetchRun(run)}, err
	}

	if err := c.execute(ctx); err != nil {
		status := core.RunStatusFailed
		if errors.Is(err, context.Canceled) {
			status = core.RunStatusCancelled
		}
		e.completeRun(run.ID, status, err)
		return &Result{Run: e.refetchRun(run)}, err
	}

	e.completeRun(run.ID, core.RunStatusCompleted, nil)
	run = e.refetchRun(run)
	e.logger.Info("creation run completed", "run_id", run.ID, "script_id", run.ScriptID)

	return &Result{
		Run:      run,
		Script:   c.script,
		Versions: c.versionList(),
		Project:  c.project,
	}, nil
}

// normalize applies defaults and validates the request.
func (e *Engine) normalize(req *Request) error {
	if req.Source == "" {
		req.Source = core.SourceTopic
	}
	switch req.Source {
	case core.SourceTopic:
		if strings.TrimSpace(req.Input) == "" {
			return errors.New("topic is required")
		}
	case core.SourceFile, core.SourceURL, core.SourceImage:
		if strings.TrimSpace(req.Material) == "" {
			return fmt.Errorf("no material extracted from %s source", req.Source)
		}
	default:
		return fmt.Errorf("unknown source kind: %q", req.Source)
	}

	if req.Category == "" {
		req.Category = core.CategoryEveryday
	}
	if !req.Category.Valid() {
		return fmt.Errorf("unknown category: %q", req.Category)
	}

	if req.Kinds == nil {
		req.Kinds = core.DerivedKinds()
	}
	seen := make(map[core.VersionKind]bool)
	kinds := req.Kinds[:0]
	for _, kind := range req.Kinds {
		if kind == core.KindOriginal || !kind.Valid() {
			return fmt.Errorf("unknown version kind: %q", kind)
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}
	req.Kinds = kinds

	if req.Audio && e.speaker == nil {
		return errors.New("audio requested but no speech engine is configured")
	}
	return nil
}

// generationPrompt renders the prompt for the first step.
func (e *Engine) generationPrompt(req Request) (string, error) {
	if req.Source == core.SourceTopic {
		return e.prompts.Original(req.Input, req.Category)
	}
	return e.prompts.FromMaterial(req.Material, req.Category)
}

func (e *Engine) completeRun(runID string, status core.RunStatus, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := e.store.CompleteRun(runID, status, msg); err != nil {
		e.logger.Warn("failed to complete run", "run_id", runID, "error", err)
	}
}

// refetchRun reloads the run so callers see final status and timing.
// The in-memory run is returned when the reload fails.
func (e *Engine) refetchRun(run *core.Run) *core.Run {
	fresh, err := e.store.GetRun(run.ID)
	if err != nil {
		e.logger.Warn("failed to reload run", "run_id", run.ID, "error", err)
		return run
	}
	return fresh
}

// creation carries the state of one run through its steps.
type creation struct {
	engine    *Engine
	req       Request
	run       *core.Run
	provider  llm.Provider
	genPrompt string

	plan  []string
	steps map[string]*core.StepRun

	mu   sync.Mutex // guards done and serializes OnProgress
	done int

	parsed       *script.Parsed
	derived      map[core.VersionKind]string
	translations map[core.VersionKind]string
	script       *core.Script
	project      *workspace.Project
	versions     map[core.VersionKind]*core.Version
}

// recordPlan registers every step as pending before execution starts.
func (c *creation) recordPlan() error {
	c.plan = append(c.plan, core.StepGenerate, core.StepTranslate)
	for _, kind := range c.req.Kinds {
		c.plan = append(c.plan, core.StepDerive(kind), core.StepTranslateKind(kind))
	}
	c.plan = append(c.plan, core.StepPersist)
	if c.req.Audio {
		for _, kind := range c.allKinds() {
			c.plan = append(c.plan, core.StepAudio(kind))
		}
	}

	c.steps = make(map[string]*core.StepRun, len(c.plan))
	for _, name := range c.plan {
		step := &core.StepRun{
			RunID:  c.run.ID,
			Name:   name,
			Status: core.StepStatusPending,
		}
		if err := c.engine.store.RecordStep(step); err != nil {
			return fmt.Errorf("failed to record step %s: %w", name, err)
		}
		c.steps[name] = step
	}
	return nil
}

// allKinds lists every produced kind, original first.
func (c *creation) allKinds() []core.VersionKind {
	kinds := make([]core.VersionKind, 0, len(c.req.Kinds)+1)
	kinds = append(kinds, core.KindOriginal)
	return append(kinds, c.req.Kinds...)
}

// execute runs the recorded steps in order.
func (c *creation) execute(ctx context.Context) error {
	if err := c.step(ctx, core.StepGenerate, c.generate); err != nil {
		return err
	}
	if err := c.step(ctx, core.StepTranslate, func(ctx context.Context) error {
		return c.translate(ctx, core.KindOriginal, c.parsed.Body)
	}); err != nil {
		return err
	}
	for _, kind := range c.req.Kinds {
		kind := kind
		if err := c.step(ctx, core.StepDerive(kind), func(ctx context.Context) error {
			return c.derive(ctx, kind)
		}); err != nil {
			return err
		}
		if err := c.step(ctx, core.StepTranslateKind(kind), func(ctx context.Context) error {
			return c.translate(ctx, kind, c.derived[kind])
		}); err != nil {
			return err
		}
	}
	if err := c.step(ctx, core.StepPersist, c.persist); err != nil {
		return err
	}

	if c.req.Audio {
		c.synthesize(ctx)
	}
	return nil
}

// step runs one fatal pipeline step. On failure every still-pending
// step is skipped and the error propagates to fail the run.
func (c *creation) step(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		c.skipPending("cancelled")
		return err
	}

	c.emit(name, core.StepStatusRunning, "")
	err := fn(ctx)
	c.finish(name, err)
	if err != nil {
		c.skipPending("skipped: earlier step failed")
		return err
	}
	return nil
}

// finish records a step's terminal status and emits progress.
func (c *creation) finish(name string, cause error) {
	status := core.StepStatusSuccess
	msg := ""
	if cause != nil {
		status = core.StepStatusFailed
		msg = cause.Error()
	}
	if err := c.engine.store.UpdateStep(c.steps[name].ID, status, msg); err != nil {
		c.engine.logger.Warn("failed to update step", "step", name, "error", err)
	}
	c.steps[name].Status = status

	c.mu.Lock()
	c.done++
	done := c.done
	c.mu.Unlock()
	c.emitCounted(name, status, msg, done)
}

// skipPending marks every step that never ran as skipped.
func (c *creation) skipPending(reason string) {
	for _, name := range c.plan {
		step := c.steps[name]
		if step.Status != core.StepStatusPending {
			continue
		}
		if err := c.engine.store.UpdateStep(step.ID, core.StepStatusSkipped, reason); err != nil {
			c.engine.logger.Warn("failed to skip step", "step", name, "error", err)
		}
		step.Status = core.StepStatusSkipped
	}
}

func (c *creation) emit(name string, status core.StepStatus, detail string) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	c.emitCounted(name, status, detail, done)
}

func (c *creation) emitCounted(name string, status core.StepStatus, detail string, done int) {
	if c.req.OnProgress == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.req.OnProgress(Progress{
		Step:   name,
		Status: status,
		Done:   done,
		Total:  len(c.plan),
		Detail: detail,
	})
}

// generate calls the language model and parses the titled script.
func (c *creation) generate(ctx context.Context) error {
	resp, err := c.provider.Generate(ctx, llm.Request{Prompt: c.genPrompt})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	parsed, err := script.ParseGenerated(resp.Text)
	if err != nil {
		return err
	}
	c.parsed = parsed
	c.engine.logger.Debug("script generated",
		"title", parsed.Title, "model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return nil
}

// translate produces the Korean translation of one version's text.
func (c *creation) translate(ctx context.Context, kind core.VersionKind, text string) error {
	p, err := c.engine.prompts.Translate(text)
	if err != nil {
		return err
	}
	resp, err := c.provider.Generate(ctx, llm.Request{Prompt: p})
	if err != nil {
		return fmt.Errorf("translation of %s version failed: %w", kind, err)
	}
	translated := strings.TrimSpace(resp.Text)
	if translated == "" {
		return fmt.Errorf("translation of %s version returned empty text", kind)
	}
	c.translations[kind] = translated
	return nil
}

// derive produces one practice version of the script.
func (c *creation) derive(ctx context.Context, kind core.VersionKind) error {
	p, err := c.engine.prompts.Derive(kind, c.parsed.Body)
	if err != nil {
		return err
	}
	resp, err := c.provider.Generate(ctx, llm.Request{Prompt: p})
	if err != nil {
		return fmt.Errorf("derivation of %s version failed: %w", kind, err)
	}
	text := strings.TrimSpace(resp.Text)
	if kind.Dialogue() {
		text = script.CleanDialogue(text)
	}
	if text == "" {
		return fmt.Errorf("derivation of %s version returned empty text", kind)
	}
	c.derived[kind] = text
	return nil
}

// persist writes the project folder and the library rows. The folder is
// removed again when the database work fails, so a failed run leaves no
// orphan directory behind.
func (c *creation) persist(_ context.Context) error {
	now := time.Now().UTC()
	project, err := c.engine.ws.CreateProject(c.parsed.Title, now)
	if err != nil {
		return err
	}

	if err := c.persistInto(project, now); err != nil {
		if rmErr := c.engine.ws.RemoveProject(project.Name()); rmErr != nil {
			c.engine.logger.Warn("failed to clean up project folder",
				"project", project.Name(), "error", rmErr)
		}
		return err
	}
	c.project = project
	return nil
}

func (c *creation) persistInto(project *workspace.Project, now time.Time) error {
	if err := project.WriteText("original.txt", c.parsed.Body); err != nil {
		return err
	}
	for _, kind := range c.req.Kinds {
		if err := project.WriteText(string(kind)+".txt", c.derived[kind]); err != nil {
			return err
		}
	}
	for kind, translated := range c.translations {
		if err := project.WriteText("translation_"+string(kind)+".txt", translated); err != nil {
			return err
		}
	}

	s := &core.Script{
		Title:      c.parsed.Title,
		TitleKo:    c.parsed.TitleKo,
		Category:   c.req.Category,
		SourceKind: c.req.Source,
		Source:     c.req.Input,
		ProjectDir: project.Name(),
	}
	if err := c.engine.store.CreateScript(s); err != nil {
		return err
	}
	c.script = s

	contents := map[core.VersionKind]string{core.KindOriginal: c.parsed.Body}
	for _, kind := range c.req.Kinds {
		contents[kind] = c.derived[kind]
	}
	for _, kind := range c.allKinds() {
		v := &core.Version{
			ScriptID:    s.ID,
			Kind:        kind,
			Content:     contents[kind],
			Translation: c.translations[kind],
		}
		if err := c.engine.store.SaveVersion(v); err != nil {
			return err
		}
		c.versions[kind] = v
	}

	if err := c.engine.store.AttachRunScript(c.run.ID, s.ID); err != nil {
		return err
	}
	c.run.ScriptID = s.ID

	if err := c.writeMetadata(project, s); err != nil {
		return err
	}
	if err := c.engine.ws.UpdateIndex(workspace.IndexEntry{
		ScriptID:  s.ID,
		Title:     s.Title,
		TitleKo:   s.TitleKo,
		Category:  string(s.Category),
		Dir:       project.Name(),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if err := c.engine.recorder.ScriptCreated(); err != nil {
		c.engine.logger.Warn("failed to record stats", "error", err)
	}
	return nil
}

// projectMetadata is the metadata.json written into each project.
type projectMetadata struct {
	ScriptID   string    `json:"script_id"`
	Title      string    `json:"title"`
	TitleKo    string    `json:"title_ko,omitempty"`
	Category   string    `json:"category"`
	SourceKind string    `json:"source_kind"`
	Source     string    `json:"source,omitempty"`
	Kinds      []string  `json:"kinds"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *creation) writeMetadata(project *workspace.Project, s *core.Script) error {
	meta := projectMetadata{
		ScriptID:   s.ID,
		Title:      s.Title,
		TitleKo:    s.TitleKo,
		Category:   string(s.Category),
		SourceKind: string(s.SourceKind),
		Source:     s.Source,
		CreatedAt:  s.CreatedAt,
	}
	for _, kind := range c.allKinds() {
		meta.Kinds = append(meta.Kinds, string(kind))
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return project.WriteFile("metadata.json", append(data, '\n'))
}

// synthesize runs the audio steps with bounded concurrency. Failures
// are recorded on their step but never fail the run.
func (c *creation) synthesize(ctx context.Context) {
	g := new(errgroup.Group)
	g.SetLimit(c.engine.audioWorkers)

	for _, kind := range c.allKinds() {
		kind := kind
		g.Go(func() error {
			name := core.StepAudio(kind)
			if err := ctx.Err(); err != nil {
				c.finish(name, err)
				return nil
			}
			c.emit(name, core.StepStatusRunning, "")
			err := c.synthesizeKind(ctx, kind)
			c.finish(name, err)
			if err != nil {
				c.engine.logger.Warn("audio synthesis failed",
					"kind", kind, "script_id", c.script.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// synthesizeKind produces audio for one version, writes it into the
// project, and updates the version row with the audio details.
func (c *creation) synthesizeKind(ctx context.Context, kind core.VersionKind) error {
	version := c.versions[kind]
	var (
		res *tts.Result
		err error
	)
	if kind.Dialogue() {
		res, err = c.engine.speaker.SpeakDialogue(ctx, script.SplitRoles(version.Content))
	} else {
		res, err = c.engine.speaker.Speak(ctx, version.Content)
	}
	if err != nil {
		return err
	}

	stored, err := c.project.WriteAudio(string(kind)+res.Ext(), res.Audio)
	if err != nil {
		return err
	}

	version.AudioPath = stored
	version.Voice = res.Voice
	version.Engine = res.Engine
	return c.engine.store.SaveVersion(version)
}

// versionList returns the saved versions, original first.
func (c *creation) versionList() []*core.Version {
	out := make([]*core.Version, 0, len(c.versions))
	if v, ok := c.versions[core.KindOriginal]; ok {
		out = append(out, v)
	}
	for _, kind := range c.req.Kinds {
		if v, ok := c.versions[kind]; ok {
			out = append(out, v)
		}
	}
	return out
}
