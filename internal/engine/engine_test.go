package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytalk-labs/mytalk/internal/llm"
	"github.com/mytalk-labs/mytalk/internal/prompt"
	"github.com/mytalk-labs/mytalk/internal/script"
	"github.com/mytalk-labs/mytalk/internal/store"
	"github.com/mytalk-labs/mytalk/internal/testutil"
	"github.com/mytalk-labs/mytalk/internal/tts"
	"github.com/mytalk-labs/mytalk/internal/workspace"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

const generatedScript = `ENGLISH TITLE: Ordering Coffee
KOREAN TITLE: 커피 주문하기
SCRIPT:
I walk into the cafe every morning.
The barista already knows my order.`

// fakeProvider answers canned text keyed off the prompt contents, so
// each pipeline step gets a distinct response.
type fakeProvider struct {
	mu      sync.Mutex
	prompts []string

	generated string
	failOn    string // substring of the prompt that triggers an error
	onCall    func() // runs after each Generate
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.onCall != nil {
		defer f.onCall()
	}

	if f.failOn != "" && strings.Contains(req.Prompt, f.failOn) {
		return nil, errors.New("model unavailable")
	}

	var text string
	switch {
	case strings.Contains(req.Prompt, "Translate the following"):
		text = "저는 매일 아침 카페에 갑니다."
	case strings.Contains(req.Prompt, "TED-style talk"):
		text = "Let me tell you about my morning coffee. It changed everything."
	case strings.Contains(req.Prompt, "podcast"):
		text = "[Intro music]\nHost: Welcome back to the show.\nGuest: Happy to be here."
	case strings.Contains(req.Prompt, "two friends"):
		text = "A: Morning! The usual?\nB: You know it."
	default:
		text = f.generated
		if text == "" {
			text = generatedScript
		}
	}
	return &llm.Response{Text: text, Model: "fake-1"}, nil
}

func (f *fakeProvider) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// fakeSpeaker returns the spoken text as audio bytes.
type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	failOn string // substring of the text that triggers an error
}

func (f *fakeSpeaker) speak(text string) (*tts.Result, error) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("synthesis blew up")
	}
	return &tts.Result{
		Audio:  []byte("AUDIO:" + text),
		Format: tts.FormatMP3,
		Engine: "fake",
		Voice:  "ava",
	}, nil
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) (*tts.Result, error) {
	return f.speak(text)
}

func (f *fakeSpeaker) SpeakDialogue(_ context.Context, lines []script.Line) (*tts.Result, error) {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Role+">"+l.Text)
	}
	return f.speak(strings.Join(parts, "\n"))
}

type testEnv struct {
	engine   *Engine
	store    *store.SQLStore
	ws       *workspace.Workspace
	provider *fakeProvider
	speaker  *fakeSpeaker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.New(store.DriverSQLite, ":memory:")
	require.NoError(t, st.Open())
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate())

	ws := workspace.New(t.TempDir())
	require.NoError(t, ws.Init())

	prompts, err := prompt.Load("")
	require.NoError(t, err)

	provider := &fakeProvider{}
	speaker := &fakeSpeaker{}
	eng, err := New(Config{
		Store:     st,
		Workspace: ws,
		Prompts:   prompts,
		Speaker:   speaker,
		Provider:  provider,
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	return &testEnv{engine: eng, store: st, ws: ws, provider: provider, speaker: speaker}
}

func stepByName(t *testing.T, steps []*core.StepRun, name string) *core.StepRun {
	t.Helper()
	for _, s := range steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %s not recorded", name)
	return nil
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.ErrorContains(t, err, "store")

	st := store.New(store.DriverSQLite, ":memory:")
	_, err = New(Config{Store: st})
	require.ErrorContains(t, err, "workspace")

	_, err = New(Config{Store: st, Workspace: workspace.New(t.TempDir())})
	require.ErrorContains(t, err, "prompt registry")
}

func TestCreateScriptFromTopic(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.CreateScript(context.Background(), Request{
		Input: "ordering coffee",
		Audio: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Run)
	assert.Equal(t, core.RunStatusCompleted, res.Run.Status)
	assert.NotNil(t, res.Run.CompletedAt)

	require.NotNil(t, res.Script)
	assert.Equal(t, "Ordering Coffee", res.Script.Title)
	assert.Equal(t, "커피 주문하기", res.Script.TitleKo)
	assert.Equal(t, core.CategoryEveryday, res.Script.Category)
	assert.Equal(t, core.SourceTopic, res.Script.SourceKind)
	assert.Equal(t, "ordering coffee", res.Script.Source)
	assert.Equal(t, res.Script.ID, res.Run.ScriptID)

	// one generate, four translations, three derivations
	assert.Equal(t, 8, env.provider.promptCount())

	require.Len(t, res.Versions, 4)
	assert.Equal(t, core.KindOriginal, res.Versions[0].Kind)
	assert.Contains(t, res.Versions[0].Content, "barista")
	assert.Equal(t, "저는 매일 아침 카페에 갑니다.", res.Versions[0].Translation)

	byKind := make(map[core.VersionKind]*core.Version)
	for _, v := range res.Versions {
		byKind[v.Kind] = v
	}
	assert.NotContains(t, byKind[core.KindPodcast].Content, "[Intro music]")
	assert.Contains(t, byKind[core.KindPodcast].Content, "Host: Welcome back")
	for _, v := range res.Versions {
		assert.Equal(t, "audio/"+string(v.Kind)+".mp3", v.AudioPath)
		assert.Equal(t, "fake", v.Engine)
		assert.Equal(t, "ava", v.Voice)
		assert.NotEmpty(t, v.Translation, "kind %s", v.Kind)
	}

	// every recorded step succeeded
	steps, err := env.store.StepsForRun(res.Run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 13)
	for _, s := range steps {
		assert.Equal(t, core.StepStatusSuccess, s.Status, "step %s", s.Name)
	}

	// project folder holds texts, metadata, and audio
	require.NotNil(t, res.Project)
	files, err := res.Project.Files()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"original.txt", "ted.txt", "podcast.txt", "daily.txt",
		"translation_original.txt", "translation_ted.txt",
		"translation_podcast.txt", "translation_daily.txt",
		"metadata.json",
	}, files)

	audio, err := res.Project.AudioFiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"original.mp3", "ted.mp3", "podcast.mp3", "daily.mp3"}, audio)

	data, err := res.Project.ReadFile("metadata.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), res.Script.ID)
	assert.Contains(t, string(data), "Ordering Coffee")

	// dialogue kinds were spoken with roles, prose without
	joined := strings.Join(env.speaker.spoken, "\n---\n")
	assert.Contains(t, joined, "host>Welcome back to the show.")
	assert.Contains(t, joined, "guest>Happy to be here.")
	assert.Contains(t, joined, "Let me tell you about my morning coffee.")

	entries, err := env.ws.ReadIndex()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.Script.ID, entries[0].ScriptID)

	today, err := env.store.StatsRange("2000-01-01", "2100-01-01")
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, 1, today[0].ScriptsCreated)
}

func TestCreateScriptKindsSubset(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.CreateScript(context.Background(), Request{
		Input:    "a business meeting",
		Category: core.CategoryBusiness,
		Kinds:    []core.VersionKind{core.KindTed},
	})
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, res.Run.Status)

	steps, err := env.store.StepsForRun(res.Run.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"generate", "translate", "derive:ted", "translate:ted", "persist"}, names)

	require.Len(t, res.Versions, 2)
	assert.Empty(t, res.Versions[0].AudioPath)
	assert.Empty(t, env.speaker.spoken)
}

func TestCreateScriptFromMaterial(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.CreateScript(context.Background(), Request{
		Source:   core.SourceURL,
		Input:    "https://example.com/coffee-history",
		Material: "Coffee was first brewed in the fifteenth century.",
		Kinds:    []core.VersionKind{core.KindDaily},
	})
	require.NoError(t, err)
	assert.Equal(t, core.SourceURL, res.Script.SourceKind)
	assert.Equal(t, "https://example.com/coffee-history", res.Script.Source)

	require.NotEmpty(t, env.provider.prompts)
	first := env.provider.prompts[0]
	assert.Contains(t, first, "Source material:")
	assert.Contains(t, first, "fifteenth century")
	assert.NotContains(t, first, "example.com")
}

func TestCreateScriptValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.CreateScript(ctx, Request{})
	assert.ErrorContains(t, err, "topic is required")

	_, err = env.engine.CreateScript(ctx, Request{Source: core.SourceFile, Input: "notes.txt"})
	assert.ErrorContains(t, err, "no material extracted")

	_, err = env.engine.CreateScript(ctx, Request{Source: "carrier-pigeon", Input: "x"})
	assert.ErrorContains(t, err, "unknown source kind")

	_, err = env.engine.CreateScript(ctx, Request{Input: "x", Category: "sports"})
	assert.ErrorContains(t, err, "unknown category")

	_, err = env.engine.CreateScript(ctx, Request{Input: "x", Kinds: []core.VersionKind{"opera"}})
	assert.ErrorContains(t, err, "unknown version kind")

	_, err = env.engine.CreateScript(ctx, Request{Input: "x", Kinds: []core.VersionKind{core.KindOriginal}})
	assert.ErrorContains(t, err, "unknown version kind")

	// no run was ever created for invalid requests
	runs, err := env.store.ListRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCreateScriptAudioWithoutSpeaker(t *testing.T) {
	env := newTestEnv(t)
	env.engine.speaker = nil

	_, err := env.engine.CreateScript(context.Background(), Request{Input: "x", Audio: true})
	assert.ErrorContains(t, err, "no speech engine")
}

func TestCreateScriptGenerationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.failOn = "Topic:"

	res, err := env.engine.CreateScript(context.Background(), Request{Input: "ordering coffee"})
	require.ErrorContains(t, err, "generation failed")
	require.NotNil(t, res)
	require.NotNil(t, res.Run)
	assert.Equal(t, core.RunStatusFailed, res.Run.Status)
	assert.Contains(t, res.Run.Error, "model unavailable")
	assert.Nil(t, res.Script)

	steps, err := env.store.StepsForRun(res.Run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 9)
	assert.Equal(t, core.StepStatusFailed, stepByName(t, steps, "generate").Status)
	for _, s := range steps {
		if s.Name == "generate" {
			continue
		}
		assert.Equal(t, core.StepStatusSkipped, s.Status, "step %s", s.Name)
	}

	// no project folder was left behind
	entries, readErr := os.ReadDir(env.ws.ScriptsDir())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestCreateScriptDeriveFailureSkipsRest(t *testing.T) {
	env := newTestEnv(t)
	env.provider.failOn = "podcast"

	res, err := env.engine.CreateScript(context.Background(), Request{Input: "ordering coffee"})
	require.ErrorContains(t, err, "derivation of podcast version failed")
	assert.Equal(t, core.RunStatusFailed, res.Run.Status)

	steps, stepsErr := env.store.StepsForRun(res.Run.ID)
	require.NoError(t, stepsErr)
	assert.Equal(t, core.StepStatusSuccess, stepByName(t, steps, "generate").Status)
	assert.Equal(t, core.StepStatusSuccess, stepByName(t, steps, "translate").Status)
	assert.Equal(t, core.StepStatusSuccess, stepByName(t, steps, "derive:ted").Status)
	assert.Equal(t, core.StepStatusSuccess, stepByName(t, steps, "translate:ted").Status)
	assert.Equal(t, core.StepStatusFailed, stepByName(t, steps, "derive:podcast").Status)
	assert.Equal(t, core.StepStatusSkipped, stepByName(t, steps, "translate:podcast").Status)
	assert.Equal(t, core.StepStatusSkipped, stepByName(t, steps, "derive:daily").Status)
	assert.Equal(t, core.StepStatusSkipped, stepByName(t, steps, "translate:daily").Status)
	assert.Equal(t, core.StepStatusSkipped, stepByName(t, steps, "persist").Status)
}

func TestCreateScriptParseFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.generated = "Sorry, I cannot help with that."

	res, err := env.engine.CreateScript(context.Background(), Request{Input: "ordering coffee"})
	require.Error(t, err)
	assert.Equal(t, core.RunStatusFailed, res.Run.Status)
}

func TestCreateScriptAudioFailureDoesNotFailRun(t *testing.T) {
	env := newTestEnv(t)
	env.speaker.failOn = "morning coffee" // only the ted version trips

	res, err := env.engine.CreateScript(context.Background(), Request{
		Input: "ordering coffee",
		Audio: true,
	})
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, res.Run.Status)
	assert.Empty(t, res.Run.Error)

	steps, stepsErr := env.store.StepsForRun(res.Run.ID)
	require.NoError(t, stepsErr)
	audioTed := stepByName(t, steps, "audio:ted")
	assert.Equal(t, core.StepStatusFailed, audioTed.Status)
	assert.Contains(t, audioTed.Error, "synthesis blew up")
	assert.Equal(t, core.StepStatusSuccess, stepByName(t, steps, "audio:original").Status)
	assert.Equal(t, core.StepStatusSuccess, stepByName(t, steps, "audio:podcast").Status)

	byKind := make(map[core.VersionKind]*core.Version)
	for _, v := range res.Versions {
		byKind[v.Kind] = v
	}
	assert.Empty(t, byKind[core.KindTed].AudioPath)
	assert.NotEmpty(t, byKind[core.KindOriginal].AudioPath)
}

func TestCreateScriptProgress(t *testing.T) {
	env := newTestEnv(t)

	var mu sync.Mutex
	var events []Progress
	res, err := env.engine.CreateScript(context.Background(), Request{
		Input: "ordering coffee",
		Kinds: []core.VersionKind{core.KindTed},
		OnProgress: func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Script)

	// each of the 5 steps reports running then success
	require.Len(t, events, 10)
	assert.Equal(t, "generate", events[0].Step)
	assert.Equal(t, core.StepStatusRunning, events[0].Status)
	assert.Equal(t, core.StepStatusSuccess, events[1].Status)
	final := events[len(events)-1]
	assert.Equal(t, "persist", final.Step)
	assert.Equal(t, 5, final.Total)
	assert.Equal(t, 5, final.Done)
}

func TestCreateScriptCancelled(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	env.provider.onCall = cancel // cancel right after the generate call

	res, err := env.engine.CreateScript(ctx, Request{Input: "ordering coffee"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.RunStatusCancelled, res.Run.Status)

	steps, stepsErr := env.store.StepsForRun(res.Run.ID)
	require.NoError(t, stepsErr)
	assert.Equal(t, core.StepStatusSuccess, stepByName(t, steps, "generate").Status)
	assert.Equal(t, core.StepStatusSkipped, stepByName(t, steps, "translate").Status)
	assert.Equal(t, core.StepStatusSkipped, stepByName(t, steps, "persist").Status)
}

func TestCreateScriptUnknownProvider(t *testing.T) {
	env := newTestEnv(t)
	env.engine.provider = nil
	env.engine.llmCfg = llm.Config{Provider: "psychic"}

	_, err := env.engine.CreateScript(context.Background(), Request{Input: "x"})
	require.ErrorContains(t, err, "unknown llm provider")

	runs, listErr := env.store.ListRuns(0)
	require.NoError(t, listErr)
	assert.Empty(t, runs)
}

func TestDeleteScript(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.CreateScript(context.Background(), Request{
		Input: "ordering coffee",
		Kinds: []core.VersionKind{core.KindDaily},
	})
	require.NoError(t, err)
	projectDir := res.Project.Dir()
	require.DirExists(t, projectDir)

	require.NoError(t, env.engine.DeleteScript(res.Script.ID))

	_, err = env.store.GetScript(res.Script.ID)
	assert.ErrorContains(t, err, "not found")
	assert.NoDirExists(t, projectDir)

	entries, err := env.ws.ReadIndex()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// deleting again reports the missing script
	err = env.engine.DeleteScript(res.Script.ID)
	assert.ErrorContains(t, err, "not found")
}

func TestDeleteScriptSurvivesMissingFolder(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.CreateScript(context.Background(), Request{
		Input: "ordering coffee",
		Kinds: []core.VersionKind{core.KindDaily},
	})
	require.NoError(t, err)

	// someone already removed the folder by hand
	require.NoError(t, os.RemoveAll(res.Project.Dir()))

	require.NoError(t, env.engine.DeleteScript(res.Script.ID))
	_, err = env.store.GetScript(res.Script.ID)
	assert.Error(t, err)
}

func TestProjectFolderNamedAfterTitle(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.CreateScript(context.Background(), Request{
		Input: "ordering coffee",
		Kinds: []core.VersionKind{},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Project.Name(), "_ordering-coffee"),
		"project %q should end in the safe title", res.Project.Name())
	assert.Equal(t, filepath.Join(env.ws.ScriptsDir(), res.Project.Name()), res.Project.Dir())
}

func TestNormalizeDeduplicatesKinds(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.CreateScript(context.Background(), Request{
		Input: "ordering coffee",
		Kinds: []core.VersionKind{core.KindTed, core.KindTed, core.KindDaily},
	})
	require.NoError(t, err)

	steps, err := env.store.StepsForRun(res.Run.ID)
	require.NoError(t, err)
	derived := 0
	for _, s := range steps {
		if strings.HasPrefix(s.Name, "derive:") {
			derived++
		}
	}
	assert.Equal(t, 2, derived)
}
