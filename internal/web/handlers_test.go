package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytalk-labs/mytalk/internal/engine"
	"github.com/mytalk-labs/mytalk/internal/llm"
	"github.com/mytalk-labs/mytalk/internal/prompt"
	"github.com/mytalk-labs/mytalk/internal/store"
	"github.com/mytalk-labs/mytalk/internal/testutil"
	"github.com/mytalk-labs/mytalk/internal/workspace"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

const cannedScript = `ENGLISH TITLE: Ordering Coffee
KOREAN TITLE: 커피 주문하기
SCRIPT:
I walk into the cafe every morning.
The barista already knows my order.`

// fakeProvider answers canned text so creation runs finish instantly.
type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()

	var text string
	switch {
	case strings.Contains(req.Prompt, "Translate the following"):
		text = "저는 매일 아침 카페에 갑니다."
	case strings.Contains(req.Prompt, "TED-style talk"):
		text = "Let me tell you about coffee. It changed my mornings."
	case strings.Contains(req.Prompt, "podcast"):
		text = "Host: Welcome back.\nGuest: Glad to be here."
	case strings.Contains(req.Prompt, "two friends"):
		text = "A: Morning! The usual?\nB: You know it."
	default:
		text = cannedScript
	}
	return &llm.Response{Text: text, Model: "fake-1"}, nil
}

type testServer struct {
	*Server
	mux   *chi.Mux
	store *store.SQLStore
	ws    *workspace.Workspace
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := store.New(store.DriverSQLite, ":memory:")
	require.NoError(t, st.Open())
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate())

	ws := workspace.New(t.TempDir())
	require.NoError(t, ws.Init())

	prompts, err := prompt.Load("")
	require.NoError(t, err)

	eng, err := engine.New(engine.Config{
		Store:     st,
		Workspace: ws,
		Prompts:   prompts,
		Provider:  &fakeProvider{},
	})
	require.NoError(t, err)

	srv := NewServer(Config{
		Engine:          eng,
		Store:           st,
		Workspace:       ws,
		Host:            "127.0.0.1",
		Port:            8501,
		Providers:       []string{"openai", "anthropic", "gemini"},
		DefaultProvider: "openai",
		Voices:          []string{"nova", "alloy"},
		DefaultVoice:    "nova",
		SessionSecret:   "test-secret-key-32-bytes-long!!",
		Logger:          testutil.NewTestLogger(t),
	})

	mux := chi.NewMux()
	srv.setupRoutes(mux)

	return &testServer{Server: srv, mux: mux, store: st, ws: ws}
}

func seedScript(t *testing.T, st *store.SQLStore, title, titleKo string) *core.Script {
	t.Helper()

	script := &core.Script{
		Title:      title,
		TitleKo:    titleKo,
		Category:   core.CategoryEveryday,
		SourceKind: core.SourceTopic,
		Source:     title,
		ProjectDir: "20240101_" + strings.ToLower(strings.ReplaceAll(title, " ", "-")),
	}
	require.NoError(t, st.CreateScript(script))
	require.NoError(t, st.SaveVersion(&core.Version{
		ScriptID:    script.ID,
		Kind:        core.KindOriginal,
		Content:     "I walk into the cafe every morning.\n\nThe barista knows my order.",
		Translation: "저는 매일 아침 카페에 갑니다.",
		AudioPath:   "audio/original.mp3",
	}))
	return script
}

func postForm(t *testing.T, values url.Values, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHomePage(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{
		"<!doctype html>",
		"<title>Library - MyTalk</title>",
		"New script",
		"No scripts yet",
		"/updates",
		"day streak",
	} {
		assert.Contains(t, body, want, "response should contain %q", want)
	}
}

func TestHomePageListsScripts(t *testing.T) {
	ts := newTestServer(t)
	sc1 := seedScript(t, ts.store, "Ordering Coffee", "커피 주문하기")
	sc2 := seedScript(t, ts.store, "Airport Check In", "공항 체크인")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/scripts/`+sc1.ID+`"`)
	assert.Contains(t, body, `href="/scripts/`+sc2.ID+`"`)
	assert.Contains(t, body, "Ordering Coffee")
	assert.Contains(t, body, "커피 주문하기")
	assert.Contains(t, body, "badge-audio")
}

func TestLibraryUpdatesSendsOnBroadcast(t *testing.T) {
	ts := newTestServer(t)
	sc := seedScript(t, ts.store, "Ordering Coffee", "커피 주문하기")

	req := httptest.NewRequest(http.MethodGet, "/updates", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		ts.mux.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	ts.Notifier().Broadcast()
	<-done

	body := rec.Body.String()
	assert.GreaterOrEqual(t, strings.Count(body, "event:"), 1, "should receive an SSE event from broadcast")
	assert.Contains(t, body, "/scripts/"+sc.ID)
}

func TestLibraryUpdatesNoInitialSend(t *testing.T) {
	ts := newTestServer(t)
	seedScript(t, ts.store, "Ordering Coffee", "커피 주문하기")

	req := httptest.NewRequest(http.MethodGet, "/updates", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, 0, strings.Count(rec.Body.String(), "event:"), "no events without a broadcast")
}

func TestCreateRequiresTopic(t *testing.T) {
	ts := newTestServer(t)

	req := postForm(t, url.Values{"topic": {"   "}}, "/scripts")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "A topic is required.")
}

func TestCreateRunsToCompletion(t *testing.T) {
	ts := newTestServer(t)

	req := postForm(t, url.Values{
		"topic":    {"ordering coffee"},
		"category": {"everyday"},
		"kinds":    {"ted"},
	}, "/scripts")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/runs/"), "should redirect to the progress page, got %q", location)

	runID := strings.TrimPrefix(location, "/runs/")
	run, ok := ts.runs.get(runID)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return run.view().Status == core.RunStatusCompleted
	}, 3*time.Second, 10*time.Millisecond, "run should complete")

	scripts, err := ts.store.ListScripts(core.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, "Ordering Coffee", scripts[0].Title)

	// The progress page now shows the finished state.
	pageReq := httptest.NewRequest(http.MethodGet, location, nil)
	pageRec := httptest.NewRecorder()
	ts.mux.ServeHTTP(pageRec, pageReq)
	assert.Contains(t, pageRec.Body.String(), "Done!")
	assert.Contains(t, pageRec.Body.String(), "/scripts/"+scripts[0].ID)
}

func TestRunPageNotFound(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/nope", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScriptPageShowsVersions(t *testing.T) {
	ts := newTestServer(t)
	sc := seedScript(t, ts.store, "Ordering Coffee", "커피 주문하기")

	req := httptest.NewRequest(http.MethodGet, "/scripts/"+sc.ID, nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Ordering Coffee</h1>")
	assert.Contains(t, body, "I walk into the cafe every morning.")
	assert.Contains(t, body, "한국어 번역")
	assert.Contains(t, body, "저는 매일 아침 카페에 갑니다.")
	assert.Contains(t, body, `src="/audio/`+sc.ProjectDir+`/audio/original.mp3"`)
	assert.Contains(t, body, "Mark practiced")
}

func TestScriptPageNotFound(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/scripts/missing", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteScript(t *testing.T) {
	ts := newTestServer(t)
	sc := seedScript(t, ts.store, "Ordering Coffee", "커피 주문하기")

	req := postForm(t, url.Values{}, "/scripts/"+sc.ID+"/delete")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	_, err := ts.store.GetScript(sc.ID)
	assert.Error(t, err)
}

func TestPracticedRecordsStat(t *testing.T) {
	ts := newTestServer(t)
	sc := seedScript(t, ts.store, "Ordering Coffee", "커피 주문하기")

	req := postForm(t, url.Values{}, "/scripts/"+sc.ID+"/practiced")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/scripts/"+sc.ID+"?practiced=1", rec.Header().Get("Location"))

	today := time.Now().Format("2006-01-02")
	days, err := ts.store.StatsRange(today, today)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 1, days[0].ScriptsPracticed)
}

func TestLangToggle(t *testing.T) {
	ts := newTestServer(t)
	seedScript(t, ts.store, "Ordering Coffee", "커피 주문하기")

	req := httptest.NewRequest(http.MethodGet, "/lang?set=ko", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "language switch should set the session cookie")

	// Carry the session into the next request; Korean titles lead.
	homeReq := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		homeReq.AddCookie(c)
	}
	homeRec := httptest.NewRecorder()
	ts.mux.ServeHTTP(homeRec, homeReq)

	assert.Contains(t, homeRec.Body.String(), `<span class="script-title">커피 주문하기</span>`)
}

func TestStepTitle(t *testing.T) {
	tests := []struct {
		step string
		want string
	}{
		{core.StepGenerate, "Writing the script"},
		{core.StepTranslate, "Translating to Korean"},
		{core.StepPersist, "Saving to your library"},
		{core.StepDerive(core.KindTed), "Creating the TED Talk version"},
		{core.StepTranslateKind(core.KindPodcast), "Translating the Podcast version"},
		{core.StepAudio(core.KindDaily), "Recording Daily Conversation audio"},
		{"mystery", "mystery"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stepTitle(tt.step), "step %q", tt.step)
	}
}
