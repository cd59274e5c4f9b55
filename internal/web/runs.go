package web

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mytalk-labs/mytalk/internal/engine"
	"github.com/mytalk-labs/mytalk/internal/web/notifier"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

// keepRuns bounds the in-memory run history. Finished runs past the
// limit are dropped oldest first.
const keepRuns = 20

// runStep is one pipeline step as shown on the progress page.
type runStep struct {
	Name   string
	Label  string
	Status core.StepStatus
	Detail string
}

// liveRun tracks one generation for progress rendering. The engine
// reports audio steps from several goroutines, so observe locks.
type liveRun struct {
	ID      string
	Topic   string
	Started time.Time

	mu       sync.Mutex
	steps    []runStep
	index    map[string]int
	status   core.RunStatus
	scriptID string
	title    string
	errMsg   string

	updates *notifier.Notifier
}

// runView is an immutable snapshot for template rendering.
type runView struct {
	ID       string
	Topic    string
	Status   core.RunStatus
	Steps    []runStep
	ScriptID string
	Title    string
	Error    string
	Elapsed  time.Duration
}

func (r *liveRun) observe(p engine.Progress) {
	r.mu.Lock()
	i, ok := r.index[p.Step]
	if !ok {
		i = len(r.steps)
		r.index[p.Step] = i
		r.steps = append(r.steps, runStep{Name: p.Step, Label: stepTitle(p.Step)})
	}
	r.steps[i].Status = p.Status
	r.steps[i].Detail = p.Detail
	r.mu.Unlock()

	r.updates.Broadcast()
}

func (r *liveRun) finish(res *engine.Result, err error) {
	r.mu.Lock()
	if err != nil {
		r.status = core.RunStatusFailed
		r.errMsg = err.Error()
	} else {
		r.status = core.RunStatusCompleted
		r.scriptID = res.Script.ID
		r.title = res.Script.Title
	}
	r.mu.Unlock()

	r.updates.Broadcast()
}

func (r *liveRun) view() runView {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := make([]runStep, len(r.steps))
	copy(steps, r.steps)

	return runView{
		ID:       r.ID,
		Topic:    r.Topic,
		Status:   r.status,
		Steps:    steps,
		ScriptID: r.scriptID,
		Title:    r.title,
		Error:    r.errMsg,
		Elapsed:  time.Since(r.Started).Round(time.Second),
	}
}

// runLog keeps recent runs in memory for the progress pages. Nothing
// here survives a restart; the durable record lives in the library.
type runLog struct {
	mu    sync.RWMutex
	runs  map[string]*liveRun
	order []string
}

func newRunLog() *runLog {
	return &runLog{runs: make(map[string]*liveRun)}
}

func (l *runLog) add(topic string) *liveRun {
	run := &liveRun{
		ID:      uuid.NewString(),
		Topic:   topic,
		Started: time.Now(),
		index:   make(map[string]int),
		status:  core.RunStatusRunning,
		updates: notifier.New(),
	}

	l.mu.Lock()
	l.runs[run.ID] = run
	l.order = append(l.order, run.ID)
	for len(l.order) > keepRuns {
		delete(l.runs, l.order[0])
		l.order = l.order[1:]
	}
	l.mu.Unlock()

	return run
}

func (l *runLog) get(id string) (*liveRun, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.runs[id]
	return run, ok
}

// stepTitle renders a pipeline step name for the progress page.
func stepTitle(step string) string {
	name, kindName, _ := strings.Cut(step, ":")
	kind := core.VersionKind(kindName)

	switch name {
	case core.StepGenerate:
		return "Writing the script"
	case core.StepTranslate:
		if kindName != "" {
			return "Translating the " + kind.Display() + " version"
		}
		return "Translating to Korean"
	case core.StepPersist:
		return "Saving to your library"
	case "derive":
		return "Creating the " + kind.Display() + " version"
	case "audio":
		return "Recording " + kind.Display() + " audio"
	}
	return step
}
