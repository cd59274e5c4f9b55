package core

// SearchOptions narrows ListScripts results.
type SearchOptions struct {
	Query    string   // matched against title, korean title, and content (LIKE)
	Category Category // empty for all
	Limit    int      // 0 for no limit
}

// DailyStat is one day of study activity. Date is formatted YYYY-MM-DD.
type DailyStat struct {
	Date             string
	ScriptsCreated   int
	ScriptsPracticed int
	StudyMinutes     int
}

// StatsSummary aggregates daily stats over a range.
type StatsSummary struct {
	Days             []*DailyStat
	ScriptsCreated   int
	ScriptsPracticed int
	StudyMinutes     int
}

// Store defines the interface for library persistence.
type Store interface {
	Open() error
	Close() error
	Migrate() error

	// Script operations
	CreateScript(s *Script) error
	GetScript(id string) (*Script, error)
	ListScripts(opts SearchOptions) ([]*Script, error)
	UpdateScript(s *Script) error
	DeleteScript(id string) error

	// Version operations (SaveVersion upserts by script and kind)
	SaveVersion(v *Version) error
	GetVersion(scriptID string, kind VersionKind) (*Version, error)
	ListVersions(scriptID string) ([]*Version, error)

	// Run operations
	CreateRun() (*Run, error)
	AttachRunScript(runID, scriptID string) error
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	RecordStep(step *StepRun) error
	UpdateStep(id string, status StepStatus, errMsg string) error
	StepsForRun(runID string) ([]*StepRun, error)

	// Study stats (date formatted YYYY-MM-DD, upserted per day)
	AddScriptCreated(date string) error
	AddScriptPracticed(date string) error
	AddStudyMinutes(date string, minutes int) error
	StatsRange(from, to string) ([]*DailyStat, error)
}
