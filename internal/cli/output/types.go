package output

// ScriptInfo describes one library script for JSON output.
type ScriptInfo struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	TitleKo    string   `json:"title_ko,omitempty"`
	Category   string   `json:"category"`
	SourceKind string   `json:"source_kind,omitempty"`
	ProjectDir string   `json:"project_dir,omitempty"`
	CreatedAt  string   `json:"created_at"`
	Kinds      []string `json:"kinds"`
	HasAudio   bool     `json:"has_audio"`
}

// ListSummary aggregates the library listing.
type ListSummary struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	WithAudio  int            `json:"with_audio"`
}

// ListOutput is the JSON payload of the list command.
type ListOutput struct {
	Scripts []ScriptInfo `json:"scripts"`
	Summary ListSummary  `json:"summary"`
}

// VersionInfo describes one practice version for JSON output.
type VersionInfo struct {
	Kind        string `json:"kind"`
	Content     string `json:"content"`
	Translation string `json:"translation,omitempty"`
	AudioFile   string `json:"audio_file,omitempty"`
}

// ShowOutput is the JSON payload of the show command.
type ShowOutput struct {
	Script   ScriptInfo    `json:"script"`
	Versions []VersionInfo `json:"versions"`
}

// RunEvent is one line of the JSON event stream emitted while a
// script creation runs.
type RunEvent struct {
	Event     string `json:"event"`
	RunID     string `json:"run_id,omitempty"`
	Step      string `json:"step,omitempty"`
	Status    string `json:"status,omitempty"`
	Done      int    `json:"done,omitempty"`
	Total     int    `json:"total,omitempty"`
	Detail    string `json:"detail,omitempty"`
	ScriptID  string `json:"script_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Dir       string `json:"dir,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
