package core

import "time"

// Category classifies a script by learning context.
type Category string

// Categories supported by the built-in prompt packs.
const (
	CategoryEveryday Category = "everyday"
	CategoryBusiness Category = "business"
	CategoryTravel   Category = "travel"
	CategoryAcademic Category = "academic"
)

// AllCategories returns the supported categories in display order.
func AllCategories() []Category {
	return []Category{CategoryEveryday, CategoryBusiness, CategoryTravel, CategoryAcademic}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryEveryday, CategoryBusiness, CategoryTravel, CategoryAcademic:
		return true
	}
	return false
}

// VersionKind identifies a practice version of a script.
type VersionKind string

// Version kinds. Original is the base script; the rest are derived styles.
const (
	KindOriginal VersionKind = "original"
	KindTed      VersionKind = "ted"
	KindPodcast  VersionKind = "podcast"
	KindDaily    VersionKind = "daily"
)

// AllVersionKinds returns every version kind, original first.
func AllVersionKinds() []VersionKind {
	return []VersionKind{KindOriginal, KindTed, KindPodcast, KindDaily}
}

// DerivedKinds returns the kinds produced from the original script.
func DerivedKinds() []VersionKind {
	return []VersionKind{KindTed, KindPodcast, KindDaily}
}

// Valid reports whether k is a known version kind.
func (k VersionKind) Valid() bool {
	switch k {
	case KindOriginal, KindTed, KindPodcast, KindDaily:
		return true
	}
	return false
}

// Dialogue reports whether the kind is a two-voice conversation format.
func (k VersionKind) Dialogue() bool {
	return k == KindPodcast || k == KindDaily
}

// Display returns the kind's English display name.
func (k VersionKind) Display() string {
	switch k {
	case KindOriginal:
		return "Original"
	case KindTed:
		return "TED Talk"
	case KindPodcast:
		return "Podcast"
	case KindDaily:
		return "Daily Conversation"
	}
	return string(k)
}

// SourceKind identifies where the input material for a script came from.
type SourceKind string

// Source kinds accepted by script creation.
const (
	SourceTopic SourceKind = "topic"
	SourceFile  SourceKind = "file"
	SourceURL   SourceKind = "url"
	SourceImage SourceKind = "image"
)

// Script is a generated study script in the library.
type Script struct {
	ID         string
	Title      string
	TitleKo    string
	Category   Category
	SourceKind SourceKind
	Source     string // topic text, file path, or URL
	ProjectDir string // workspace folder name, relative to the scripts dir
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Version is one practice rendition of a script.
type Version struct {
	ID          string
	ScriptID    string
	Kind        VersionKind
	Content     string
	Translation string // Korean translation
	AudioPath   string // relative to the project dir, empty when not synthesized
	Voice       string
	Engine      string // TTS engine that produced the audio
	CreatedAt   time.Time
}
