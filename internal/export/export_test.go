package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytalk-labs/mytalk/pkg/core"
)

func sampleBundle() Bundle {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return Bundle{
		Script: &core.Script{
			ID:         "scr-1",
			Title:      "Ordering Coffee",
			TitleKo:    "커피 주문하기",
			Category:   core.CategoryEveryday,
			SourceKind: core.SourceTopic,
			Source:     "ordering coffee",
			CreatedAt:  created,
		},
		Versions: []*core.Version{
			{
				Kind:        core.KindOriginal,
				Content:     "I walk into the cafe every morning.",
				Translation: "저는 매일 아침 카페에 갑니다.",
				AudioPath:   "audio/original.mp3",
				Voice:       "alloy",
				Engine:      "openai",
			},
			{
				Kind:    core.KindPodcast,
				Content: "Host: Welcome back.\nGuest: Glad to be here.",
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{
		"json":     FormatJSON,
		"JSON":     FormatJSON,
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
		" md ":     FormatMarkdown,
	} {
		got, err := ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseFormat("pdf")
	assert.ErrorContains(t, err, "unknown export format")
}

func TestJSON(t *testing.T) {
	data, err := JSON(sampleBundle())
	require.NoError(t, err)

	var doc struct {
		ID       string `json:"id"`
		TitleKo  string `json:"title_ko"`
		Versions []struct {
			Kind        string `json:"kind"`
			Translation string `json:"translation"`
			AudioPath   string `json:"audio_path"`
		} `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "scr-1", doc.ID)
	assert.Equal(t, "커피 주문하기", doc.TitleKo)
	require.Len(t, doc.Versions, 2)
	assert.Equal(t, "original", doc.Versions[0].Kind)
	assert.Equal(t, "audio/original.mp3", doc.Versions[0].AudioPath)
	assert.Empty(t, doc.Versions[1].Translation)
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown(sampleBundle()))

	assert.Contains(t, out, "# Ordering Coffee\n")
	assert.Contains(t, out, "커피 주문하기")
	assert.Contains(t, out, "- Category: everyday")
	assert.Contains(t, out, "- Source: ordering coffee (topic)")
	assert.Contains(t, out, "- Created: 2026-03-14")
	assert.Contains(t, out, "## Original\n")
	assert.Contains(t, out, "### 한국어\n")
	assert.Contains(t, out, "저는 매일 아침 카페에 갑니다.")
	assert.Contains(t, out, "## Podcast\n")
	assert.Contains(t, out, "Host: Welcome back.")

	// the podcast version has no translation, so only one Korean section
	assert.Equal(t, 1, strings.Count(out, "### 한국어"))
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, sampleBundle(), FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260314_093000_ordering-coffee.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Ordering Coffee")

	path, err = Write(dir, sampleBundle(), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260314_093000_ordering-coffee.json"), path)

	_, err = Write(dir, sampleBundle(), Format("pdf"))
	assert.ErrorContains(t, err, "unknown export format")
}

func TestWriteCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports", "nested")
	path, err := Write(dir, sampleBundle(), FormatJSON)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
