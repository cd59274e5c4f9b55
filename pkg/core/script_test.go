package core_test

import (
	"testing"

	"github.com/mytalk-labs/mytalk/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestCategoryValid(t *testing.T) {
	for _, c := range core.AllCategories() {
		assert.True(t, c.Valid(), "category %q should be valid", c)
	}
	assert.False(t, core.Category("").Valid())
	assert.False(t, core.Category("cooking").Valid())
}

func TestVersionKindValid(t *testing.T) {
	for _, k := range core.AllVersionKinds() {
		assert.True(t, k.Valid(), "kind %q should be valid", k)
	}
	assert.False(t, core.VersionKind("opera").Valid())
}

func TestVersionKindDialogue(t *testing.T) {
	assert.False(t, core.KindOriginal.Dialogue())
	assert.False(t, core.KindTed.Dialogue())
	assert.True(t, core.KindPodcast.Dialogue())
	assert.True(t, core.KindDaily.Dialogue())
}

func TestDerivedKindsExcludeOriginal(t *testing.T) {
	for _, k := range core.DerivedKinds() {
		assert.NotEqual(t, core.KindOriginal, k)
	}
	assert.Len(t, core.DerivedKinds(), len(core.AllVersionKinds())-1)
}

func TestStepNames(t *testing.T) {
	assert.Equal(t, "derive:ted", core.StepDerive(core.KindTed))
	assert.Equal(t, "audio:podcast", core.StepAudio(core.KindPodcast))
}
