package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownExtensions(t *testing.T) {
	t.Parallel()

	cases := map[string]Tag{
		".py":   Python,
		".pyi":  Python,
		".js":   JavaScript,
		".jsx":  JavaScript,
		".mjs":  JavaScript,
		".ts":   TypeScript,
		".tsx":  TypeScript,
		".go":   Go,
		".md":   Markup,
		".json": Markup,
		".yml":  Markup,
	}
	for ext, want := range cases {
		assert.Equal(t, want, Classify(ext), "extension %s", ext)
	}
}

func TestClassify_UnknownAndEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Other, Classify(".xyz"))
	assert.Equal(t, Other, Classify(""))
	assert.Equal(t, Other, Classify(".exe"))
}

func TestClassify_CaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Python, Classify(".PY"))
	assert.Equal(t, TypeScript, Classify(".Ts"))
}

func TestForFile(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Python, ForFile("a/b/module.py"))
	assert.Equal(t, Markup, ForFile("README.md"))
	assert.Equal(t, Other, ForFile("Makefile"))
}

func TestImportable_MatchesExtractionSupport(t *testing.T) {
	t.Parallel()

	for _, tag := range Tags() {
		assert.True(t, Importable(tag), "tag %s", tag)
	}
	assert.False(t, Importable(Markup))
	assert.False(t, Importable(Other))
}
