package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtraction_TruncatesText(t *testing.T) {
	text := strings.Repeat("a", 50) + "TAIL"
	p := Extraction(text, 50)

	assert.Contains(t, p, strings.Repeat("a", 50))
	assert.NotContains(t, p, "TAIL")
	assert.Contains(t, p, `"Change (%)"`)
	assert.Contains(t, p, `"2.33%"`)
}

func TestShortExtraction_IsShorter(t *testing.T) {
	text := strings.Repeat("report line\n", 2000)
	full := Extraction(text, 12000)
	short := ShortExtraction(text, 4000)

	assert.Less(t, len(short), len(full))
	assert.Contains(t, short, `"Change (%)"`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "héllo", Truncate("héllo", 0))
	assert.Equal(t, "££", Truncate("£££", 2))
	assert.Equal(t, "", Truncate("", 3))
}

func TestAnalysis_EmbedsTableAndStyle(t *testing.T) {
	table := "Metric  Value\nClicks  £1,200"
	p := Analysis(table, nil)

	assert.Contains(t, p, "You are a Google Ads expert.")
	assert.Contains(t, p, table)
	assert.Contains(t, p, "UK English")
	assert.Contains(t, p, "emojis or exclamation marks")
	assert.Contains(t, p, "delve")
	assert.Contains(t, p, "tapestry")
}

func TestRefinement_EmbedsPreviousAndInstructions(t *testing.T) {
	p := Refinement("First draft text.", "  make it shorter  ", DefaultStyleGuide())

	assert.Contains(t, p, "First draft text.")
	assert.Contains(t, p, "make it shorter")
	assert.Contains(t, p, "MUST NOT include")
}

func TestLoadStyleGuide_Empty(t *testing.T) {
	g, err := LoadStyleGuide("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStyleGuide(), g)
}

func TestLoadStyleGuide_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "style.yaml")
	content := `style:
  language: UK English
  rules:
    - Keep it under 200 words.
  banned_words:
    - synergy
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	g, err := LoadStyleGuide(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Keep it under 200 words."}, g.Rules)
	assert.Equal(t, []string{"synergy"}, g.BannedWords)
	assert.Equal(t, DefaultStyleGuide().Role, g.Role)

	p := Analysis("t", g)
	assert.Contains(t, p, "1. Keep it under 200 words.")
	assert.Contains(t, p, "2. You MUST NOT include any of the following words or phrases in the response: synergy")
}

func TestLoadStyleGuide_TopLevelKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role: You are an analyst.\n"), 0o644))

	g, err := LoadStyleGuide(path)
	require.NoError(t, err)
	assert.Equal(t, "You are an analyst.", g.Role)
	assert.Equal(t, DefaultStyleGuide().BannedWords, g.BannedWords)
}

func TestLoadStyleGuide_Errors(t *testing.T) {
	_, err := LoadStyleGuide(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("style: [unclosed"), 0o644))
	_, err = LoadStyleGuide(path)
	assert.Error(t, err)
}

func TestContainsBanned(t *testing.T) {
	g := DefaultStyleGuide()

	found := g.ContainsBanned("Let us Delve into the data. Worldwide reach grew.")
	assert.Equal(t, []string{"delve"}, found)

	assert.Empty(t, g.ContainsBanned("Clicks rose by ten percent."))
	assert.Equal(t, []string{"in today's"}, g.ContainsBanned("In today's report"))
}
