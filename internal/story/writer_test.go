package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyweave/backend/internal/game"
)

var (
	testWorld = game.WorldInfo{
		ID:      1,
		Title:   "The Drowned Coast",
		Summary: "A kingdom slowly sinking beneath the tide.",
		Context: "Two centuries after the Great Flood, the last dry islands trade in salt and memory.",
	}
	testCast = []game.CharacterInfo{
		{ID: 1, Name: "Maren", Background: "Raised on the last dry island"},
		{ID: 2, Name: "Tobin"},
	}
)

func TestFirstChapter(t *testing.T) {
	w := NewTemplateWriter()

	content, err := w.FirstChapter(testWorld, testCast)
	require.NoError(t, err)

	assert.Contains(t, content, "The Drowned Coast")
	assert.Contains(t, content, testWorld.Summary)
	assert.Contains(t, content, testWorld.Context)
	assert.Contains(t, content, "Maren and Tobin")
	assert.Contains(t, content, "Raised on the last dry island")
}

func TestFirstChapterEmptyWorld(t *testing.T) {
	w := NewTemplateWriter()

	content, err := w.FirstChapter(game.WorldInfo{}, nil)
	require.NoError(t, err)
	assert.Contains(t, content, "an unnamed world")
}

func TestNextChapterFoldsApprovedActions(t *testing.T) {
	w := NewTemplateWriter()
	previous := []game.Chapter{{Number: 1, Content: "opening"}}

	t.Run("no approved actions", func(t *testing.T) {
		content, err := w.NextChapter(testWorld, testCast, previous, nil, 2, 5)
		require.NoError(t, err)
		assert.Contains(t, content, "the world moves of its own accord")
		assert.Contains(t, content, "far from over")
	})

	t.Run("single action", func(t *testing.T) {
		approved := []game.Action{{CharacterName: "Maren", Content: "slips out through the tide gate"}}
		content, err := w.NextChapter(testWorld, testCast, previous, approved, 2, 5)
		require.NoError(t, err)
		assert.Contains(t, content, "Maren acts decisively")
		assert.Contains(t, content, "slips out through the tide gate")
	})

	t.Run("several actions", func(t *testing.T) {
		approved := []game.Action{
			{CharacterName: "Maren", Content: "bars the gate"},
			{UserName: "tobin", Content: "lights the beacon"},
		}
		content, err := w.NextChapter(testWorld, testCast, previous, approved, 2, 5)
		require.NoError(t, err)
		assert.Contains(t, content, "each in their own way")
		assert.Contains(t, content, "Maren: bars the gate")
		assert.Contains(t, content, "tobin: lights the beacon", "actions without a character fall back to the user name")
	})
}

func TestNextChapterClosesAtLimit(t *testing.T) {
	w := NewTemplateWriter()
	previous := []game.Chapter{{Number: 1}, {Number: 2}}

	content, err := w.NextChapter(testWorld, testCast, previous, nil, 3, 3)
	require.NoError(t, err)
	assert.Contains(t, content, "draws to its close")
}

func TestNextChapterRejectsRewrite(t *testing.T) {
	w := NewTemplateWriter()
	previous := []game.Chapter{{Number: 1}, {Number: 2}}

	_, err := w.NextChapter(testWorld, testCast, previous, nil, 2, 5)
	require.Error(t, err)
}
