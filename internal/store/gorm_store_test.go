package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storyweave/backend/internal/game"
)

func TestChapterRecordKeepsActionIDs(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := chapterRecord(7, game.Chapter{
		Number:    3,
		Content:   "The gates open.",
		CreatedAt: created,
		ActionIDs: []uint{11, 14},
	})

	assert.Equal(t, uint(7), rec.SessionID)
	assert.Equal(t, 3, rec.Number)
	assert.Equal(t, "The gates open.", rec.Content)
	assert.Equal(t, []uint{11, 14}, rec.ActionIDs)
	assert.Equal(t, created, rec.CreatedAt)
}

func TestChapterRecordEmptyFold(t *testing.T) {
	rec := chapterRecord(1, game.Chapter{Number: 1, Content: "The story begins."})
	assert.Empty(t, rec.ActionIDs)
}
