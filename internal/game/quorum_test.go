package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionQuorumMet(t *testing.T) {
	ready := func(id uint) *Member { return &Member{UserID: id, Ready: true, CharacterID: id * 10} }

	t.Run("empty membership never meets quorum", func(t *testing.T) {
		assert.False(t, SelectionQuorumMet(nil))
	})

	t.Run("all ready with characters", func(t *testing.T) {
		assert.True(t, SelectionQuorumMet([]*Member{ready(1), ready(2), ready(3)}))
	})

	t.Run("one member not ready blocks", func(t *testing.T) {
		m := ready(2)
		m.Ready = false
		assert.False(t, SelectionQuorumMet([]*Member{ready(1), m}))
	})

	t.Run("ready without a character blocks", func(t *testing.T) {
		m := ready(2)
		m.CharacterID = 0
		assert.False(t, SelectionQuorumMet([]*Member{ready(1), m}))
	})
}

func TestContinueQuorumMet(t *testing.T) {
	unanimous := Settings{RequireAllPlayers: true}
	fractional := Settings{RequireAllPlayers: false}

	t.Run("zero ready never meets quorum", func(t *testing.T) {
		assert.False(t, ContinueQuorumMet(3, 0, unanimous))
		assert.False(t, ContinueQuorumMet(3, 0, fractional))
	})

	t.Run("unanimity requires everyone", func(t *testing.T) {
		assert.False(t, ContinueQuorumMet(3, 2, unanimous))
		assert.True(t, ContinueQuorumMet(3, 3, unanimous))
	})

	t.Run("fractional threshold", func(t *testing.T) {
		// threshold = floor(total * 0.6), minimum one
		assert.True(t, ContinueQuorumMet(1, 1, fractional))
		assert.True(t, ContinueQuorumMet(3, 1, fractional))  // floor(1.8) = 1
		assert.False(t, ContinueQuorumMet(5, 2, fractional)) // floor(3.0) = 3
		assert.True(t, ContinueQuorumMet(5, 3, fractional))
		assert.False(t, ContinueQuorumMet(10, 5, fractional))
		assert.True(t, ContinueQuorumMet(10, 6, fractional))
	})

	t.Run("auto continue overrides unanimity", func(t *testing.T) {
		auto := Settings{RequireAllPlayers: true, AutoContinue: true}
		assert.True(t, ContinueQuorumMet(3, 2, auto))
		assert.False(t, ContinueQuorumMet(5, 2, auto))
	})

	t.Run("member departure can satisfy a stale quorum", func(t *testing.T) {
		// Two of four ready does not meet unanimity; once two leave, the
		// same ready count against the shrunken denominator does.
		assert.False(t, ContinueQuorumMet(4, 2, unanimous))
		assert.True(t, ContinueQuorumMet(2, 2, unanimous))
	})
}
