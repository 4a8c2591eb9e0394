package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSessionPhase(t *testing.T) {
	tests := []struct {
		name    string
		current SessionPhase
		event   TransitionEvent
		want    SessionPhase
		ok      bool
	}{
		{"chapter ready opens discussion", PhasePlaying, EventChapterReady, PhaseDiscussion, true},
		{"continue quorum opens action phase", PhaseDiscussion, EventContinueQuorum, PhaseAction, true},
		{"discussion deadline opens action phase", PhaseDiscussion, EventDeadline, PhaseAction, true},
		{"action deadline returns to playing", PhaseAction, EventDeadline, PhasePlaying, true},
		{"chapter limit finishes", PhaseAction, EventMaxChapters, PhaseFinished, true},
		{"empty session finishes from playing", PhasePlaying, EventEmpty, PhaseFinished, true},
		{"force end finishes from discussion", PhaseDiscussion, EventForceEnd, PhaseFinished, true},
		{"quorum is meaningless while playing", PhasePlaying, EventContinueQuorum, "", false},
		{"chapter ready is meaningless in action phase", PhaseAction, EventChapterReady, "", false},
		{"finished accepts nothing", PhaseFinished, EventForceEnd, "", false},
		{"finished ignores deadlines", PhaseFinished, EventDeadline, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextSessionPhase(tt.current, tt.event)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNextRoomPhase(t *testing.T) {
	tests := []struct {
		name    string
		current RoomPhase
		event   TransitionEvent
		want    RoomPhase
		ok      bool
	}{
		{"start opens character selection", RoomWaiting, EventStart, RoomCharacterSelection, true},
		{"selection quorum starts play", RoomCharacterSelection, EventAllSelected, RoomPlaying, true},
		{"empty room finishes", RoomWaiting, EventEmpty, RoomFinished, true},
		{"playing room can be force ended", RoomPlaying, EventForceEnd, RoomFinished, true},
		{"cannot start twice", RoomCharacterSelection, EventStart, "", false},
		{"finished accepts nothing", RoomFinished, EventStart, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextRoomPhase(tt.current, tt.event)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, PhaseFinished.Terminal())
	assert.False(t, PhasePlaying.Terminal())
	assert.False(t, PhaseDiscussion.Terminal())
	assert.False(t, PhaseAction.Terminal())
}
