package game

// RoomPhase is the lifecycle stage of a room (the pre-game lobby).
type RoomPhase string

const (
	RoomWaiting            RoomPhase = "waiting"
	RoomCharacterSelection RoomPhase = "character_selection"
	RoomPlaying            RoomPhase = "playing"
	RoomFinished           RoomPhase = "finished"
)

// SessionPhase is the lifecycle stage of a live game session.
type SessionPhase string

const (
	PhasePlaying    SessionPhase = "playing"
	PhaseDiscussion SessionPhase = "discussion"
	PhaseAction     SessionPhase = "action_phase"
	PhaseFinished   SessionPhase = "finished"
)

// Terminal reports whether no further transition is allowed from p.
func (p SessionPhase) Terminal() bool { return p == PhaseFinished }

// TransitionEvent identifies what is driving a phase change. Deadline firings
// and participant commands produce the same events, so the state machine has
// a single entry point.
type TransitionEvent string

const (
	// EventStart fires when the admin starts the room.
	EventStart TransitionEvent = "start"
	// EventAllSelected fires when every member is ready with a character.
	EventAllSelected TransitionEvent = "all_selected"
	// EventChapterReady fires when chapter content arrives from the writer.
	EventChapterReady TransitionEvent = "chapter_ready"
	// EventContinueQuorum fires when the ready-to-continue quorum is met.
	EventContinueQuorum TransitionEvent = "continue_quorum"
	// EventDeadline fires when the active deadline expires.
	EventDeadline TransitionEvent = "deadline"
	// EventMaxChapters fires when an advance would exceed the chapter limit.
	EventMaxChapters TransitionEvent = "max_chapters"
	// EventEmpty fires when the last member leaves.
	EventEmpty TransitionEvent = "empty"
	// EventForceEnd fires when the admin forcibly ends the session.
	EventForceEnd TransitionEvent = "force_end"
)

// sessionTransitions is the authoritative transition table. A (phase, event)
// pair absent from the table is an invariant violation; the coordinator
// finishes the session defensively when it sees one.
var sessionTransitions = map[SessionPhase]map[TransitionEvent]SessionPhase{
	PhasePlaying: {
		EventChapterReady: PhaseDiscussion,
		EventEmpty:        PhaseFinished,
		EventForceEnd:     PhaseFinished,
	},
	PhaseDiscussion: {
		EventContinueQuorum: PhaseAction,
		EventDeadline:       PhaseAction,
		EventEmpty:          PhaseFinished,
		EventForceEnd:       PhaseFinished,
	},
	PhaseAction: {
		EventDeadline:    PhasePlaying,
		EventMaxChapters: PhaseFinished,
		EventEmpty:       PhaseFinished,
		EventForceEnd:    PhaseFinished,
	},
}

// NextSessionPhase is the pure transition function for sessions:
// (current phase, event) → (new phase, ok). It performs no side effects.
func NextSessionPhase(current SessionPhase, event TransitionEvent) (SessionPhase, bool) {
	next, ok := sessionTransitions[current][event]
	return next, ok
}

var roomTransitions = map[RoomPhase]map[TransitionEvent]RoomPhase{
	RoomWaiting: {
		EventStart:    RoomCharacterSelection,
		EventEmpty:    RoomFinished,
		EventForceEnd: RoomFinished,
	},
	RoomCharacterSelection: {
		EventAllSelected: RoomPlaying,
		EventEmpty:       RoomFinished,
		EventForceEnd:    RoomFinished,
	},
	RoomPlaying: {
		EventEmpty:    RoomFinished,
		EventForceEnd: RoomFinished,
	},
}

// NextRoomPhase is the pure transition function for rooms.
func NextRoomPhase(current RoomPhase, event TransitionEvent) (RoomPhase, bool) {
	next, ok := roomTransitions[current][event]
	return next, ok
}
