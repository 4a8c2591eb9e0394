package game

// Store is the persistence collaborator. The coordinator treats every call as
// durable-on-write and never reads its own state back; a write failure is
// logged and must not corrupt in-memory phase.
type Store interface {
	// CreateRoom allocates an id for the room and persists it.
	CreateRoom(v *RoomView) error
	SaveRoom(v RoomView) error
	DeleteRoom(id uint) error

	// CreateSession allocates an id for the session and persists it.
	CreateSession(v *SessionView) error
	SaveSession(v SessionView) error

	// AppendChapter persists an immutable chapter of the session.
	AppendChapter(sessionID uint, ch Chapter) error

	// CreateAction allocates an id for the action and persists it;
	// SaveAction records a status change.
	CreateAction(sessionID uint, a *Action) error
	SaveAction(sessionID uint, a Action) error

	// CreateRoomMessage and CreateGameMessage allocate ids in creation
	// order; the id doubles as the message sequence number.
	CreateRoomMessage(roomID uint, m *Message) error
	CreateGameMessage(sessionID uint, m *Message) error
}

// ChapterWriter is the content-generation collaborator. It is invoked exactly
// once per chapter advance; the chapter number does not move until it returns
// successfully.
type ChapterWriter interface {
	FirstChapter(world WorldInfo, characters []CharacterInfo) (string, error)
	NextChapter(world WorldInfo, characters []CharacterInfo, previous []Chapter, approved []Action, chapterNumber, maxChapters int) (string, error)
}
