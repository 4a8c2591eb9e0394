package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyweave/backend/internal/hub"
)

// region --- Test doubles ---

type memStore struct {
	mu           sync.Mutex
	nextID       uint
	deletedRooms []uint
	chapters     map[uint][]Chapter
}

func newMemStore() *memStore {
	return &memStore{chapters: make(map[uint][]Chapter)}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateRoom(v *RoomView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.id()
	return nil
}

func (m *memStore) SaveRoom(RoomView) error { return nil }

func (m *memStore) DeleteRoom(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedRooms = append(m.deletedRooms, id)
	return nil
}

func (m *memStore) CreateSession(v *SessionView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.id()
	return nil
}

func (m *memStore) SaveSession(SessionView) error { return nil }

func (m *memStore) AppendChapter(sessionID uint, ch Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chapters[sessionID] = append(m.chapters[sessionID], ch)
	return nil
}

func (m *memStore) CreateAction(_ uint, a *Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	return nil
}

func (m *memStore) SaveAction(uint, Action) error { return nil }

func (m *memStore) CreateRoomMessage(_ uint, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.id()
	return nil
}

func (m *memStore) CreateGameMessage(_ uint, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.id()
	return nil
}

func (m *memStore) storedChapters(sessionID uint) []Chapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Chapter{}, m.chapters[sessionID]...)
}

type recordingHub struct {
	mu     sync.Mutex
	events map[string][]hub.Event
}

func newRecordingHub() *recordingHub {
	return &recordingHub{events: make(map[string][]hub.Event)}
}

func (h *recordingHub) Broadcast(channel string, e hub.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[channel] = append(h.events[channel], e)
}

func (h *recordingHub) types(channel string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events[channel]))
	for _, e := range h.events[channel] {
		out = append(out, e.Type)
	}
	return out
}

func (h *recordingHub) saw(channel, eventType string) bool {
	return h.count(channel, eventType) > 0
}

func (h *recordingHub) count(channel, eventType string) int {
	n := 0
	for _, t := range h.types(channel) {
		if t == eventType {
			n++
		}
	}
	return n
}

type fakeWriter struct {
	mu   sync.Mutex
	fail bool
}

func (w *fakeWriter) setFail(fail bool) {
	w.mu.Lock()
	w.fail = fail
	w.mu.Unlock()
}

func (w *fakeWriter) failing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fail
}

func (w *fakeWriter) FirstChapter(WorldInfo, []CharacterInfo) (string, error) {
	if w.failing() {
		return "", errors.New("generator unavailable")
	}
	return "The story begins.", nil
}

func (w *fakeWriter) NextChapter(_ WorldInfo, _ []CharacterInfo, _ []Chapter, _ []Action, chapterNumber, _ int) (string, error) {
	if w.failing() {
		return "", errors.New("generator unavailable")
	}
	return fmt.Sprintf("Chapter %d unfolds.", chapterNumber), nil
}

// testClock skews the coordinator's notion of now without touching real
// timers; expired deadlines are then collected by the reap path.
type testClock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (tc *testClock) now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return time.Now().Add(tc.offset)
}

func (tc *testClock) set(d time.Duration) {
	tc.mu.Lock()
	tc.offset = d
	tc.mu.Unlock()
}

func newTestCoordinator(t *testing.T) (*Coordinator, *memStore, *recordingHub, *fakeWriter, *testClock) {
	t.Helper()
	store := newMemStore()
	h := newRecordingHub()
	w := &fakeWriter{}
	c := New(store, h, w, zerolog.Nop())
	clock := &testClock{}
	c.clock = clock.now
	return c, store, h, w, clock
}

var (
	alice = Identity{ID: 1, Name: "alice"}
	bob   = Identity{ID: 2, Name: "bob"}
	carol = Identity{ID: 3, Name: "carol"}
)

func defaultSettings() Settings {
	return Settings{
		DiscussionSeconds: 300,
		ActionSeconds:     300,
		RequireAllPlayers: true,
		MaxChapters:       5,
	}
}

func createRoom(t *testing.T, c *Coordinator, settings Settings, members ...Identity) RoomView {
	t.Helper()
	require.NotEmpty(t, members)

	v, err := c.CreateRoom(members[0], "test room", WorldInfo{ID: 1, Title: "Testland"}, 8, settings)
	require.NoError(t, err)
	for _, m := range members[1:] {
		_, err := c.JoinRoom(v.ID, m)
		require.NoError(t, err)
	}
	return v
}

// startSession drives a room through start, selection and readiness, then
// waits for the opening chapter. Returns the room and session ids.
func startSession(t *testing.T, c *Coordinator, settings Settings, members ...Identity) (uint, uint) {
	t.Helper()

	room := createRoom(t, c, settings, members...)
	started, err := c.StartRoom(room.ID, members[0].ID)
	require.NoError(t, err)
	require.Equal(t, RoomCharacterSelection, started.Phase)

	for _, m := range members {
		_, err := c.SelectCharacter(room.ID, m.ID, CharacterInfo{ID: m.ID * 100, Name: "char-" + m.Name})
		require.NoError(t, err)
		_, err = c.ToggleReady(room.ID, m.ID)
		require.NoError(t, err)
	}

	awaitPhase(t, c, started.SessionID, PhaseDiscussion, 1)
	return room.ID, started.SessionID
}

func awaitPhase(t *testing.T, c *Coordinator, sessionID uint, phase SessionPhase, chapter int) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := c.Session(sessionID)
		return err == nil && v.Phase == phase && v.CurrentChapter == chapter
	}, 2*time.Second, 5*time.Millisecond, "session %d never reached %s at chapter %d", sessionID, phase, chapter)
}

// toActionPhase marks everyone ready to continue so the session advances.
func toActionPhase(t *testing.T, c *Coordinator, sessionID uint, members ...Identity) {
	t.Helper()
	for _, m := range members {
		v, err := c.MarkContinue(sessionID, m.ID, true)
		require.NoError(t, err)
		if v.Phase == PhaseAction {
			return
		}
	}
	t.Fatal("continue quorum never fired")
}

// endregion

// region --- Room lifecycle ---

func TestCreateRoomValidation(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, err := c.CreateRoom(alice, "room", WorldInfo{}, 0, defaultSettings())
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = c.CreateRoom(alice, "   ", WorldInfo{}, 4, defaultSettings())
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	s := defaultSettings()
	s.MaxChapters = 99
	_, err = c.CreateRoom(alice, "room", WorldInfo{}, 4, s)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCreateRoomDefaultsSettings(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	v, err := c.CreateRoom(alice, "room", WorldInfo{}, 4, Settings{})
	require.NoError(t, err)
	assert.Equal(t, 300, v.Settings.DiscussionSeconds)
	assert.Equal(t, 300, v.Settings.ActionSeconds)
	assert.Equal(t, 5, v.Settings.MaxChapters)
	assert.NotEmpty(t, v.JoinCode)
	assert.Equal(t, alice.ID, v.AdminID)
}

func TestJoinRoomCapacity(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	v, err := c.CreateRoom(alice, "room", WorldInfo{}, 2, defaultSettings())
	require.NoError(t, err)

	_, err = c.JoinRoom(v.ID, bob)
	require.NoError(t, err)

	_, err = c.JoinRoom(v.ID, carol)
	require.Error(t, err)
	assert.Equal(t, KindCapacity, KindOf(err))

	// Rejoining is a no-op, not a capacity violation.
	again, err := c.JoinRoom(v.ID, bob)
	require.NoError(t, err)
	assert.Len(t, again.Members, 2)
}

func TestJoinRoomAfterStartRejected(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice, bob)
	_, err := c.StartRoom(room.ID, alice.ID)
	require.NoError(t, err)

	_, err = c.JoinRoom(room.ID, carol)
	require.Error(t, err)
	assert.Equal(t, KindPhase, KindOf(err))
}

func TestRoomByCode(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	v, err := c.CreateRoom(alice, "room", WorldInfo{}, 4, defaultSettings())
	require.NoError(t, err)

	found, err := c.RoomByCode(v.JoinCode)
	require.NoError(t, err)
	assert.Equal(t, v.ID, found.ID)

	_, err = c.RoomByCode("nope")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStartRoomChecks(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice, bob)

	_, err := c.StartRoom(room.ID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))

	solo, err := c.CreateRoom(carol, "solo", WorldInfo{}, 4, defaultSettings())
	require.NoError(t, err)
	_, err = c.StartRoom(solo.ID, carol.ID)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	started, err := c.StartRoom(room.ID, alice.ID)
	require.NoError(t, err)
	assert.NotZero(t, started.SessionID)

	// Linking happens exactly once.
	_, err = c.StartRoom(room.ID, alice.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestSelectCharacterConflict(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice, bob)
	_, err := c.StartRoom(room.ID, alice.ID)
	require.NoError(t, err)

	sword := CharacterInfo{ID: 7, Name: "Maren"}
	_, err = c.SelectCharacter(room.ID, alice.ID, sword)
	require.NoError(t, err)

	_, err = c.SelectCharacter(room.ID, bob.ID, sword)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// Re-selecting one's own character is allowed.
	_, err = c.SelectCharacter(room.ID, alice.ID, sword)
	require.NoError(t, err)
}

func TestToggleReadyRequiresCharacter(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice, bob)
	_, err := c.StartRoom(room.ID, alice.ID)
	require.NoError(t, err)

	_, err = c.ToggleReady(room.ID, alice.ID)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestAdminTransferOnLeave(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice, bob, carol)
	require.NoError(t, c.LeaveRoom(room.ID, alice.ID))

	v, err := c.Room(room.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, v.AdminID, "admin role follows join order")
	assert.Len(t, v.Members, 2)
}

func TestLeaveRoomIdempotent(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice, bob)
	require.NoError(t, c.LeaveRoom(room.ID, bob.ID))
	require.NoError(t, c.LeaveRoom(room.ID, bob.ID), "duplicate leave is a no-op")

	v, err := c.Room(room.ID)
	require.NoError(t, err)
	assert.Len(t, v.Members, 1)
}

func TestEmptyRoomTornDown(t *testing.T) {
	c, store, h, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice)
	require.NoError(t, c.LeaveRoom(room.ID, alice.ID))

	_, err := c.Room(room.ID)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Contains(t, store.deletedRooms, room.ID)
	assert.True(t, h.saw(RoomChannel(room.ID), EvtRoomClosed))
}

// endregion

// region --- Activation ---

func TestSelectionQuorumActivatesSession(t *testing.T) {
	c, store, h, _, _ := newTestCoordinator(t)

	roomID, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	room, err := c.Room(roomID)
	require.NoError(t, err)
	assert.Equal(t, RoomPlaying, room.Phase)
	assert.True(t, h.saw(RoomChannel(roomID), EvtGameStarted))

	session, err := c.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, PhaseDiscussion, session.Phase)
	assert.Equal(t, 1, session.CurrentChapter)
	assert.Len(t, session.Members, 2)
	require.NotNil(t, session.Deadline)
	assert.Equal(t, 300, session.Deadline.SecondsTotal)

	require.Len(t, store.storedChapters(sessionID), 1)
	assert.True(t, h.saw(GameChannel(sessionID), EvtChapterCreated))
	assert.True(t, h.saw(GameChannel(sessionID), EvtDiscussionStarted))
}

func TestLeaveCompletesSelectionQuorum(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice, bob, carol)
	started, err := c.StartRoom(room.ID, alice.ID)
	require.NoError(t, err)

	for _, m := range []Identity{alice, bob} {
		_, err := c.SelectCharacter(room.ID, m.ID, CharacterInfo{ID: m.ID * 100, Name: "char-" + m.Name})
		require.NoError(t, err)
		_, err = c.ToggleReady(room.ID, m.ID)
		require.NoError(t, err)
	}

	v, err := c.Room(room.ID)
	require.NoError(t, err)
	require.Equal(t, RoomCharacterSelection, v.Phase, "quorum not met while the third member lingers")

	// The unready member leaving shrinks the denominator and fires the quorum.
	require.NoError(t, c.LeaveRoom(room.ID, carol.ID))
	awaitPhase(t, c, started.SessionID, PhaseDiscussion, 1)

	session, err := c.Session(started.SessionID)
	require.NoError(t, err)
	assert.Len(t, session.Members, 2)
}

func TestFirstChapterFailureKeepsSessionRecoverable(t *testing.T) {
	c, _, h, w, _ := newTestCoordinator(t)
	w.setFail(true)

	room := createRoom(t, c, defaultSettings(), alice, bob)
	started, err := c.StartRoom(room.ID, alice.ID)
	require.NoError(t, err)

	for _, m := range []Identity{alice, bob} {
		_, err := c.SelectCharacter(room.ID, m.ID, CharacterInfo{ID: m.ID * 100, Name: "char-" + m.Name})
		require.NoError(t, err)
		_, err = c.ToggleReady(room.ID, m.ID)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return h.saw(GameChannel(started.SessionID), EvtGenerationFailed)
	}, 2*time.Second, 5*time.Millisecond)

	session, err := c.Session(started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, PhasePlaying, session.Phase, "session awaits its opening chapter")
	assert.Zero(t, session.CurrentChapter)
}

// endregion

// region --- Discussion and continue quorum ---

func TestMarkContinueUnanimousQuorum(t *testing.T) {
	c, _, h, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	v, err := c.MarkContinue(sessionID, alice.ID, true)
	require.NoError(t, err)
	assert.Equal(t, PhaseDiscussion, v.Phase)
	assert.Equal(t, 1, v.ReadyCount)

	v, err = c.MarkContinue(sessionID, bob.ID, true)
	require.NoError(t, err)
	assert.Equal(t, PhaseAction, v.Phase)
	require.NotNil(t, v.Deadline)
	assert.True(t, h.saw(GameChannel(sessionID), EvtActionPhaseStarted))
}

func TestMarkContinueRetract(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	_, err := c.MarkContinue(sessionID, alice.ID, true)
	require.NoError(t, err)
	v, err := c.MarkContinue(sessionID, alice.ID, false)
	require.NoError(t, err)
	assert.Zero(t, v.ReadyCount)
	assert.Equal(t, PhaseDiscussion, v.Phase)
}

func TestMarkContinueFractionalQuorum(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	s := defaultSettings()
	s.RequireAllPlayers = false
	_, sessionID := startSession(t, c, s, alice, bob, carol)

	// floor(3 * 0.6) = 1, so a single member advances the session.
	v, err := c.MarkContinue(sessionID, bob.ID, true)
	require.NoError(t, err)
	assert.Equal(t, PhaseAction, v.Phase)
}

func TestMarkContinueOutsideDiscussion(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)
	toActionPhase(t, c, sessionID, alice, bob)

	_, err := c.MarkContinue(sessionID, alice.ID, true)
	require.Error(t, err)
	assert.Equal(t, KindPhase, KindOf(err))
}

func TestLeaveCompletesContinueQuorum(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob, carol)

	_, err := c.MarkContinue(sessionID, alice.ID, true)
	require.NoError(t, err)
	_, err = c.MarkContinue(sessionID, bob.ID, true)
	require.NoError(t, err)

	v, err := c.Session(sessionID)
	require.NoError(t, err)
	require.Equal(t, PhaseDiscussion, v.Phase)

	require.NoError(t, c.LeaveSession(sessionID, carol.ID))

	v, err = c.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, PhaseAction, v.Phase, "departure satisfied the unanimity quorum")
}

func TestDiscussionDeadlineOpensActionPhase(t *testing.T) {
	c, _, _, _, clock := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	clock.set(301 * time.Second)
	v, err := c.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, PhaseAction, v.Phase, "expired discussion deadline is applied before the state is observed")
}

// TestDeadlineQuorumRaceSingleTransition lands the continue marks in the
// closing instant of the discussion countdown and checks the two triggers
// collapse into a single transition.
func TestDeadlineQuorumRaceSingleTransition(t *testing.T) {
	c, _, h, _, _ := newTestCoordinator(t)

	s := defaultSettings()
	s.DiscussionSeconds = 1
	_, sessionID := startSession(t, c, s, alice, bob)

	time.Sleep(900 * time.Millisecond)

	var wg sync.WaitGroup
	for _, m := range []Identity{alice, bob} {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if _, err := c.MarkContinue(sessionID, id, true); err != nil {
				// The countdown won; the mark lands in the action phase.
				assert.Equal(t, KindPhase, KindOf(err))
			}
		}(m.ID)
	}
	wg.Wait()

	awaitPhase(t, c, sessionID, PhaseAction, 1)

	// Leave room for a losing timer firing to arrive before counting.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, h.count(GameChannel(sessionID), EvtActionPhaseStarted),
		"quorum and deadline close the discussion exactly once")
}

// TestStaleDeadlineFiringIgnored delivers a firing whose expiry no longer
// matches the armed countdown and checks it cannot move the phase.
func TestStaleDeadlineFiringIgnored(t *testing.T) {
	c, _, h, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	v, err := c.Session(sessionID)
	require.NoError(t, err)
	require.NotNil(t, v.Deadline)

	c.handleDeadline(sessionID, v.Deadline.EndsAt.Add(-time.Second))

	v, err = c.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, PhaseDiscussion, v.Phase, "a superseded firing cannot close the discussion")
	assert.Zero(t, h.count(GameChannel(sessionID), EvtActionPhaseStarted))
}

// endregion

// region --- Actions ---

func TestProposeActionLifecycle(t *testing.T) {
	c, _, h, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	_, err := c.ProposeAction(sessionID, alice, "too early")
	require.Error(t, err)
	assert.Equal(t, KindPhase, KindOf(err), "actions are rejected during discussion")

	toActionPhase(t, c, sessionID, alice, bob)

	a, err := c.ProposeAction(sessionID, bob, "sneak past the guards")
	require.NoError(t, err)
	assert.Equal(t, ActionPending, a.Status)
	assert.Equal(t, bob.ID*100, a.CharacterID, "action is attributed to the proposer's character")
	assert.Equal(t, 1, a.ChapterNumber)
	assert.True(t, h.saw(GameChannel(sessionID), EvtActionsUpdated))

	_, err = c.ReviewAction(sessionID, bob.ID, a.ID, true)
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))

	reviewed, err := c.ReviewAction(sessionID, alice.ID, a.ID, true)
	require.NoError(t, err)
	assert.Equal(t, ActionApproved, reviewed.Status)

	// The decision is terminal.
	_, err = c.ReviewAction(sessionID, alice.ID, a.ID, false)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = c.ReviewAction(sessionID, alice.ID, 9999, true)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestProposeActionValidation(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)
	toActionPhase(t, c, sessionID, alice, bob)

	_, err := c.ProposeAction(sessionID, alice, "   ")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = c.ProposeAction(sessionID, carol, "not a member")
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))
}

// endregion

// region --- Chapter advance ---

func TestActionDeadlineAdvancesChapter(t *testing.T) {
	c, store, _, _, clock := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)
	toActionPhase(t, c, sessionID, alice, bob)

	a, err := c.ProposeAction(sessionID, bob, "light the beacon")
	require.NoError(t, err)
	_, err = c.ReviewAction(sessionID, alice.ID, a.ID, true)
	require.NoError(t, err)

	clock.set(20 * time.Minute)
	_, err = c.Session(sessionID) // reaps the expired action deadline
	require.NoError(t, err)
	clock.set(0)

	awaitPhase(t, c, sessionID, PhaseDiscussion, 2)

	chapters := store.storedChapters(sessionID)
	require.Len(t, chapters, 2)
	assert.Equal(t, []int{1, 2}, []int{chapters[0].Number, chapters[1].Number}, "chapter numbers are strictly monotonic")
	assert.Contains(t, chapters[1].ActionIDs, a.ID, "approved action feeds the next chapter")

	v, err := c.Session(sessionID)
	require.NoError(t, err)
	assert.Zero(t, v.ReadyCount, "continue readiness resets with the new chapter")
}

func TestMaxChaptersFinishesSession(t *testing.T) {
	c, _, h, _, clock := newTestCoordinator(t)

	s := defaultSettings()
	s.MaxChapters = 1
	_, sessionID := startSession(t, c, s, alice, bob)
	toActionPhase(t, c, sessionID, alice, bob)

	clock.set(20 * time.Minute)
	v, err := c.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, v.Phase)
	assert.Equal(t, 1, v.CurrentChapter, "no chapter is written past the limit")
	assert.True(t, h.saw(GameChannel(sessionID), EvtGameFinished))
}

func TestAdvanceNowGuards(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	err := c.AdvanceNow(sessionID, alice.ID)
	require.Error(t, err)
	assert.Equal(t, KindPhase, KindOf(err), "cannot advance out of discussion")

	toActionPhase(t, c, sessionID, alice, bob)

	err = c.AdvanceNow(sessionID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))

	err = c.AdvanceNow(sessionID, alice.ID)
	require.Error(t, err)
	assert.Equal(t, KindPhase, KindOf(err), "the action window is still open")
}

func TestGenerationFailureReturnsToActionPhase(t *testing.T) {
	c, _, h, w, clock := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)
	toActionPhase(t, c, sessionID, alice, bob)

	w.setFail(true)
	clock.set(20 * time.Minute)
	_, err := c.Session(sessionID) // expired deadline starts the advance
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.saw(GameChannel(sessionID), EvtGenerationFailed)
	}, 2*time.Second, 5*time.Millisecond)

	v, err := c.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, PhaseAction, v.Phase, "failure reopens the action phase for retry")
	assert.Equal(t, 1, v.CurrentChapter, "the chapter number does not move on failure")
	require.NotNil(t, v.Deadline, "the elapsed countdown stays visible to reattaching clients")
	assert.Zero(t, v.Deadline.RemainingSeconds)

	// Observing the expired record again does not restart the advance.
	_, err = c.Session(sessionID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.count(GameChannel(sessionID), EvtGenerationFailed))

	// The admin retries once the generator recovers.
	w.setFail(false)
	require.NoError(t, c.AdvanceNow(sessionID, alice.ID))
	clock.set(0)
	awaitPhase(t, c, sessionID, PhaseDiscussion, 2)
}

// endregion

// region --- Session membership and teardown ---

func TestForceEnd(t *testing.T) {
	c, _, h, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	err := c.ForceEnd(sessionID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))

	require.NoError(t, c.ForceEnd(sessionID, alice.ID))
	require.NoError(t, c.ForceEnd(sessionID, alice.ID), "ending a finished game is a no-op")

	v, err := c.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, v.Phase)
	assert.True(t, h.saw(GameChannel(sessionID), EvtGameFinished))

	_, err = c.PostGameMessage(sessionID, alice, "anyone there?", MessageChat)
	require.Error(t, err)
	assert.Equal(t, KindPhase, KindOf(err))
}

func TestSessionAdminTransfer(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)
	require.NoError(t, c.LeaveSession(sessionID, alice.ID))

	// The promoted admin can now review and end.
	require.NoError(t, c.ForceEnd(sessionID, bob.ID))
}

func TestEmptySessionTornDown(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	roomID, sessionID := startSession(t, c, defaultSettings(), alice, bob)
	require.NoError(t, c.LeaveSession(sessionID, alice.ID))
	require.NoError(t, c.LeaveSession(sessionID, bob.ID))

	_, err := c.Session(sessionID)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	room, err := c.Room(roomID)
	require.NoError(t, err)
	assert.Equal(t, RoomFinished, room.Phase)
}

func TestLeaveSessionIdempotent(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)
	require.NoError(t, c.LeaveSession(sessionID, bob.ID))
	require.NoError(t, c.LeaveSession(sessionID, bob.ID))

	v, err := c.Session(sessionID)
	require.NoError(t, err)
	assert.Len(t, v.Members, 1)
}

// endregion

// region --- Settings and messages ---

func TestUpdateSettings(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	_, err := c.UpdateSettings(sessionID, bob.ID, defaultSettings())
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))

	patch := defaultSettings()
	patch.MaxChapters = 0 // below the current chapter, but zero means "keep"
	patch.DiscussionSeconds = 120
	patch.AutoContinue = true
	v, err := c.UpdateSettings(sessionID, alice.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, 120, v.Settings.DiscussionSeconds)
	assert.Equal(t, 5, v.Settings.MaxChapters)
	assert.True(t, v.Settings.AutoContinue)

	patch.MaxChapters = 99
	_, err = c.UpdateSettings(sessionID, alice.ID, patch)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestRoomMessages(t *testing.T) {
	c, _, h, _, _ := newTestCoordinator(t)

	room := createRoom(t, c, defaultSettings(), alice, bob)

	_, err := c.PostRoomMessage(room.ID, alice, "  ", MessageChat)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = c.PostRoomMessage(room.ID, carol, "hello", MessageChat)
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))

	msg, err := c.PostRoomMessage(room.ID, alice, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, MessageChat, msg.Type, "empty type defaults to chat")
	assert.NotZero(t, msg.ID)
	assert.True(t, h.saw(RoomChannel(room.ID), EvtNewMessage))

	v, err := c.Room(room.ID)
	require.NoError(t, err)
	require.Len(t, v.Messages, 1)
	assert.Equal(t, "hello", v.Messages[0].Content)
}

func TestGameMessages(t *testing.T) {
	c, _, h, _, _ := newTestCoordinator(t)

	_, sessionID := startSession(t, c, defaultSettings(), alice, bob)

	msg, err := c.PostGameMessage(sessionID, bob, "let's split up", MessageChat)
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.True(t, h.saw(GameChannel(sessionID), EvtGameMessage))

	v, err := c.Session(sessionID)
	require.NoError(t, err)
	require.Len(t, v.Messages, 1)
}

// endregion
