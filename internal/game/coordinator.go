package game

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storyweave/backend/internal/hub"
)

// Identity is a verified caller supplied by the auth layer. The coordinator
// trusts the identity but enforces membership and role itself.
type Identity struct {
	ID   uint
	Name string
}

const (
	maxContentLength  = 2000
	maxChaptersCap    = 20
	minMembersToStart = 2
)

// Coordinator is the façade that receives participant commands, validates
// them against the current phase and the caller's role, applies them through
// the state machine, and triggers scheduling and broadcast.
//
// All mutations of a given room or session are serialized on that entity's
// lock; deadline firings enter the same serialized path, so a timer firing
// and a last-moment quorum command are strictly ordered, never both applied.
type Coordinator struct {
	mu       sync.RWMutex
	rooms    map[uint]*RoomState
	sessions map[uint]*SessionState

	store  Store
	hub    Broadcaster
	writer ChapterWriter
	sched  *Scheduler
	log    zerolog.Logger
	clock  func() time.Time
}

// New creates a Coordinator wired to its collaborators.
func New(store Store, b Broadcaster, w ChapterWriter, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{
		rooms:    make(map[uint]*RoomState),
		sessions: make(map[uint]*SessionState),
		store:    store,
		hub:      b,
		writer:   w,
		log:      logger,
		clock:    time.Now,
	}
	c.sched = NewScheduler(c.handleDeadline)
	return c
}

// Default is the process-wide coordinator, wired in main.
var Default *Coordinator

func (c *Coordinator) room(id uint) (*RoomState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rooms[id]
	if !ok {
		return nil, newError(KindNotFound, "room %d not found", id)
	}
	return r, nil
}

func (c *Coordinator) session(id uint) (*SessionState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, newError(KindNotFound, "game %d not found", id)
	}
	return s, nil
}

// region --- Room commands ---

// CreateRoom opens a lobby with the caller as admin.
func (c *Coordinator) CreateRoom(owner Identity, name string, world WorldInfo, capacity int, settings Settings) (RoomView, error) {
	if capacity < 1 {
		return RoomView{}, newError(KindValidation, "capacity must be at least 1")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return RoomView{}, newError(KindValidation, "room name is required")
	}
	normalizeSettings(&settings)
	if settings.MaxChapters > maxChaptersCap {
		return RoomView{}, newError(KindValidation, "max chapters cannot exceed %d", maxChaptersCap)
	}

	r := &RoomState{
		Name:     name,
		JoinCode: uuid.NewString(),
		World:    world,
		Capacity: capacity,
		Phase:    RoomWaiting,
		Settings: settings,
		Members: []*Member{{
			UserID:   owner.ID,
			Name:     owner.Name,
			Role:     RoleAdmin,
			JoinedAt: c.clock(),
		}},
		CreatedAt: c.clock(),
	}

	v := r.view()
	if err := c.store.CreateRoom(&v); err != nil {
		return RoomView{}, newError(KindUpstream, "persisting room: %v", err)
	}
	r.ID = v.ID

	c.mu.Lock()
	c.rooms[r.ID] = r
	c.mu.Unlock()

	c.log.Info().Uint("room_id", r.ID).Uint("admin_id", owner.ID).Msg("room created")
	return v, nil
}

// JoinRoom adds a participant to a waiting room. Joining a room the caller is
// already a member of is a no-op.
func (c *Coordinator) JoinRoom(roomID uint, id Identity) (RoomView, error) {
	r, err := c.room(roomID)
	if err != nil {
		return RoomView{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.member(id.ID) != nil {
		return r.view(), nil
	}
	if r.Phase != RoomWaiting {
		return RoomView{}, newError(KindPhase, "room %d has already started", roomID)
	}
	if len(r.Members) >= r.Capacity {
		return RoomView{}, newError(KindCapacity, "room %d is full", roomID)
	}

	r.Members = append(r.Members, &Member{
		UserID:   id.ID,
		Name:     id.Name,
		Role:     RolePlayer,
		JoinedAt: c.clock(),
	})

	v := r.view()
	c.persistRoom(v)
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtMemberJoined, Data: MemberData{
		UserID:  id.ID,
		Name:    id.Name,
		AdminID: v.AdminID,
		Total:   len(r.Members),
	}})
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtRoomUpdate, Data: v})
	return v, nil
}

// RoomByCode resolves a join code to a room id.
func (c *Coordinator) RoomByCode(code string) (RoomView, error) {
	c.mu.RLock()
	var found *RoomState
	for _, r := range c.rooms {
		if r.JoinCode == code {
			found = r
			break
		}
	}
	c.mu.RUnlock()

	if found == nil {
		return RoomView{}, newError(KindNotFound, "no room for join code")
	}
	found.mu.Lock()
	defer found.mu.Unlock()
	return found.view(), nil
}

// LeaveRoom removes a participant. Leaving a room the caller is not a member
// of is a no-op, so duplicate leave deliveries cannot double-trigger teardown.
func (c *Coordinator) LeaveRoom(roomID, userID uint) error {
	r, err := c.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()

	m := r.member(userID)
	if m == nil {
		r.mu.Unlock()
		return nil
	}
	c.removeRoomMember(r, m)

	if len(r.Members) == 0 {
		r.mu.Unlock()
		c.teardownRoom(r)
		return nil
	}

	v := r.view()
	c.persistRoom(v)
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtMemberLeft, Data: MemberData{
		UserID:  userID,
		Name:    m.Name,
		AdminID: v.AdminID,
		Total:   len(r.Members),
	}})
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtRoomUpdate, Data: v})

	// Departure shrinks the quorum denominator; the remaining members may
	// now all be ready.
	if r.Phase == RoomCharacterSelection && SelectionQuorumMet(r.Members) {
		c.activateSessionLocked(r)
	}
	r.mu.Unlock()
	return nil
}

// removeRoomMember drops m and transfers the admin role to the next member by
// join order when the admin departs. Must be called with the room lock held.
func (c *Coordinator) removeRoomMember(r *RoomState, m *Member) {
	for i, cur := range r.Members {
		if cur.UserID == m.UserID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			break
		}
	}
	if m.Role == RoleAdmin && len(r.Members) > 0 {
		r.Members[0].Role = RoleAdmin
	}
}

// SelectCharacter records a member's character pick.
func (c *Coordinator) SelectCharacter(roomID, userID uint, ch CharacterInfo) (RoomView, error) {
	r, err := c.room(roomID)
	if err != nil {
		return RoomView{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Phase != RoomCharacterSelection {
		return RoomView{}, newError(KindPhase, "characters can only be selected during character selection")
	}
	m := r.member(userID)
	if m == nil {
		return RoomView{}, newError(KindAuthorization, "caller is not a member of room %d", roomID)
	}
	for _, other := range r.Members {
		if other.UserID != userID && other.CharacterID == ch.ID {
			return RoomView{}, newError(KindConflict, "character %q is already claimed", ch.Name)
		}
	}

	m.CharacterID = ch.ID
	m.CharacterName = ch.Name
	m.Background = ch.Background

	v := r.view()
	c.persistRoom(v)
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtCharacterSelected, Data: v})
	return v, nil
}

// ToggleReady flips the caller's character-selection readiness. Flipping to
// ready requires a selected character. The resulting quorum may start the
// game as a side effect, which is reported in the returned view.
func (c *Coordinator) ToggleReady(roomID, userID uint) (RoomView, error) {
	r, err := c.room(roomID)
	if err != nil {
		return RoomView{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Phase != RoomCharacterSelection {
		return RoomView{}, newError(KindPhase, "readiness applies during character selection")
	}
	m := r.member(userID)
	if m == nil {
		return RoomView{}, newError(KindAuthorization, "caller is not a member of room %d", roomID)
	}
	if !m.Ready && m.CharacterID == 0 {
		return RoomView{}, newError(KindValidation, "select a character before readying up")
	}

	m.Ready = !m.Ready

	ready := 0
	for _, mem := range r.Members {
		if mem.Ready {
			ready++
		}
	}
	v := r.view()
	c.persistRoom(v)
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtReadyUpdate, Data: ReadyUpdateData{
		UserID:     userID,
		Ready:      m.Ready,
		ReadyCount: ready,
		Total:      len(r.Members),
	}})

	if SelectionQuorumMet(r.Members) {
		c.activateSessionLocked(r)
		v = r.view()
	}
	return v, nil
}

// StartRoom moves the room into character selection and links it to a new
// session. Linking happens exactly once; repeated starts are rejected.
func (c *Coordinator) StartRoom(roomID, userID uint) (RoomView, error) {
	r, err := c.room(roomID)
	if err != nil {
		return RoomView{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	admin := r.admin()
	if admin == nil || admin.UserID != userID {
		return RoomView{}, newError(KindAuthorization, "only the admin can start the room")
	}
	if r.SessionID != 0 {
		return RoomView{}, newError(KindConflict, "room %d is already linked to game %d", r.ID, r.SessionID)
	}
	if r.Phase != RoomWaiting {
		return RoomView{}, newError(KindPhase, "room %d has already started", r.ID)
	}
	if len(r.Members) < minMembersToStart {
		return RoomView{}, newError(KindValidation, "at least %d members are needed to start", minMembersToStart)
	}

	s := &SessionState{
		RoomID:        r.ID,
		Name:          r.Name,
		World:         r.World,
		Phase:         PhasePlaying,
		Settings:      r.Settings,
		ContinueReady: make(map[uint]bool),
		CreatedAt:     c.clock(),
	}
	sv := s.view(c.clock())
	if err := c.store.CreateSession(&sv); err != nil {
		return RoomView{}, newError(KindUpstream, "persisting game: %v", err)
	}
	s.ID = sv.ID

	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()

	r.SessionID = s.ID
	r.Phase, _ = NextRoomPhase(r.Phase, EventStart)

	v := r.view()
	c.persistRoom(v)
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtRoomUpdate, Data: v})
	c.log.Info().Uint("room_id", r.ID).Uint("game_id", s.ID).Msg("room started")
	return v, nil
}

// PostRoomMessage appends a chat message to the room. It never mutates phase.
func (c *Coordinator) PostRoomMessage(roomID uint, id Identity, content string, msgType MessageType) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxContentLength {
		return Message{}, newError(KindValidation, "message content must be 1-%d characters", maxContentLength)
	}
	if msgType == "" {
		msgType = MessageChat
	}

	r, err := c.room(roomID)
	if err != nil {
		return Message{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.member(id.ID)
	if m == nil {
		return Message{}, newError(KindAuthorization, "caller is not a member of room %d", roomID)
	}

	msg := Message{
		UserID:    id.ID,
		UserName:  id.Name,
		Content:   content,
		Type:      msgType,
		CreatedAt: c.clock(),
	}
	if err := c.store.CreateRoomMessage(r.ID, &msg); err != nil {
		c.log.Warn().Err(err).Uint("room_id", r.ID).Msg("persisting room message")
	}
	r.Messages = append(r.Messages, msg)

	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtNewMessage, Data: msg})
	return msg, nil
}

// Room returns a consistent snapshot of a room.
func (c *Coordinator) Room(roomID uint) (RoomView, error) {
	r, err := c.room(roomID)
	if err != nil {
		return RoomView{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view(), nil
}

// Rooms lists snapshots of all rooms still waiting for members.
func (c *Coordinator) Rooms() []RoomView {
	c.mu.RLock()
	rooms := make([]*RoomState, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.mu.RUnlock()

	out := []RoomView{}
	for _, r := range rooms {
		r.mu.Lock()
		if r.Phase == RoomWaiting {
			out = append(out, r.view())
		}
		r.mu.Unlock()
	}
	return out
}

// endregion

// region --- Session commands ---

// Session returns a consistent snapshot of a session.
func (c *Coordinator) Session(sessionID uint) (SessionView, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.reapDeadlineLocked(s)
	return s.view(c.clock()), nil
}

// MarkContinue records a member's readiness to leave discussion. Reaching
// quorum fires the transition immediately; otherwise the deadline decides.
func (c *Coordinator) MarkContinue(sessionID, userID uint, ready bool) (SessionView, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c.reapDeadlineLocked(s)

	if s.member(userID) == nil {
		return SessionView{}, newError(KindAuthorization, "caller is not a member of game %d", sessionID)
	}
	if s.Phase != PhaseDiscussion {
		return SessionView{}, newError(KindPhase, "cannot mark ready to continue in phase %s", s.Phase)
	}

	if ready {
		s.ContinueReady[userID] = true
	} else {
		delete(s.ContinueReady, userID)
	}

	c.broadcastContinueLocked(s)
	c.persistSession(s)

	if ContinueQuorumMet(len(s.Members), s.readyCount(), s.Settings) {
		c.toActionPhaseLocked(s, EventContinueQuorum)
	}
	return s.view(c.clock()), nil
}

// ProposeAction files a pending action against the current chapter.
func (c *Coordinator) ProposeAction(sessionID uint, id Identity, content string) (Action, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxContentLength {
		return Action{}, newError(KindValidation, "action content must be 1-%d characters", maxContentLength)
	}

	s, err := c.session(sessionID)
	if err != nil {
		return Action{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c.reapDeadlineLocked(s)

	m := s.member(id.ID)
	if m == nil {
		return Action{}, newError(KindAuthorization, "caller is not a member of game %d", sessionID)
	}
	if s.Phase != PhaseAction {
		return Action{}, newError(KindPhase, "actions can only be proposed during the action phase")
	}

	a := Action{
		UserID:        id.ID,
		UserName:      id.Name,
		CharacterID:   m.CharacterID,
		CharacterName: m.CharacterName,
		Content:       content,
		Status:        ActionPending,
		ChapterNumber: s.CurrentChapter,
		CreatedAt:     c.clock(),
	}
	if err := c.store.CreateAction(s.ID, &a); err != nil {
		return Action{}, newError(KindUpstream, "persisting action: %v", err)
	}
	s.Actions = append(s.Actions, a)

	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtActionsUpdated, Data: ActionsUpdatedData{
		ChapterNumber: s.CurrentChapter,
	}})
	return a, nil
}

// ReviewAction lets the admin approve or reject a pending action. The
// decision is terminal.
func (c *Coordinator) ReviewAction(sessionID, adminID, actionID uint, approve bool) (Action, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return Action{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c.reapDeadlineLocked(s)

	admin := s.admin()
	if admin == nil || admin.UserID != adminID {
		return Action{}, newError(KindAuthorization, "only the admin can review actions")
	}

	for i := range s.Actions {
		if s.Actions[i].ID != actionID {
			continue
		}
		if s.Actions[i].Status != ActionPending {
			return Action{}, newError(KindConflict, "action %d has already been decided", actionID)
		}
		if approve {
			s.Actions[i].Status = ActionApproved
		} else {
			s.Actions[i].Status = ActionRejected
		}
		if err := c.store.SaveAction(s.ID, s.Actions[i]); err != nil {
			c.log.Warn().Err(err).Uint("game_id", s.ID).Msg("persisting action review")
		}
		c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtActionReviewed, Data: ActionReviewedData{
			ActionID: actionID,
			Status:   s.Actions[i].Status,
		}})
		return s.Actions[i], nil
	}
	return Action{}, newError(KindNotFound, "action %d not found", actionID)
}

// PostGameMessage appends a message to the session. It never mutates phase
// and is allowed in every non-terminal phase.
func (c *Coordinator) PostGameMessage(sessionID uint, id Identity, content string, msgType MessageType) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxContentLength {
		return Message{}, newError(KindValidation, "message content must be 1-%d characters", maxContentLength)
	}
	if msgType == "" {
		msgType = MessageChat
	}

	s, err := c.session(sessionID)
	if err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.member(id.ID) == nil {
		return Message{}, newError(KindAuthorization, "caller is not a member of game %d", sessionID)
	}
	if s.Phase.Terminal() {
		return Message{}, newError(KindPhase, "game %d is finished", sessionID)
	}

	msg := Message{
		UserID:    id.ID,
		UserName:  id.Name,
		Content:   content,
		Type:      msgType,
		CreatedAt: c.clock(),
	}
	if err := c.store.CreateGameMessage(s.ID, &msg); err != nil {
		c.log.Warn().Err(err).Uint("game_id", s.ID).Msg("persisting game message")
	}
	s.Messages = append(s.Messages, msg)

	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtGameMessage, Data: msg})
	return msg, nil
}

// LeaveSession removes a participant from a live game. Duplicate leaves are
// no-ops. Departure re-evaluates the continue quorum and tears the session
// down when nobody remains.
func (c *Coordinator) LeaveSession(sessionID, userID uint) error {
	s, err := c.session(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()

	m := s.member(userID)
	if m == nil {
		s.mu.Unlock()
		return nil
	}

	for i, cur := range s.Members {
		if cur.UserID == userID {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			break
		}
	}
	delete(s.ContinueReady, userID)
	if m.Role == RoleAdmin && len(s.Members) > 0 {
		s.Members[0].Role = RoleAdmin
	}

	if len(s.Members) == 0 {
		c.finishLocked(s, EventEmpty)
		roomID := s.RoomID
		s.mu.Unlock()
		c.teardownSession(sessionID, roomID)
		return nil
	}

	c.persistSession(s)
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtGameMemberLeft, Data: MemberData{
		UserID:  userID,
		Name:    m.Name,
		AdminID: s.admin().UserID,
		Total:   len(s.Members),
	}})

	// The departing member shrank the denominator; quorum may hold now.
	if s.Phase == PhaseDiscussion {
		c.broadcastContinueLocked(s)
		if ContinueQuorumMet(len(s.Members), s.readyCount(), s.Settings) {
			c.toActionPhaseLocked(s, EventContinueQuorum)
		}
	}
	s.mu.Unlock()
	return nil
}

// ForceEnd terminates the session. Admin only.
func (c *Coordinator) ForceEnd(sessionID, adminID uint) error {
	s, err := c.session(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	admin := s.admin()
	if admin == nil || admin.UserID != adminID {
		return newError(KindAuthorization, "only the admin can end the game")
	}
	if s.Phase.Terminal() {
		return nil
	}
	c.finishLocked(s, EventForceEnd)
	return nil
}

// AdvanceNow lets the admin retry a chapter advance whose deadline already
// elapsed, typically after a content-generation failure.
func (c *Coordinator) AdvanceNow(sessionID, adminID uint) error {
	s, err := c.session(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	admin := s.admin()
	if admin == nil || admin.UserID != adminID {
		return newError(KindAuthorization, "only the admin can force an advance")
	}
	if s.Phase != PhaseAction {
		return newError(KindPhase, "cannot advance from phase %s", s.Phase)
	}
	if s.Deadline != nil && s.Deadline.Remaining(c.clock()) > 0 {
		return newError(KindPhase, "the action window is still open")
	}
	c.beginAdvanceLocked(s)
	return nil
}

// UpdateSettings patches the session configuration. Admin only.
func (c *Coordinator) UpdateSettings(sessionID, adminID uint, patch Settings) (SessionView, error) {
	if patch.MaxChapters > maxChaptersCap {
		return SessionView{}, newError(KindValidation, "max chapters cannot exceed %d", maxChaptersCap)
	}

	s, err := c.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	admin := s.admin()
	if admin == nil || admin.UserID != adminID {
		return SessionView{}, newError(KindAuthorization, "only the admin can change settings")
	}
	if patch.MaxChapters > 0 && patch.MaxChapters < s.CurrentChapter {
		return SessionView{}, newError(KindValidation, "max chapters cannot fall below the current chapter")
	}

	if patch.DiscussionSeconds > 0 {
		s.Settings.DiscussionSeconds = patch.DiscussionSeconds
	}
	if patch.ActionSeconds > 0 {
		s.Settings.ActionSeconds = patch.ActionSeconds
	}
	if patch.MaxChapters > 0 {
		s.Settings.MaxChapters = patch.MaxChapters
	}
	s.Settings.AutoContinue = patch.AutoContinue
	s.Settings.RequireAllPlayers = patch.RequireAllPlayers

	c.persistSession(s)
	return s.view(c.clock()), nil
}

// endregion

// region --- Transitions ---

// activateSessionLocked fires the character-selection quorum: the room enters
// play and the session spawns its first chapter. Caller holds the room lock;
// the dormant session has no other writers yet.
func (c *Coordinator) activateSessionLocked(r *RoomState) {
	s, err := c.session(r.SessionID)
	if err != nil {
		c.log.Error().Uint("room_id", r.ID).Msg("room linked to unknown session")
		return
	}

	r.Phase, _ = NextRoomPhase(r.Phase, EventAllSelected)

	s.mu.Lock()
	members := make([]*Member, len(r.Members))
	for i, m := range r.Members {
		cp := *m
		members[i] = &cp
	}
	s.Members = members
	s.mu.Unlock()

	v := r.view()
	c.persistRoom(v)
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtGameStarted, Data: map[string]uint{"game_id": s.ID}})
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtRoomUpdate, Data: v})
	c.log.Info().Uint("room_id", r.ID).Uint("game_id", s.ID).Msg("all members ready, game activated")

	c.generateChapter(s.ID, 0)
}

// toActionPhaseLocked performs discussion → action_phase. Idempotent: once
// either the quorum or the deadline has fired, the other is a no-op because
// the phase has already advanced.
func (c *Coordinator) toActionPhaseLocked(s *SessionState, event TransitionEvent) {
	next, ok := NextSessionPhase(s.Phase, event)
	if !ok || next != PhaseAction {
		if s.Phase == PhaseAction {
			return
		}
		c.invariantViolation(s, event)
		return
	}

	s.Phase = PhaseAction
	s.Deadline = c.sched.Arm(s.ID, time.Duration(s.Settings.ActionSeconds)*time.Second)
	s.deadlineSpent = false

	// Pending proposals from earlier chapters are no longer eligible;
	// close them out so only current-chapter actions await review.
	for i := range s.Actions {
		if s.Actions[i].ChapterNumber < s.CurrentChapter && s.Actions[i].Status == ActionPending {
			s.Actions[i].Status = ActionRejected
			if err := c.store.SaveAction(s.ID, s.Actions[i]); err != nil {
				c.log.Warn().Err(err).Uint("game_id", s.ID).Msg("persisting action expiry")
			}
		}
	}

	c.persistSession(s)
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtActionPhaseStarted, Data: PhaseTimerData{
		Phase:            PhaseAction,
		EndsAt:           s.Deadline.ExpiresAt,
		SecondsTotal:     s.Deadline.SecondsTotal,
		RemainingSeconds: s.Deadline.Remaining(c.clock()),
		AutoContinue:     s.Settings.AutoContinue,
	}})
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtPhaseChanged, Data: PhaseChangedData{Phase: PhaseAction}})
	c.log.Info().Uint("game_id", s.ID).Str("trigger", string(event)).Msg("action phase opened")
}

// beginAdvanceLocked closes the action window and requests the next chapter.
// The advancing guard makes the close exactly-once per chapter even when a
// deadline firing races a forced advance.
func (c *Coordinator) beginAdvanceLocked(s *SessionState) {
	if s.advancing || s.Phase.Terminal() {
		return
	}

	if s.CurrentChapter >= s.Settings.MaxChapters {
		c.finishLocked(s, EventMaxChapters)
		return
	}

	next, ok := NextSessionPhase(s.Phase, EventDeadline)
	if !ok || next != PhasePlaying {
		c.invariantViolation(s, EventDeadline)
		return
	}

	elapsed := s.Deadline

	s.advancing = true
	s.deadlineSpent = true
	s.Phase = PhasePlaying
	s.Deadline = nil
	c.sched.Cancel(s.ID)

	c.persistSession(s)
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtPhaseChanged, Data: PhaseChangedData{Phase: PhasePlaying}})
	c.log.Info().Uint("game_id", s.ID).Int("chapter", s.CurrentChapter).Msg("action window closed, writing next chapter")

	c.generateChapterLocked(s, s.CurrentChapter, elapsed)
}

// generateChapter acquires the session lock and requests a chapter. expected
// is the chapter number being folded; 0 requests the opening chapter.
func (c *Coordinator) generateChapter(sessionID uint, expected int) {
	s, err := c.session(sessionID)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c.generateChapterLocked(s, expected, nil)
}

// generateChapterLocked snapshots the writer's inputs under the held session
// lock and invokes the writer off the lock; the result re-enters the
// serialized path through deliverChapter. elapsed is the countdown the advance
// consumed, carried along so a failure can restore it.
func (c *Coordinator) generateChapterLocked(s *SessionState, expected int, elapsed *DeadlineInfo) {
	sessionID := s.ID
	world := s.World
	characters := make([]CharacterInfo, 0, len(s.Members))
	for _, m := range s.Members {
		if m.CharacterID != 0 {
			characters = append(characters, CharacterInfo{ID: m.CharacterID, Name: m.CharacterName, Background: m.Background})
		}
	}
	previous := append([]Chapter{}, s.Chapters...)
	approved := s.approvedActions(expected)
	maxChapters := s.Settings.MaxChapters

	go func() {
		var content string
		var genErr error
		if expected == 0 {
			content, genErr = c.writer.FirstChapter(world, characters)
		} else {
			content, genErr = c.writer.NextChapter(world, characters, previous, approved, expected+1, maxChapters)
		}
		c.deliverChapter(sessionID, expected, approved, elapsed, content, genErr)
	}()
}

// deliverChapter applies a generation result. On failure the chapter number
// does not move: the session returns to the action phase for retry (or stays
// awaiting its opening chapter), per the recoverable upstream policy.
func (c *Coordinator) deliverChapter(sessionID uint, expected int, approved []Action, elapsed *DeadlineInfo, content string, genErr error) {
	s, err := c.session(sessionID)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase.Terminal() {
		return
	}
	if s.CurrentChapter != expected {
		// A concurrent teardown or defensive finish moved the session on;
		// folding this result now would corrupt chapter ordering.
		return
	}

	if genErr != nil {
		s.advancing = false
		if expected > 0 {
			// Back to the action phase with the elapsed deadline restored,
			// so reattaching clients still see the closed window while the
			// admin retries. deadlineSpent stays set: the countdown already
			// produced this advance and must not fire again.
			s.Phase = PhaseAction
			s.Deadline = elapsed
		}
		c.persistSession(s)
		c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtGenerationFailed, Data: GenerationFailedData{
			ChapterNumber: expected + 1,
			Reason:        genErr.Error(),
		}})
		c.log.Error().Err(genErr).Uint("game_id", s.ID).Int("chapter", expected+1).Msg("chapter generation failed")
		return
	}

	actionIDs := make([]uint, 0, len(approved))
	for _, a := range approved {
		actionIDs = append(actionIDs, a.ID)
	}
	ch := Chapter{
		Number:    expected + 1,
		Content:   content,
		CreatedAt: c.clock(),
		ActionIDs: actionIDs,
	}

	s.advancing = false
	s.CurrentChapter = ch.Number
	s.Chapters = append(s.Chapters, ch)
	s.ContinueReady = make(map[uint]bool)

	next, ok := NextSessionPhase(s.Phase, EventChapterReady)
	if !ok {
		c.invariantViolation(s, EventChapterReady)
		return
	}
	s.Phase = next
	s.Deadline = c.sched.Arm(s.ID, time.Duration(s.Settings.DiscussionSeconds)*time.Second)
	s.deadlineSpent = false

	if err := c.store.AppendChapter(s.ID, ch); err != nil {
		c.log.Warn().Err(err).Uint("game_id", s.ID).Msg("persisting chapter")
	}
	c.persistSession(s)

	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtChapterCreated, Data: ChapterCreatedData{
		ChapterNumber:     ch.Number,
		Content:           ch.Content,
		DiscussionSeconds: s.Settings.DiscussionSeconds,
	}})
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtDiscussionStarted, Data: PhaseTimerData{
		Phase:            PhaseDiscussion,
		EndsAt:           s.Deadline.ExpiresAt,
		SecondsTotal:     s.Deadline.SecondsTotal,
		RemainingSeconds: s.Deadline.Remaining(c.clock()),
		AutoContinue:     s.Settings.AutoContinue,
	}})
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtPhaseChanged, Data: PhaseChangedData{Phase: PhaseDiscussion}})
	c.broadcastContinueLocked(s)
	c.log.Info().Uint("game_id", s.ID).Int("chapter", ch.Number).Msg("chapter delivered, discussion open")
}

// handleDeadline is the scheduler's entry into the serialized command path.
func (c *Coordinator) handleDeadline(sessionID uint, expiresAt time.Time) {
	s, err := c.session(sessionID)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A re-armed or cancelled deadline makes this firing stale, as does a
	// deadline already consumed by the reap path.
	if s.Deadline == nil || s.deadlineSpent || !s.Deadline.ExpiresAt.Equal(expiresAt) {
		return
	}
	c.fireDeadlineLocked(s)
}

// reapDeadlineLocked detects a deadline that elapsed without its firing being
// delivered yet (timer starvation, process pause) and fires it immediately.
// Commands call this on entry so expired state is never observed as live.
func (c *Coordinator) reapDeadlineLocked(s *SessionState) {
	if s.Deadline == nil || s.advancing || s.deadlineSpent || s.Phase.Terminal() {
		return
	}
	if c.clock().Before(s.Deadline.ExpiresAt) {
		return
	}
	c.sched.Cancel(s.ID)
	c.fireDeadlineLocked(s)
}

func (c *Coordinator) fireDeadlineLocked(s *SessionState) {
	switch s.Phase {
	case PhaseDiscussion:
		s.Deadline = nil
		c.toActionPhaseLocked(s, EventDeadline)
	case PhaseAction:
		c.beginAdvanceLocked(s)
	default:
		// Deadline outlived its phase; nothing to advance.
		s.Deadline = nil
	}
}

// finishLocked is the terminal transition.
func (c *Coordinator) finishLocked(s *SessionState, event TransitionEvent) {
	s.Phase = PhaseFinished
	s.Deadline = nil
	s.advancing = false
	c.sched.Cancel(s.ID)

	c.persistSession(s)
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtPhaseChanged, Data: PhaseChangedData{Phase: PhaseFinished}})
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtGameFinished, Data: map[string]uint{"game_id": s.ID}})
	c.log.Info().Uint("game_id", s.ID).Str("trigger", string(event)).Msg("game finished")
}

// invariantViolation handles a transition the state machine does not
// recognize: the session is finished defensively and the inconsistency is
// surfaced to operators rather than propagated silently.
func (c *Coordinator) invariantViolation(s *SessionState, event TransitionEvent) {
	c.log.Error().
		Uint("game_id", s.ID).
		Str("phase", string(s.Phase)).
		Str("event", string(event)).
		Msg("unrecognized transition, finishing session defensively")
	c.finishLocked(s, event)
}

// teardownRoom removes an empty room and its linked session, cancelling any
// timer so nothing fires into destroyed state.
func (c *Coordinator) teardownRoom(r *RoomState) {
	c.mu.Lock()
	delete(c.rooms, r.ID)
	sessionID := r.SessionID
	s := c.sessions[sessionID]
	c.mu.Unlock()

	if err := c.store.DeleteRoom(r.ID); err != nil {
		c.log.Warn().Err(err).Uint("room_id", r.ID).Msg("deleting room")
	}
	c.hub.Broadcast(RoomChannel(r.ID), hub.Event{Type: EvtRoomClosed, Data: map[string]uint{"room_id": r.ID}})

	if s != nil {
		s.mu.Lock()
		if !s.Phase.Terminal() {
			c.finishLocked(s, EventEmpty)
		}
		s.mu.Unlock()
		c.mu.Lock()
		delete(c.sessions, sessionID)
		c.mu.Unlock()
	}
	c.log.Info().Uint("room_id", r.ID).Msg("room torn down")
}

func (c *Coordinator) teardownSession(sessionID, roomID uint) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	r := c.rooms[roomID]
	c.mu.Unlock()

	if r != nil {
		r.mu.Lock()
		if r.Phase != RoomFinished {
			r.Phase = RoomFinished
			c.persistRoom(r.view())
		}
		r.mu.Unlock()
	}
}

// endregion

// region --- Helpers ---

func (c *Coordinator) broadcastContinueLocked(s *SessionState) {
	c.hub.Broadcast(GameChannel(s.ID), hub.Event{Type: EvtContinueUpdate, Data: ContinueUpdateData{
		ReadyCount:       s.readyCount(),
		Total:            len(s.Members),
		RemainingSeconds: s.Deadline.Remaining(c.clock()),
	}})
}

func (c *Coordinator) persistRoom(v RoomView) {
	if err := c.store.SaveRoom(v); err != nil {
		c.log.Warn().Err(err).Uint("room_id", v.ID).Msg("persisting room")
	}
}

// persistSession must be called with the session lock held.
func (c *Coordinator) persistSession(s *SessionState) {
	if err := c.store.SaveSession(s.view(c.clock())); err != nil {
		c.log.Warn().Err(err).Uint("game_id", s.ID).Msg("persisting game")
	}
}

func normalizeSettings(s *Settings) {
	if s.DiscussionSeconds <= 0 {
		s.DiscussionSeconds = 300
	}
	if s.ActionSeconds <= 0 {
		s.ActionSeconds = 300
	}
	if s.MaxChapters <= 0 {
		s.MaxChapters = 5
	}
}

// endregion
