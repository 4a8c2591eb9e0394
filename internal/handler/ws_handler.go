package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"storyweave/backend/internal/auth"
	"storyweave/backend/internal/config"
	"storyweave/backend/internal/database"
	"storyweave/backend/internal/game"
	"storyweave/backend/internal/hub"
	"storyweave/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is delegated to the CORS layer in front of the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand is an inbound client command. Unknown types are ignored so older
// clients degrade gracefully.
type wsCommand struct {
	Type        string `json:"type"`
	Content     string `json:"content,omitempty"`
	Ready       *bool  `json:"ready,omitempty"`
	CharacterID uint   `json:"character_id,omitempty"`
}

func wsIdentity(c *gin.Context) (game.Identity, bool) {
	userID, ok := auth.UserIDFromToken(c.Query("token"), config.AppConfig.JWTSecret)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing token"})
		return game.Identity{}, false
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
		return game.Identity{}, false
	}
	return game.Identity{ID: user.ID, Name: user.Nickname}, true
}

// RoomSocket godoc
// @Summary      Attach to a room channel
// @Description  Upgrades to a websocket, pushes a state snapshot, then streams room events. Authentication uses a token query parameter.
// @Tags         realtime
// @Param        id    path  int    true "Room ID"
// @Param        token query string true "JWT"
// @Success      101
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /ws/rooms/{id} [get]
func RoomSocket(c *gin.Context) {
	identity, ok := wsIdentity(c)
	if !ok {
		return
	}
	roomID, _ := strconv.Atoi(c.Param("id"))

	if _, err := game.Default.Room(uint(roomID)); err != nil {
		abortGameError(c, err)
		return
	}

	serveChannel(c, identity, game.RoomChannel(uint(roomID)),
		func() (interface{}, error) { return game.Default.Room(uint(roomID)) },
		func(cmd wsCommand) error {
			switch cmd.Type {
			case "message":
				_, err := game.Default.PostRoomMessage(uint(roomID), identity, cmd.Content, game.MessageChat)
				return err
			case "ready":
				_, err := game.Default.ToggleReady(uint(roomID), identity.ID)
				return err
			case "select_character":
				var character models.Character
				if err := database.DB.Where("owner_id = ?", identity.ID).First(&character, cmd.CharacterID).Error; err != nil {
					return err
				}
				_, err := game.Default.SelectCharacter(uint(roomID), identity.ID, game.CharacterInfo{
					ID:         character.ID,
					Name:       character.Name,
					Background: character.Background,
				})
				return err
			default:
				return nil
			}
		})
}

// GameSocket godoc
// @Summary      Attach to a game channel
// @Description  Upgrades to a websocket, pushes a state snapshot, then streams session events. Authentication uses a token query parameter.
// @Tags         realtime
// @Param        id    path  int    true "Session ID"
// @Param        token query string true "JWT"
// @Success      101
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /ws/games/{id} [get]
func GameSocket(c *gin.Context) {
	identity, ok := wsIdentity(c)
	if !ok {
		return
	}
	sessionID, _ := strconv.Atoi(c.Param("id"))

	if _, err := game.Default.Session(uint(sessionID)); err != nil {
		abortGameError(c, err)
		return
	}

	serveChannel(c, identity, game.GameChannel(uint(sessionID)),
		func() (interface{}, error) { return game.Default.Session(uint(sessionID)) },
		func(cmd wsCommand) error {
			switch cmd.Type {
			case "message":
				_, err := game.Default.PostGameMessage(uint(sessionID), identity, cmd.Content, game.MessageChat)
				return err
			case "continue":
				ready := true
				if cmd.Ready != nil {
					ready = *cmd.Ready
				}
				_, err := game.Default.MarkContinue(uint(sessionID), identity.ID, ready)
				return err
			case "action":
				_, err := game.Default.ProposeAction(uint(sessionID), identity, cmd.Content)
				return err
			default:
				return nil
			}
		})
}

// serveChannel upgrades the connection, subscribes to the hub channel, pushes
// the snapshot, and runs the read and write pumps until either side drops.
// Subscribing before taking the snapshot guarantees a client never misses an
// event newer than the state it starts from.
func serveChannel(c *gin.Context, identity game.Identity, channel string, snapshot func() (interface{}, error), apply func(wsCommand) error) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("websocket upgrade failed")
		return
	}

	client := hub.GlobalHub.Subscribe(channel)
	defer hub.GlobalHub.Unsubscribe(channel, client)

	state, err := snapshot()
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "gone"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	snap, err := json.Marshal(hub.Event{Type: game.EvtSnapshot, Data: state})
	if err != nil {
		conn.Close()
		return
	}

	done := make(chan struct{})
	go writePump(conn, client, snap, done)
	readPump(conn, identity, channel, apply)
	close(done)
}

func writePump(conn *websocket.Conn, client hub.Client, snapshot []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
		return
	}

	for {
		select {
		case msg, ok := <-client:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func readPump(conn *websocket.Conn, identity game.Identity, channel string, apply func(wsCommand) error) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// One command per 500ms sustained, short bursts allowed.
	limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 5)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("channel", channel).Uint("user_id", identity.ID).Msg("websocket closed unexpectedly")
			}
			return
		}
		if !limiter.Allow() {
			continue
		}

		var cmd wsCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		if err := apply(cmd); err != nil {
			log.Debug().Err(err).Str("channel", channel).Uint("user_id", identity.ID).Str("type", cmd.Type).Msg("websocket command rejected")
		}
	}
}
