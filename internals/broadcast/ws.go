package broadcast

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ClientMessage is what a websocket client sends us.
type ClientMessage struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	LastSeq int64  `json:"last_seq"`
}

const MessageJoinRoom = "join-room"

// JoinFunc runs after a client joins a room, typically to send it a snapshot.
type JoinFunc func(c *Client, room string)

// ServeConn pumps events to conn until the peer goes away. It blocks until the
// read side fails and always leaves the client's room before returning.
func (h *Hub) ServeConn(conn *websocket.Conn, onJoin JoinFunc) {
	c := h.NewClient()
	defer conn.Close()

	go h.writePump(conn, c)
	h.readPump(conn, c, onJoin)
	h.Leave(c)
}

func (h *Hub) readPump(conn *websocket.Conn, c *Client, onJoin JoinFunc) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("client_id", c.ID).Msg("websocket read failed")
			}
			return
		}

		switch msg.Type {
		case MessageJoinRoom:
			room := msg.Room
			if room == "" {
				room = AuctionRoom
			}
			h.Join(c, room, msg.LastSeq)
			if onJoin != nil {
				onJoin(c, room)
			}
		default:
			e, _ := NewEvent(EventError, 0, map[string]string{"message": "unknown message type " + msg.Type})
			h.Send(c, e)
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				h.logger.Debug().Err(err).Str("client_id", c.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
