package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // enough for candidate-complete SDP
)

// Client is a wrapper for a single websocket connection (a participant).
// ID is connection-scoped and server-assigned; Identity is whatever the
// client supplied at join time.
type Client struct {
	ID       string
	Identity string
	RoomID   string

	relay *Relay
	conn  *websocket.Conn
	log   *slog.Logger

	// All outbound traffic goes through send and is drained by a single
	// writePump goroutine, so messages from one sender reach this
	// connection in the order they were relayed.
	send chan *Message

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded websocket connection and assigns it a
// fresh participant ID. Run must be called to start the pumps.
func NewClient(conn *websocket.Conn, relay *Relay, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	return &Client{
		ID:    id,
		relay: relay,
		conn:  conn,
		log:   logger.With("participant", id),
		send:  make(chan *Message, 64),
	}
}

// Run starts the read and write pumps. It returns immediately; the
// pumps own the connection's lifecycle from here.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// enqueue hands a message to the write pump without blocking. It
// reports false when the connection is closed or its buffer is full.
func (c *Client) enqueue(msg *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close tears the connection down once. The relay is told first so the
// departure notification goes out while the room still knows us.
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.relay.Leave(c)
	close(c.send)
	c.conn.Close()
	c.log.Debug("connection closed")
}

// readPump pumps messages from the websocket connection to the relay.
//
// There is at most one reader on a connection; all reads happen from
// this goroutine.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error", "err", err)
			}
			return
		}

		// The server stamps the sender; clients cannot spoof From.
		msg.From = c.ID

		switch msg.Type {
		case TypeJoin:
			c.handleJoin(&msg)

		case TypeOffer, TypeAnswer, TypeRenegotiateOffer, TypeRenegotiateAnswer:
			if c.RoomID == "" {
				c.sendError("join a room before signaling")
				continue
			}
			msg.RoomID = c.RoomID
			if err := c.relay.Send(&msg); err != nil {
				c.sendError(err.Error())
			}

		default:
			c.log.Warn("unknown message type", "type", msg.Type)
		}
	}
}

func (c *Client) handleJoin(msg *Message) {
	if msg.RoomID == "" {
		c.sendError("room_id is required")
		return
	}
	if c.RoomID != "" && c.RoomID != msg.RoomID {
		c.sendError("already in a room")
		return
	}

	var payload JoinPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("malformed join payload")
			return
		}
	}
	c.Identity = payload.Identity

	if err := c.relay.Join(msg.RoomID, c); err != nil {
		c.log.Info("join rejected", "room", msg.RoomID, "err", err)
		c.sendError(err.Error())
	}
}

func (c *Client) sendError(text string) {
	payload, _ := json.Marshal(ErrorPayload{Error: text})
	c.enqueue(&Message{Type: TypeError, To: c.ID, Payload: payload})
}

// writePump pumps messages from the relay to the websocket connection.
//
// A goroutine running writePump is started for each connection; all
// writes happen from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Warn("write error", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
