package ws

import (
	"net/http"
	"time"

	"github.com/SpelGekko/Chat-Website/internal/auth"
	"github.com/SpelGekko/Chat-Website/internal/config"
	"github.com/SpelGekko/Chat-Website/internal/metrics"
	"github.com/SpelGekko/Chat-Website/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client is one live websocket connection. It satisfies registry.Subscriber:
// Enqueue hands events to the buffered send channel drained by writePump, so
// no room lock is ever held across a network write.
type Client struct {
	id       uuid.UUID
	identity string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (c *Client) ID() uuid.UUID    { return c.id }
func (c *Client) Identity() string { return c.identity }

// Enqueue reports false when the outbound buffer is full; the caller skips
// this receiver and the connection stays up.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Serve upgrades an authenticated request to a websocket connection and
// binds it to a fresh session.
func Serve(h *Hub, tracker *session.Tracker, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseIdentityToken(token, cfg.JWTSecret)
		if err != nil || claims.Name == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{id: uuid.New(), identity: claims.Name, hub: h, conn: conn, send: make(chan []byte, 256)}
		tracker.Bind(client.id, client.identity)
		metrics.WsConnections.Inc()
		log.Info().Str("identity", client.identity).Str("conn", client.id.String()).Msg("connection established")

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.OnConnectionLeave(c)
		close(c.send)
		_ = c.conn.Close()
		metrics.WsConnections.Dec()
		log.Info().Str("identity", c.identity).Str("conn", c.id.String()).Msg("connection closed")
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.hub.Dispatch(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
