// internal/server/handlers/websocket.go

package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"streampulse/internal/logging"
	"streampulse/internal/metrics"
)

// WebSocketClient relays aggregation notifications to one connected browser
type WebSocketClient struct {
	conn      *websocket.Conn
	send      chan []byte
	titleID   int64
	sub       *nats.Subscription
	config    WebSocketConfig
	closeOnce sync.Once
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AggregateWebSocketHandler streams unit and run notifications published under topic.
// An optional title_id query parameter restricts unit notifications to one title.
func AggregateWebSocketHandler(natsConn *nats.Conn, topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if natsConn == nil {
			respondWithError(w, http.StatusServiceUnavailable, "Live updates are disabled", nil)
			return
		}

		var titleID int64
		if idStr := r.URL.Query().Get("title_id"); idStr != "" {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil || id <= 0 {
				respondWithError(w, http.StatusBadRequest, "Invalid title ID", err)
				return
			}
			titleID = id
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to upgrade to WebSocket")
			return
		}

		client := &WebSocketClient{
			conn:    conn,
			send:    make(chan []byte, 256),
			titleID: titleID,
			config:  DefaultWebSocketConfig(),
		}

		sub, err := natsConn.Subscribe(topic+".>", client.relay)
		if err != nil {
			logging.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to aggregate events")
			conn.Close()
			return
		}
		client.sub = sub

		metrics.WebSocketClients.Inc()
		logging.Info().Int64("title_id", titleID).Msg("New WebSocket connection for aggregate events")

		go client.writePump()
		go client.readPump()
	}
}

// relay forwards a bus message when it passes the client's filter
func (c *WebSocketClient) relay(msg *nats.Msg) {
	if !matchesTitle(msg.Data, c.titleID) {
		return
	}

	select {
	case c.send <- msg.Data:
	default:
		logging.Warn().Str("subject", msg.Subject).Msg("WebSocket client too slow, dropping message")
	}
}

// matchesTitle reports whether an event belongs to titleID. Events without a
// title, such as run notifications, always match.
func matchesTitle(data []byte, titleID int64) bool {
	if titleID == 0 {
		return true
	}

	var event struct {
		TitleID int64 `json:"title_id"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return false
	}

	return event.TitleID == 0 || event.TitleID == titleID
}

// readPump drains the connection so control frames are processed
func (c *WebSocketClient) readPump() {
	defer c.closeConnection()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

// writePump pumps relayed messages to the WebSocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeConnection unsubscribes and closes the socket once
func (c *WebSocketClient) closeConnection() {
	c.closeOnce.Do(func() {
		if c.sub != nil {
			if err := c.sub.Unsubscribe(); err != nil {
				logging.Debug().Err(err).Msg("Failed to unsubscribe WebSocket client")
			}
		}
		c.conn.Close()
		metrics.WebSocketClients.Dec()
	})
}
