package notify

import (
	"net/http"
	"strings"
	"time"

	"mahatour/middleware"
	"mahatour/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Browsers cannot set headers on a websocket handshake, so the token may also
// arrive as ?token=.
func tokenFrom(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// Handler upgrades authenticated requests and subscribes the socket to the
// caller's events.
func Handler(hub *Hub, tokens *middleware.Auth, origins []string) httprouter.Handle {
	upgrader := websocket.Upgrader{CheckOrigin: originChecker(origins)}
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		claims, err := tokens.Parse(r.Context(), tokenFrom(r))
		if err != nil {
			utils.RespondWithAppError(w, nil, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Debug("upgrade failed", zap.Error(err))
			return
		}
		client := &Client{Conn: conn, Send: make(chan []byte, 32), UserID: claims.UserID}
		if !hub.join(client) {
			conn.Close()
			return
		}
		go writePump(client)
		go readPump(client, hub)
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowAll || origin == "" || allowed[origin]
	}
}

func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; clients never send events.
func readPump(c *Client, hub *Hub) {
	defer func() {
		hub.leave(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
