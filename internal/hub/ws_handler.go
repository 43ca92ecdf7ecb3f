package hub

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Widget and dashboard are served from other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterWS mounts GET /ws?scope=<session id|all>. Scope "all" delivers
// insert events for every session; a session id narrows delivery to that
// conversation. Presence signals reach every subscriber regardless of scope.
func RegisterWS(rg *gin.RouterGroup, hub *Hub) {
	rg.GET("/ws", func(c *gin.Context) {
		scope := c.Query("scope")
		if scope == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing scope"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := &Client{
			Hub:   hub,
			Conn:  conn,
			Send:  make(chan []byte, 256),
			Scope: scope,
		}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	})
}
