package messages

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/lasedigital/lasechat/internal/httpx"
	"github.com/lasedigital/lasechat/internal/hub"
	"github.com/lasedigital/lasechat/internal/store"
	"github.com/lasedigital/lasechat/internal/utils"
)

type Service struct {
	Store      *store.Store
	Hub        *hub.Hub
	SessionCap int
}

type sendReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Text      string `json:"text" binding:"required,max=4000"`
	Sender    string `json:"sender" binding:"required,oneof=user admin"`
}

// Register mounts the message routes. adminOnly gates the destructive
// delete; everything else is open to anonymous widget sessions.
func Register(rg *gin.RouterGroup, st *store.Store, h *hub.Hub, sessionCap int, adminOnly gin.HandlerFunc) {
	s := Service{
		Store:      st,
		Hub:        h,
		SessionCap: sessionCap,
	}
	rg.POST("/messages", s.send)
	rg.GET("/sessions/:id/messages", s.list)
	rg.GET("/sessions", s.sessions)
	rg.DELETE("/sessions/:id", adminOnly, s.deleteSession)
}

// send appends one row and returns it, so the caller can reconcile its
// optimistic record against the authoritative id and timestamp.
func (s Service) send(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	row, err := s.Store.Insert(req.SessionID, req.Text, req.Sender)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "insert failed")
		return
	}

	// fanout to realtime subscribers; the sender gets its own row back
	// over the socket too and deduplicates client-side
	s.Hub.BroadcastInsert(row)

	httpx.OK(c, rowJSON(row))
}

func (s Service) list(c *gin.Context) {
	sid := c.Param("id")
	rows, err := s.Store.BySession(sid)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "db error")
		return
	}

	list := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		list = append(list, rowJSON(r))
	}
	httpx.OK(c, gin.H{"messages": list})
}

func (s Service) sessions(c *gin.Context) {
	infos, err := s.Store.Sessions(s.SessionCap)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "db error")
		return
	}

	list := make([]gin.H, 0, len(infos))
	for _, info := range infos {
		list = append(list, gin.H{
			"session_id":    info.SessionID,
			"last_activity": info.LastActivity.Format(time.RFC3339Nano),
		})
	}
	httpx.OK(c, gin.H{"sessions": list})
}

func (s Service) deleteSession(c *gin.Context) {
	sid := c.Param("id")
	n, err := s.Store.DeleteSession(sid)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "delete failed")
		return
	}
	httpx.OK(c, gin.H{"deleted": n})
}

func rowJSON(r store.Row) gin.H {
	out := gin.H{
		"id":         r.ID,
		"session_id": r.SessionID,
		"text":       r.Text,
		"created_at": r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.Sender.Valid {
		out["sender"] = r.Sender.String
	}
	return out
}
