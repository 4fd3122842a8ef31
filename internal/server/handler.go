package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/SpelGekko/Chat-Website/internal/auth"
	"github.com/SpelGekko/Chat-Website/internal/config"
	"github.com/SpelGekko/Chat-Website/internal/registry"
	"github.com/SpelGekko/Chat-Website/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler aggregates the HTTP handlers with their injected dependencies.
type Handler struct {
	cfg     config.Config
	roomSvc *service.RoomService
	reg     *registry.Registry
}

func NewHandler(cfg config.Config, roomSvc *service.RoomService, reg *registry.Registry) *Handler {
	return &Handler{cfg: cfg, roomSvc: roomSvc, reg: reg}
}

// CreateSession issues the identity token for a display name. The upstream
// collaborator owns real account auth; this endpoint stands in for it.
func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please fill in a name."})
		return
	}
	if len(req.Name) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}
	token, err := auth.IssueIdentityToken(req.Name, h.cfg.JWTSecret, h.cfg.IdentityTokenTTLMinutes)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("issue identity token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "name": req.Name})
}

// CreateRoom creates a room owned by the caller and returns its code.
func (h *Handler) CreateRoom(c *gin.Context) {
	identity := auth.GetIdentity(c)
	code := h.roomSvc.Create(identity)
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// JoinRoom grants the caller entry to an existing room.
func (h *Handler) JoinRoom(c *gin.Context) {
	identity := auth.GetIdentity(c)
	code := c.Param("code")
	if err := h.roomSvc.Join(identity, code); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// DeleteRoom removes a room the caller created. Members are notified before
// the room's data is discarded.
func (h *Handler) DeleteRoom(c *gin.Context) {
	identity := auth.GetIdentity(c)
	code := c.Param("code")
	if err := h.roomSvc.Delete(identity, code); err != nil {
		switch {
		case errors.Is(err, registry.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found."})
		case errors.Is(err, registry.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can delete a room"})
		default:
			log.Error().Err(err).Str("identity", identity).Str("room", code).Msg("delete room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete room"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages returns the room's current in-memory message log, the same
// data a member sees when entering the room.
func (h *Handler) ListMessages(c *gin.Context) {
	identity := auth.GetIdentity(c)
	code := c.Param("code")
	if !h.roomSvc.Permitted(identity, code) {
		c.JSON(http.StatusForbidden, gin.H{"error": "join the room first"})
		return
	}
	msgs, err := h.reg.Messages(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found."})
		return
	}
	type msgDTO struct {
		Name      string `json:"name"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}
	out := make([]msgDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, msgDTO{Name: m.Sender, Message: m.Body, Timestamp: m.SentAt.Format("2006-01-02 15:04:05")})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}
