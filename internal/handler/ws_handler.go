package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/service"
	"github.com/quocanhngo/reelsync/internal/ws"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by CORS on the REST API
	},
}

// WSHandler upgrades device connections for sync notifications
type WSHandler struct {
	hub             *ws.Hub
	identityService *service.IdentityService
	log             zerolog.Logger
}

func NewWSHandler(hub *ws.Hub, identityService *service.IdentityService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:             hub,
		identityService: identityService,
		log:             log.With().Str("component", "ws").Logger(),
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and registers the device.
// Client connects with: ws://host/api/v1/ws?token=<jwt>[&session_token=<token>]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// WebSocket can't use the Authorization header from browsers
	id, err := h.identityService.ResolveBearer(c.Request.Context(), c.Query("token"), c.Query("session_token"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !id.HasSession() {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: service.ErrSessionNotFound.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	client := ws.NewClient(h.hub, conn, id.UserID, id.Session.ID, id.Session.DeviceID)
	h.hub.Register(client)

	h.log.Info().
		Str("user_id", id.UserID.String()).
		Str("device_id", id.Session.DeviceID).
		Bool("fallback", id.Fallback).
		Msg("device connected")

	go client.WritePump()
	go client.ReadPump()
}
