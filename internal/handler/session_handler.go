package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/service"
	"github.com/quocanhngo/reelsync/pkg/fingerprint"
)

// SessionHandler exposes the caller's device sessions
type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// ListAll godoc
// @Summary List every session of the user, most recently used first
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.SessionResponse
// @Router /sessions [get]
func (h *SessionHandler) ListAll(c *gin.Context) {
	h.list(c, h.sessionService.ListAll)
}

// ListActive godoc
// @Summary List active sessions of the user
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.SessionResponse
// @Router /sessions/active [get]
func (h *SessionHandler) ListActive(c *gin.Context) {
	h.list(c, h.sessionService.ListActive)
}

func (h *SessionHandler) list(c *gin.Context, fetch func(ctx context.Context, userID uuid.UUID) ([]model.Session, error)) {
	id, ok := identity(c)
	if !ok {
		return
	}

	sessions, err := fetch(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponses(sessions, id))
}

// sessionResponses marks the session the caller is bound to as current
func sessionResponses(sessions []model.Session, id *model.Identity) []model.SessionResponse {
	resp := make([]model.SessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, sessions[i].ToResponse(id.HasSession() && sessions[i].ID == id.Session.ID))
	}
	return resp
}

// Current godoc
// @Summary Get the session the request is bound to
// @Description The credential must name the session itself, through the token's
// @Description session claim or the X-Session-Token header. A token naming a logged
// @Description out session, or naming none, yields 404.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SessionResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /sessions/current [get]
func (h *SessionHandler) Current(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if id.Fallback || !id.HasSession() {
		respondError(c, service.ErrSessionNotFound)
		return
	}

	c.JSON(http.StatusOK, id.Session.ToResponse(true))
}

// RegisterDevice godoc
// @Summary Register another device for the signed-in user
// @Description Opens the device's session, or renews it when the device already has one.
// @Description Device attributes may be sent in the body or as X-* headers.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RegisterDeviceRequest false "Device"
// @Success 200 {object} model.SessionResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /sessions/register-device [post]
func (h *SessionHandler) RegisterDevice(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req model.RegisterDeviceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	info := fingerprint.Merge(req.DeviceInfo, fingerprint.FromRequest(c.Request))
	session, err := h.sessionService.RegisterDevice(c.Request.Context(), id.UserID, req.DeviceType, info, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session.ToResponse(id.HasSession() && session.ID == id.Session.ID))
}

// Activity godoc
// @Summary Record activity on the current session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /sessions/activity [post]
func (h *SessionHandler) Activity(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if !id.HasSession() {
		respondError(c, service.ErrSessionNotFound)
		return
	}

	if err := h.sessionService.TouchActivity(c.Request.Context(), id.Session.ID, time.Now()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Activity recorded"})
}

// Logout godoc
// @Summary Log a session out
// @Description Logging out an already inactive session returns it unchanged.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} model.SessionResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /sessions/{id}/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	session, err := h.sessionService.Logout(c.Request.Context(), id.UserID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session.ToResponse(id.HasSession() && session.ID == id.Session.ID))
}

// Delete godoc
// @Summary Delete a session record
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.sessionService.Delete(c.Request.Context(), id.UserID, sessionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Session deleted"})
}
