package handler

import "github.com/gin-gonic/gin"

// Handlers groups every API handler for route registration
type Handlers struct {
	Auth        *AuthHandler
	Session     *SessionHandler
	Progress    *ProgressHandler
	Certificate *CertificateHandler
	WS          *WSHandler
}

// Register mounts the API under api. The identity gateway is expected on api
// already; public routes are on its allow-list.
func (h Handlers) Register(api *gin.RouterGroup) {
	// Public
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/certificates/enroll", h.Certificate.Enroll)
	if h.WS != nil {
		api.GET("/ws", h.WS.HandleWebSocket)
	}

	// Auth
	api.GET("/auth/profile", h.Auth.GetProfile)
	api.GET("/auth/devices", h.Auth.Devices)

	// Sessions
	api.GET("/sessions", h.Session.ListAll)
	api.GET("/sessions/active", h.Session.ListActive)
	api.GET("/sessions/current", h.Session.Current)
	api.POST("/sessions/activity", h.Session.Activity)
	api.POST("/sessions/register-device", h.Session.RegisterDevice)
	api.POST("/sessions/:id/logout", h.Session.Logout)
	api.DELETE("/sessions/:id", h.Session.Delete)

	// Progress
	api.POST("/progress", h.Progress.Report)
	api.GET("/progress/sync", h.Progress.Sync)
	api.GET("/progress/titles/:titleId", h.Progress.Get)
	api.DELETE("/progress/titles/:titleId", h.Progress.Delete)

	// Certificates
	api.GET("/certificates/devices", h.Certificate.Devices)
	api.POST("/certificates/authenticate", h.Certificate.Authenticate)
	api.POST("/certificates/:deviceId/revoke", h.Certificate.Revoke)
}
