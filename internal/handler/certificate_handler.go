package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/service"
)

// CertificateHandler handles device certificate enrollment and management
type CertificateHandler struct {
	certService *service.CertificateService
}

func NewCertificateHandler(certService *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certService: certService}
}

// Enroll godoc
// @Summary Enroll a device and issue its client certificate
// @Description The private key is returned in this response only.
// @Tags Certificates
// @Accept json
// @Produce json
// @Param body body model.EnrollRequest true "Enrollment request"
// @Success 201 {object} model.EnrollResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /certificates/enroll [post]
func (h *CertificateHandler) Enroll(c *gin.Context) {
	var req model.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ClientIP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.certService.Enroll(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Authenticate godoc
// @Summary Exchange a client certificate for a bearer token
// @Tags Certificates
// @Produce json
// @Success 200 {object} model.CertificateAuthResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /certificates/authenticate [post]
func (h *CertificateHandler) Authenticate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	resp, err := h.certService.Authenticate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Devices godoc
// @Summary List the user's enrolled devices
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.DeviceCertificateResponse
// @Router /certificates/devices [get]
func (h *CertificateHandler) Devices(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	devices, err := h.certService.ListDevices(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, devices)
}

// Revoke godoc
// @Summary Revoke a device certificate and end its sessions
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param deviceId path string true "Device ID (certificate thumbprint)"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /certificates/{deviceId}/revoke [post]
func (h *CertificateHandler) Revoke(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	if _, err := h.certService.Revoke(c.Request.Context(), id.UserID, c.Param("deviceId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Certificate revoked"})
}
