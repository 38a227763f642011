package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/middleware"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/service"
)

// errorStatus maps service errors onto HTTP statuses. Anything unlisted is a 500.
var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrIdentityUnresolved, http.StatusUnauthorized},
	{service.ErrIdentityInvalid, http.StatusUnauthorized},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrCertificateRevoked, http.StatusUnauthorized},
	{service.ErrSessionNotFound, http.StatusNotFound},
	{service.ErrTitleNotFound, http.StatusNotFound},
	{service.ErrProgressNotFound, http.StatusNotFound},
	{service.ErrCertificateNotFound, http.StatusNotFound},
	{service.ErrInvalidProgress, http.StatusBadRequest},
	{service.ErrEnrollment, http.StatusBadRequest},
	{service.ErrEmailTaken, http.StatusConflict},
	{service.ErrConflictingSession, http.StatusServiceUnavailable},
}

// respondError writes the status and body for err. Internal failures get a
// generic body; the detail stays in the logs.
func respondError(c *gin.Context, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.JSON(m.status, model.ErrorResponse{Error: m.err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
}

// identity returns the resolved caller or writes a 401
func identity(c *gin.Context) (*model.Identity, bool) {
	id := middleware.CurrentIdentity(c)
	if id == nil {
		respondError(c, service.ErrIdentityUnresolved)
		return nil, false
	}
	return id, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func titleParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("titleId"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid titleId"})
		return 0, false
	}
	return uint(id), true
}
