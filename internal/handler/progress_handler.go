package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/service"
)

// ProgressHandler handles watch progress reporting and cross-device sync
type ProgressHandler struct {
	progressService *service.ProgressService
}

func NewProgressHandler(progressService *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// Report godoc
// @Summary Report the playback position on a title
// @Description The latest report wins regardless of device. Other devices of the user are notified over the websocket.
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.ReportProgressRequest true "Progress report"
// @Success 200 {object} model.WatchProgress
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /progress [post]
func (h *ProgressHandler) Report(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req model.ReportProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	progress, err := h.progressService.Report(c.Request.Context(), id, req.TitleID, req.PositionSeconds)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// Sync godoc
// @Summary List progress on every title, newest first
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.SyncItem
// @Router /progress/sync [get]
func (h *ProgressHandler) Sync(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	items, err := h.progressService.Sync(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// Get godoc
// @Summary Get progress on one title
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param titleId path int true "Title ID"
// @Success 200 {object} model.WatchProgress
// @Failure 404 {object} model.ErrorResponse
// @Router /progress/titles/{titleId} [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	titleID, ok := titleParam(c)
	if !ok {
		return
	}

	progress, err := h.progressService.Get(c.Request.Context(), id.UserID, titleID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// Delete godoc
// @Summary Forget progress on one title
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param titleId path int true "Title ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /progress/titles/{titleId} [delete]
func (h *ProgressHandler) Delete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	titleID, ok := titleParam(c)
	if !ok {
		return
	}

	if err := h.progressService.Delete(c.Request.Context(), id.UserID, titleID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Progress deleted"})
}
