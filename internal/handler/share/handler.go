package share

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medvault-api/internal/handler"
	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/service/share"
	"github.com/jwalitptl/medvault-api/pkg/httputil"
)

type Handler struct {
	service share.ShareService
}

func NewHandler(service share.ShareService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	shareGroup := r.Group("/me/share", middleware.RequireAuthenticated())
	{
		shareGroup.GET("", h.GetLink)
		shareGroup.GET("/qr", h.GetQRCode)
		shareGroup.POST("/email", h.SendEmail)
	}
}

func (h *Handler) GetLink(c *gin.Context) {
	link, err := h.service.Link(c.Request.Context(), handler.PatientID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, link)
}

func (h *Handler) GetQRCode(c *gin.Context) {
	png, err := h.service.QRCode(c.Request.Context(), handler.PatientID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) SendEmail(c *gin.Context) {
	var req model.ShareEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}

	if err := h.service.Email(c.Request.Context(), handler.PatientID(c), req.To); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"sent_to": req.To})
}
