package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medvault-api/internal/handler"
	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/session"
	"github.com/jwalitptl/medvault-api/pkg/httputil"
)

// Sessions is the part of the session controller the handler drives.
type Sessions interface {
	Login(ctx context.Context, current session.State, patientID, pin string) (*session.Issued, error)
	PresentLink(ctx context.Context, current session.State, token string) (*session.Issued, error)
	Logout(ctx context.Context, current session.State) (session.State, error)
	Back(ctx context.Context, current session.State) (session.State, error)
}

type Handler struct {
	sessions Sessions
	// guards run in front of the credential routes, typically a rate limiter.
	guards []gin.HandlerFunc
}

func NewHandler(sessions Sessions, guards ...gin.HandlerFunc) *Handler {
	return &Handler{sessions: sessions, guards: guards}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.guarded(h.Login)...)
		auth.POST("/link", h.guarded(h.PresentLink)...)
		auth.GET("/link", h.guarded(h.PresentLinkQuery)...)
		auth.POST("/logout", middleware.RequireSession(), h.Logout)
		auth.POST("/back", middleware.RequireSession(), h.Back)
	}
}

func (h *Handler) guarded(fn gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(h.guards)+1)
	chain = append(chain, h.guards...)
	return append(chain, fn)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}

	issued, err := h.sessions.Login(c.Request.Context(), middleware.GetSession(c), req.PatientID, req.PIN)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, sessionResponse(issued))
}

func (h *Handler) PresentLink(c *gin.Context) {
	var req model.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}
	h.presentLink(c, req.Token)
}

// PresentLinkQuery serves share links opened directly, as /auth/link?token=...
func (h *Handler) PresentLinkQuery(c *gin.Context) {
	var req model.LinkRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}
	h.presentLink(c, req.Token)
}

func (h *Handler) presentLink(c *gin.Context, token string) {
	issued, err := h.sessions.PresentLink(c.Request.Context(), middleware.GetSession(c), token)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, sessionResponse(issued))
}

func (h *Handler) Logout(c *gin.Context) {
	state, err := h.sessions.Logout(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"mode": string(state.Mode)})
}

func (h *Handler) Back(c *gin.Context) {
	state, err := h.sessions.Back(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"mode": string(state.Mode)})
}

func sessionResponse(issued *session.Issued) model.SessionResponse {
	return model.SessionResponse{
		Token:     issued.Token,
		Mode:      string(issued.State.Mode),
		PatientID: issued.State.PatientID,
		ExpiresAt: issued.State.ExpiresAt,
		Patient:   issued.Patient,
	}
}
