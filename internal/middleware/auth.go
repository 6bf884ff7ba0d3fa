package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medvault-api/internal/session"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/httputil"
)

const (
	ContextSession      = "session"
	contextSessionError = "session_error"
)

var (
	errMissingSession = errors.New("missing authorization header")
	errBadAuthHeader  = errors.New("invalid authorization format")
)

// SessionResolver turns a bearer token into a session state.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (session.State, error)
}

type AuthMiddleware struct {
	sessions SessionResolver
}

func NewAuthMiddleware(sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Session decodes the bearer token, if any, into a session state. A bad or
// revoked token leaves the request unauthenticated; the guards below report
// why when a route needs a session.
func (m *AuthMiddleware) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := session.Unauthenticated()

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				c.Set(contextSessionError, apperrors.Unauthorized(errBadAuthHeader))
			} else {
				resolved, err := m.sessions.Resolve(c.Request.Context(), strings.TrimSpace(parts[1]))
				if err != nil {
					c.Set(contextSessionError, err)
				} else {
					state = resolved
				}
			}
		}

		c.Set(ContextSession, state)
		c.Next()
	}
}

// RequireSession admits authenticated and view-only sessions.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetSession(c).HasPatient() {
			httputil.RespondWithError(c, sessionError(c))
			return
		}
		c.Next()
	}
}

// RequireAuthenticated admits only full sessions. View-only sessions are
// refused because they must not change the record.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := GetSession(c)
		switch {
		case state.IsViewOnly():
			httputil.RespondWithError(c, apperrors.Forbidden("view-only access cannot perform this action"))
			return
		case !state.HasPatient():
			httputil.RespondWithError(c, sessionError(c))
			return
		}
		c.Next()
	}
}

// GetSession returns the session decoded for this request.
func GetSession(c *gin.Context) session.State {
	if v, ok := c.Get(ContextSession); ok {
		if state, ok := v.(session.State); ok {
			return state
		}
	}
	return session.Unauthenticated()
}

func sessionError(c *gin.Context) error {
	if v, ok := c.Get(contextSessionError); ok {
		if err, ok := v.(error); ok {
			if _, isApp := apperrors.As(err); isApp {
				return err
			}
			return apperrors.Internal(err)
		}
	}
	return apperrors.Unauthorized(errMissingSession)
}
