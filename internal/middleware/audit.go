package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medvault-api/pkg/logger"
)

// AuditMiddleware writes one audit line for every request that touches a
// patient record.
type AuditMiddleware struct {
	log *logger.Logger
}

func NewAuditMiddleware(log *logger.Logger) *AuditMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditMiddleware{log: log.WithFields(map[string]interface{}{"component": "audit"})}
}

func (m *AuditMiddleware) AuditLog(entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		state := GetSession(c)
		if state.PatientID == "" {
			return
		}

		action := "read"
		switch c.Request.Method {
		case http.MethodPost:
			action = "create"
		case http.MethodPut, http.MethodPatch:
			action = "update"
		}

		m.log.WithContext(c.Request.Context()).Info("patient record accessed",
			"entity", entityType,
			"action", action,
			"patient_id", state.PatientID,
			"mode", string(state.Mode),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
		)
	}
}
