package middleware

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/models"
)

// AuditWriter persists audit trail entries.
type AuditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Audit records an audit entry for successful read-side actions worth tracing,
// such as document downloads. The resource id is built from the studentId and
// classId path parameters when present.
func Audit(writer AuditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if writer == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if claims, ok := Claims(c); ok {
			userID := claims.UserID
			entry.UserID = &userID
		}
		if studentID := c.Param("studentId"); studentID != "" {
			resourceID := studentID
			if classID := c.Param("classId"); classID != "" {
				resourceID += "/" + classID
			}
			entry.ResourceID = &resourceID
		}
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":   c.FullPath(),
			"method": c.Request.Method,
			"status": c.Writer.Status(),
		})

		if err := writer.Create(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
		}
	}
}
