package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/twosmallonions/recipes/backend/internal/apperrors"
	"github.com/twosmallonions/recipes/backend/internal/service"
	"github.com/twosmallonions/recipes/backend/internal/types"
)

// GenericFailureBody is the only detail a caller sees for unclassified
// failures.
const GenericFailureBody = "something broke!"

// Realm is advertised in bearer challenges.
const Realm = "recipes"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string             `json:"error"`
	Message string             `json:"message,omitempty"`
	Issues  []types.FieldIssue `json:"issues,omitempty"`
}

// ErrorHandler is the terminal stage of the pipeline. It maps the last
// error recorded on the context to a status code and body.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		if c.Writer.Written() {
			logger.Warn("error after response was written",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err))
			return
		}
		writeError(c, logger, err)
	}
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var appErr *apperrors.AppError
	errors.As(err, &appErr)

	switch apperrors.CodeOf(err) {
	case apperrors.CodeUnauthorized:
		code, _ := appErr.Meta[service.AuthErrorKey].(string)
		if code == "" {
			code = service.AuthInvalidToken
		}
		logger.Debug("unauthorized request",
			zap.String("request_id", GetRequestID(c)),
			zap.String("auth_error", code),
			zap.Error(err))
		c.Header("WWW-Authenticate", bearerChallenge(code, appErr.Message))
		c.AbortWithStatus(http.StatusUnauthorized)

	case apperrors.CodeInvalid:
		resp := ErrorResponse{Error: "validation_failed", Issues: []types.FieldIssue{}}
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			resp.Issues = verr.Issues
		} else {
			resp.Message = appErr.Message
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)

	case apperrors.CodeNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: appErr.Message})

	case apperrors.CodeConflict:
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: appErr.Message})

	default:
		logger.Error("request failed",
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte(GenericFailureBody))
		c.Abort()
	}
}

func bearerChallenge(code, description string) string {
	return fmt.Sprintf(`Bearer realm=%q, error=%q, error_description=%q`, Realm, code, description)
}

// Recovery turns a panic into the generic failure response.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		panicRecoveries.Inc()
		logger.Error("panic recovered",
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"))
		c.String(http.StatusInternalServerError, GenericFailureBody)
		c.Abort()
	})
}
