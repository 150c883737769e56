package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/uploader/utils"
)

// UploadError marks a failure of the multipart layer itself: malformed
// bodies, size limits and similar.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return "upload error"
	}
	return e.Err.Error()
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// ErrorHandler turns errors attached with ctx.Error into JSON responses.
// Upload errors become 400, everything else 500.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		log.Error("request error",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String(utils.RequestIDKey, c.GetString(utils.RequestIDKey)),
		)

		if c.Writer.Written() {
			return
		}

		var uploadErr *UploadError
		if errors.As(err, &uploadErr) {
			utils.ErrorMessage(c, http.StatusBadRequest, "upload error: "+uploadErr.Error())
			return
		}

		msg := err.Error()
		if msg == "" {
			msg = "internal server error"
		}
		utils.ErrorMessage(c, http.StatusInternalServerError, msg)
	}
}
