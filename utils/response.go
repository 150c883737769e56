package utils

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/uploader/models"
)

// ErrorMessage writes the uniform JSON error body {"error_message": msg}.
func ErrorMessage(ctx *gin.Context, status int, msg string) {
	ctx.JSON(status, models.ErrorResult{ErrorMessage: msg})
}

// AbortWithMessage writes the JSON error body and stops the handler chain.
func AbortWithMessage(ctx *gin.Context, status int, msg string) {
	ctx.AbortWithStatusJSON(status, models.ErrorResult{ErrorMessage: msg})
}
