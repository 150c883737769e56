package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/uploader/models"
)

// StubDownloadName is the file every status response points at.
const StubDownloadName = "test.pdf"

// StatusController answers status polls with a constant result.
// It is a stub: no upload is ever looked up and the request body is ignored.
type StatusController struct {
	result models.StatusResult
}

// NewStatusController builds the fixed response from the public download prefix,
// e.g. "http://localhost:3000/uploads".
func NewStatusController(downloadPrefix string) *StatusController {
	return &StatusController{
		result: models.StatusResult{
			ErrCode: 0,
			Data: models.StatusData{
				Status:      "success",
				DownloadURL: downloadPrefix + "/" + StubDownloadName,
			},
		},
	}
}

// CheckFileStatus handles POST /check-file-status.
func (s *StatusController) CheckFileStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.result)
}
