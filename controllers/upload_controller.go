package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/uploader/middleware"
	"github.com/cppla/uploader/models"
	"github.com/cppla/uploader/utils"
)

// MsgNoFile is returned when the request carries no "file" part.
const MsgNoFile = "please choose a file to upload"

// uploadField is the only file field accepted by Upload.
const uploadField = "file"

// ErrUnexpectedField is reported when the form carries a file part other than
// a single "file" part.
var ErrUnexpectedField = errors.New("unexpected field")

// FileStore persists one uploaded multipart file.
type FileStore interface {
	Save(fh *multipart.FileHeader) (models.UploadedFile, error)
}

// UploadController accepts single file uploads.
type UploadController struct {
	store    FileStore
	maxBytes int64
	log      *zap.Logger
}

// NewUploadController creates an UploadController. maxBytes <= 0 means no body size limit.
func NewUploadController(store FileStore, maxBytes int64, log *zap.Logger) *UploadController {
	return &UploadController{store: store, maxBytes: maxBytes, log: log}
}

// Upload handles POST /upload with exactly one multipart file part named "file".
func (u *UploadController) Upload(ctx *gin.Context) {
	if u.maxBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, u.maxBytes)
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			utils.ErrorMessage(ctx, http.StatusBadRequest, MsgNoFile)
			return
		}
		_ = ctx.Error(&middleware.UploadError{Err: err})
		ctx.Abort()
		return
	}

	header, err := singleFile(form)
	if err != nil {
		_ = ctx.Error(&middleware.UploadError{Err: err})
		ctx.Abort()
		return
	}
	if header == nil {
		utils.ErrorMessage(ctx, http.StatusBadRequest, MsgNoFile)
		return
	}

	saved, err := u.store.Save(header)
	if err != nil {
		_ = ctx.Error(err)
		ctx.Abort()
		return
	}

	u.log.Info("file uploaded",
		zap.String("filename", saved.Name),
		zap.String("original_name", saved.OriginalName),
		zap.Int64("size", saved.Size),
		zap.String(utils.RequestIDKey, ctx.GetString(utils.RequestIDKey)),
	)

	ctx.JSON(http.StatusOK, models.UploadResult{
		Success:  true,
		Filename: saved.Name,
		Path:     saved.URL,
	})
}

// singleFile returns the only "file" part of form, nil when the form has no
// file parts at all, or ErrUnexpectedField for any other file field or a
// repeated "file" part.
func singleFile(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, nil
	}
	for field, headers := range form.File {
		if field != uploadField {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedField, field)
		}
		if len(headers) > 1 {
			return nil, fmt.Errorf("%w: %s (%d parts)", ErrUnexpectedField, field, len(headers))
		}
	}
	if headers := form.File[uploadField]; len(headers) == 1 {
		return headers[0], nil
	}
	return nil, nil
}
