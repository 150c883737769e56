package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/uploader/config"
	"github.com/cppla/uploader/controllers"
	"github.com/cppla/uploader/middleware"
	"github.com/cppla/uploader/storage"
	"github.com/cppla/uploader/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, log *zap.Logger) (*gin.Engine, error) {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.NewLocal(cfg.UploadDir, cfg.UploadRoute)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.MaxMultipartMemory = int64(cfg.MultipartMemoryMB) << 20

	// Access log goes to its own rolling file when configured
	accessLog := log
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			accessLog = gl
		} else {
			log.Warn("gin access log disabled", zap.String("path", cfg.GinPath), zap.Error(err))
		}
	}

	r.Use(middleware.RequestID())
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(log, true))

	r.Use(middleware.CORS(cfg.AllowedOrigins, cfg.AllowedMethods, cfg.AllowedHeaders))
	r.Use(middleware.ErrorHandler(log))

	r.Static(cfg.UploadRoute, store.Dir())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var maxBytes int64
	if cfg.MaxUploadMB > 0 {
		maxBytes = int64(cfg.MaxUploadMB) << 20
	}
	uploadController := controllers.NewUploadController(store, maxBytes, log)
	statusController := controllers.NewStatusController(cfg.PublicBaseURL + cfg.UploadRoute)

	r.POST("/upload", middleware.RateLimit(cfg.RateLimitPerMinute), uploadController.Upload)
	r.POST("/check-file-status", statusController.CheckFileStatus)

	return r, nil
}
