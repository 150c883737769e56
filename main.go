package main

import (
	"go.uber.org/zap"

	"github.com/cppla/uploader/config"
	"github.com/cppla/uploader/routes"
	"github.com/cppla/uploader/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	log, err := utils.InitLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	r, err := routes.SetupRouter(cfg, log)
	if err != nil {
		log.Fatal("setup router", zap.Error(err))
	}

	log.Info("starting server (graceful)",
		zap.String("addr", cfg.Addr()),
		zap.String("upload_dir", cfg.UploadDir),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
	)
	if err := utils.GraceServer(cfg.Addr(), r, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}
