package main

import (
	"context"
	"os"

	"equipment_loaner/app"
	"equipment_loaner/config"
	"equipment_loaner/routes"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Parse()
	if err != nil {
		app.NewLogger(config.Config{}).Error("config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if _, err := app.BootstrapFirstAdmin(ctx, cfg, application.Repo, application.Hasher, logger); err != nil {
		logger.Error("bootstrap admin failed", "error", err)
	}

	r := application.Router
	routes.RegisterRoutes(r, application)

	logger.Info("listening", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
	}
}
