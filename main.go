package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"scribe/auth"
	"scribe/cache"
	"scribe/common"
	"scribe/config"
	"scribe/content"
	"scribe/database"
	"scribe/email"
	"scribe/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := common.ConnectDb(cfg, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	tokens, err := token.NewService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("failed to create token service", "error", err)
		os.Exit(1)
	}

	var mailer auth.Mailer
	if emailService := email.NewEmailService(cfg.SMTP); emailService != nil {
		mailer = emailService
	} else {
		logger.Info("smtp not configured, welcome emails disabled")
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(common.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposeHeaders: []string{"ETag"},
	}))

	api := router.Group("/api")
	api.Use(cache.ETagMiddleware())

	authModule := auth.NewAuthModule(db, tokens, mailer, cfg.BcryptCost, logger)
	authModule.RegisterRoutes(api)

	contentModule := content.NewContentModule(content.NewService(db, logger), tokens, logger)
	contentModule.RegisterRoutes(api)

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})

	logger.Info("starting server", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}
