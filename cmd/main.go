package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hxbeeb/excalidraw/internal/auth"
	"github.com/hxbeeb/excalidraw/internal/config"
	"github.com/hxbeeb/excalidraw/internal/domain"
	"github.com/hxbeeb/excalidraw/internal/handler"
	"github.com/hxbeeb/excalidraw/internal/hub"
	"github.com/hxbeeb/excalidraw/internal/presence"
	"github.com/hxbeeb/excalidraw/internal/repository"
	"github.com/hxbeeb/excalidraw/internal/service"
	"github.com/hxbeeb/excalidraw/pkg/database"
	"github.com/hxbeeb/excalidraw/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "excalidraw-hub",
	})
	logger := log.L()

	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db,
		&domain.UserModel{},
		&domain.RoomModel{},
		&domain.ChatMessageModel{},
		&domain.DrawingActionModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	var tracker presence.Tracker = presence.Noop{}
	if cfg.Presence.Enabled {
		redisTracker, err := presence.NewRedisTracker(cfg.Presence, uuid.New().String())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to presence backend")
		}
		defer redisTracker.Close()
		if err := redisTracker.StartHeartbeat(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start presence heartbeat")
		}
		tracker = redisTracker
		logger.Info().Str("address", cfg.Presence.Address).Msg("presence backend connected")
	}

	store := repository.NewGormStore(db)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, cfg.Auth.Issuer)
	wsHub := hub.NewHub()

	rooms := service.NewRoomService(wsHub, store, tracker, cfg.Storage.OpTimeout)
	accounts := service.NewAccountService(store, tokens)

	wsHandler := handler.NewWSHandler(wsHub, tokens, rooms, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(accounts, store, tokens)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))
	httpHandler.RegisterRoutes(router, wsHandler)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("server stopped")
}
