package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/cache"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/connection"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/event"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/handler"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/schedule"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/server"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/utils"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.ReadConfig()
	if err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		return
	}
	loggerCallback := logger.Init(cfg)
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)
	defer cleaner.Clean()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret must be configured")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.ConnectDatabase(ctx, cfg)
	if err != nil {
		logger.FatalF("Error occured while initializing database, details: %v", err)
		return
	}
	cleaner.Add(database.NewDBCloseCallback(store))

	visibility := database.NewCachedVisibility(store, cfg.Cache.VisibilitySize, utils.ParseStringTime(cfg.Cache.VisibilityTTL))
	manager := connection.NewConnectionManager(visibility)
	cleaner.Add(connection.NewManagerCloseCallback(manager))

	latest, err := cache.NewLatestPositions(cfg.Cache.LatestPositionsSize, store)
	if err != nil {
		logger.FatalF("Error occured while creating position cache, details: %v", err)
		return
	}
	postProcess := handler.NewPostProcessHandler(latest, store, manager)
	feed := database.NewFeed(store, postProcess, manager, visibility)

	opts, err := server.OptionsFromConfig(cfg.Live)
	if err != nil {
		logger.FatalF("Error occured while reading live options, details: %v", err)
		return
	}
	auth := server.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	srv := server.NewServer(cfg.Live, manager, store, auth, opts)
	refresh := schedule.NewPeriodicUpdate(manager, utils.ParseStringTime(cfg.Live.RefreshPeriod))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return refresh.Run(gctx) })
	g.Go(func() error { return feed.Run(gctx) })

	logger.InfoF("%s started", cfg.AppName)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.ErrorF("Live broker stopped unexpectedly, details: %v", err)
	}
	logger.Info("Received interrupt signal, shutting down")
}
