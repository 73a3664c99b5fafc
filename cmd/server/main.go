// backend-go/cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/api"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/app"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/config"
	"github.com/andresuchdata/autopo-forecast/backend-go/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetFormat(cfg.Server.LogFormat)
	if cfg.Server.Mode == gin.DebugMode {
		logger.SetLevel("debug")
		gin.SetMode(gin.DebugMode)
	} else {
		logger.SetLevel("info")
		gin.SetMode(gin.ReleaseMode)
	}
	log := logger.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{OutputDir: cfg.App.DataDir, Upload: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise planner")
	}
	defer a.Close()

	router := api.NewRouter(&api.Services{
		Worker:   a.Worker,
		Planner:  a.Planner,
		Defaults: cfg.Forecast.PlanConfig(),
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	// in-flight batches get the same grace period as requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exiting")
}
