package main

import (
	"context"
	"os/signal"
	"syscall"

	_ "sorteos-backend/docs"
	"sorteos-backend/internal/app"
	"sorteos-backend/internal/common/config"
	"sorteos-backend/internal/common/logger"
)

// @title           Sorteos API
// @version         1.0
// @description     Raffle platform: raffles, ticket inventory, purchases, payments and draws.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer JWT issued by /auth/login. Websocket clients pass it as the token query parameter.

// @tag.name auth
// @tag.description Registration, login and profile

// @tag.name sorteos
// @tag.description Raffles, ticket inventory and purchases

// @tag.name tombola
// @tag.description Winner draws

// @tag.name pagos
// @tag.description Payments

// @tag.name admin
// @tag.description Administration

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init(logger.Options{Service: cfg.ServiceName, Debug: cfg.Debug, JSON: cfg.LogJSON})

	logger.Info().
		Str("version", "1.0.0").
		Bool("debug", cfg.Debug).
		Msg("Starting Sorteos Backend")

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return
	}
	logger.Info().Msg("Server exited")
}
