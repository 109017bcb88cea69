package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sketchdesk/presence/internal/adapters/auth"
	router "github.com/sketchdesk/presence/internal/adapters/http"
	"github.com/sketchdesk/presence/internal/adapters/store"
	"github.com/sketchdesk/presence/internal/app"
	"github.com/sketchdesk/presence/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	rooms := store.NewRoomStore(db)
	chat := store.NewChatLog(db)
	jwt := auth.NewJWT(cfg.Secret, cfg.TokenTTL)
	svc := app.NewService(rooms, chat, cfg.MaxConnections, cfg.MaxRoomMembers)

	go svc.Run(ctx, cfg.SweepInterval, cfg.IdleThreshold, cfg.StatsInterval)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Svc:   svc,
		Auth:  jwt,
		Rooms: rooms,
		Chat:  chat,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("presence server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
