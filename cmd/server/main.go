// Command server runs the Wyrmtable coordination service: campaign registry,
// encounter coordinator, roll requests, notes and chat behind the HTTP
// gateway, plus the membership reconciler worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	campaignservice "github.com/louisbranch/wyrmtable/internal/campaign/service"
	chatservice "github.com/louisbranch/wyrmtable/internal/chat/service"
	encounterservice "github.com/louisbranch/wyrmtable/internal/encounter/service"
	"github.com/louisbranch/wyrmtable/internal/gateway"
	"github.com/louisbranch/wyrmtable/internal/identity"
	"github.com/louisbranch/wyrmtable/internal/membership"
	noteservice "github.com/louisbranch/wyrmtable/internal/note/service"
	"github.com/louisbranch/wyrmtable/internal/notify"
	natsbridge "github.com/louisbranch/wyrmtable/internal/notify/nats"
	"github.com/louisbranch/wyrmtable/internal/platform/config"
	"github.com/louisbranch/wyrmtable/internal/platform/otel"
	"github.com/louisbranch/wyrmtable/internal/ratelimit"
	rollservice "github.com/louisbranch/wyrmtable/internal/roll/service"
	sqlitestore "github.com/louisbranch/wyrmtable/internal/storage/sqlite"
)

type serverConfig struct {
	Addr       string `env:"WYRMTABLE_ADDR" envDefault:":8080"`
	DBPath     string `env:"WYRMTABLE_DB_PATH" envDefault:"wyrmtable.db"`
	AuthSecret string `env:"WYRMTABLE_AUTH_SECRET,notEmpty"`
	// NATSURL enables the cross-instance change bridge when set.
	NATSURL         string        `env:"WYRMTABLE_NATS_URL"`
	AllowedOrigins  []string      `env:"WYRMTABLE_ALLOWED_ORIGINS" envSeparator:","`
	RateLimit       int           `env:"WYRMTABLE_RATE_LIMIT" envDefault:"240"`
	RateWindow      time.Duration `env:"WYRMTABLE_RATE_WINDOW" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"WYRMTABLE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"WYRMTABLE_LOG_LEVEL" envDefault:"info"`
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(logger zerolog.Logger) error {
	var cfg serverConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "wyrmtable-server")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	hub := notify.NewHub()

	store, err := sqlitestore.Open(cfg.DBPath, sqlitestore.WithNotifier(hub))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("store close")
		}
	}()

	if cfg.NATSURL != "" {
		bridge, err := natsbridge.Connect(cfg.NATSURL, hub, logger)
		if err != nil {
			return err
		}
		defer bridge.Close()
		go bridge.Run(ctx)
		logger.Info().Str("url", cfg.NATSURL).Msg("nats change bridge enabled")
	}

	campaigns := campaignservice.NewRegistry(store, hub, campaignservice.WithLogger(logger))
	encounters := encounterservice.NewCoordinator(store, hub, encounterservice.WithLogger(logger))
	rolls := rollservice.New(store, hub)
	notes := noteservice.New(store, hub)
	chat := chatservice.New(store, hub)

	// The reconciler is the authoritative writer for the membership index;
	// service-side index updates are best-effort.
	reconciler := membership.NewReconciler(store, hub, logger)
	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		reconciler.Run(ctx)
	}()

	limiter := ratelimit.New(cfg.RateLimit, cfg.RateWindow, nil)
	go limiter.PruneLoop(ctx, cfg.RateWindow)

	gw := gateway.New(gateway.Config{
		Campaigns:      campaigns,
		Encounters:     encounters,
		Rolls:          rolls,
		Notes:          notes,
		Chat:           chat,
		Verifier:       identity.NewVerifier([]byte(cfg.AuthSecret), nil),
		Hub:            hub,
		Limiter:        limiter,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	server := gw.Server(cfg.Addr)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-reconcilerDone
	return nil
}
