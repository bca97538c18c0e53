package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authgate/internal/audit"
	auditrepo "authgate/internal/audit/repository"
	"authgate/internal/auth/api"
	"authgate/internal/auth/service"
	"authgate/internal/config"
	"authgate/internal/db"
	"authgate/internal/db/migrate"
	"authgate/internal/health"
	revocationrepo "authgate/internal/revocation/repository"
	"authgate/internal/security"
	"authgate/internal/server"
	sessionrepo "authgate/internal/session/repository"
	"authgate/internal/telemetry/otel"
	userrepo "authgate/internal/user/repository"
)

const serviceName = "authgate"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	providers.SetGlobal()
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shCtx)
	}()

	var tokens *security.TokenProvider
	if cfg.JWTEphemeralKeys {
		tokens = security.NewEphemeralTokenProvider(cfg.JWTIssuer)
		log.Warn("using ephemeral signing keys; tokens will not survive a restart")
	} else {
		tokens = security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	}

	var (
		database    *sql.DB
		users       service.UserRepo
		sessions    service.SessionRepo
		revocations service.RevocationRepo
		auditLog    *audit.Logger
	)
	if cfg.DatabaseURL != "" {
		if err := migrate.EnsureCurrent(cfg.DatabaseURL); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		database, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("database open failed", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		users = userrepo.NewPostgresRepository(database)
		sessions = sessionrepo.NewPostgresRepository(database)
		revocations = revocationrepo.NewPostgresRepository(database)
		auditLog = audit.NewLogger(auditrepo.NewPostgresRepository(database), log)
	} else {
		// In-memory stores for local development; state is lost on restart.
		log.Warn("DATABASE_URL not set; using in-memory stores")
		users = userrepo.NewMemoryRepository()
		sessions = sessionrepo.NewMemoryRepository()
		revocations = revocationrepo.NewMemoryRepository()
		auditLog = audit.NewLogger(nil, log)
	}

	svc := service.NewAuthService(users, sessions, revocations, tokens, auditLog, log, service.Settings{
		AccessTTL:    cfg.AccessTTL(),
		RefreshTTL:   cfg.RefreshTTL(),
		MaxSessions:  cfg.MaxSessions,
		StoreTimeout: cfg.StoreCallTimeout(),
	})

	go runSweeper(ctx, svc, log)

	meter := providers.MeterProvider.Meter(serviceName)
	tracer := providers.TracerProvider.Tracer(serviceName)

	srv := server.New(cfg.HTTPAddr, log, meter, tracer,
		api.NewHandler(svc, log, cfg.LoginRatePerSec, cfg.LoginRateBurst),
		health.NewHandler(database),
	)
	if err := srv.Run(ctx, 10*time.Second); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// runSweeper removes expired sessions every 10 minutes until ctx is cancelled.
func runSweeper(ctx context.Context, svc *service.AuthService, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.SweepExpiredSessions(ctx); err != nil {
				log.Warn("session sweep failed", "error", err)
			}
		}
	}
}
