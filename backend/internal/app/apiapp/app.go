package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/config"
	s3infra "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/infra/s3"
	pgrepo "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/repo/postgres"
	redrepo "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/repo/redis"
	actionssvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/actions"
	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
	midisvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/midi"
	ratesvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/rate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	cors, err := newCORSPolicy(cfg.CORS.Origins)
	if err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)
	r.Use(corsMiddleware(cors, log))

	authService, err := authsvc.NewService(
		cfg.Auth.BotToken,
		authsvc.NewAdminSet(cfg.Auth.AdminIDs...),
		authsvc.WithMaxAge(cfg.Auth.MaxAge),
		authsvc.WithAccessTokens(authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)),
	)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	log.Info("auth configured",
		zap.Int("admins", authService.Admins().Len()),
		zap.Duration("max_age", cfg.Auth.MaxAge),
		zap.Bool("access_tokens", authService.TokensEnabled()),
	)

	var (
		pool     *pgxpool.Pool
		recorder midisvc.UploadRecorder
	)
	if cfg.Postgres.DSN != "" {
		if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
			log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
		} else {
			pool = p
			uploads := pgrepo.NewUploadRepo(pool)
			if err := uploads.EnsureSchema(ctx); err != nil {
				log.Warn("postgres schema init failed, upload history disabled", zap.Error(err))
			} else {
				recorder = uploads
			}
		}
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	var limiter *ratesvc.Limiter
	if redisClient != nil {
		limiter = ratesvc.NewLimiter(redrepo.NewRateRepo(redisClient))
	} else {
		log.Warn("redis is not configured, rate limiting disabled")
	}

	storage, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}
	midiService := midisvc.NewService(storage, recorder, cfg.Upload.MaxBytes)

	actionsService := actionssvc.NewService(actionssvc.NewCache(
		actionssvc.FileLoader(cfg.Actions.LogPath),
		cfg.Actions.CacheTTL,
	))

	RegisterRoutes(r, Dependencies{
		AuthService:    authService,
		MIDIService:    midiService,
		ActionsService: actionsService,
		Limiter:        limiter,
		Logger:         log,
		Config:         cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func newStorage(cfg config.Config) (midisvc.ObjectStorage, error) {
	switch cfg.Storage.Backend {
	case config.StorageS3:
		client, err := s3infra.NewClient(s3infra.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		return midisvc.NewS3Storage(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return midisvc.NewFSStorage(cfg.Storage.MIDIDir), nil
	}
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
