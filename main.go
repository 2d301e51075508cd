package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"

	"github.com/MicahParks/keyfunc"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/amankumar20031130-afk/taskflow/api"
	"github.com/amankumar20031130-afk/taskflow/domain"
	"github.com/amankumar20031130-afk/taskflow/realtime"
	"github.com/amankumar20031130-afk/taskflow/storage"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	var (
		store storage.Store
		queue realtime.EventQueue
	)
	switch cfg.StorageDriver {
	case driverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		store = storage.NewMemory()
	default:
		st, err := storage.New(cfg.ConnectionString, cfg.Tables, cfg.EventsQueue)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		store = st
		if cfg.EventsQueue != "" {
			queue = st
		}
	}

	ctx, stopRelay := context.WithCancel(context.Background())
	hub := realtime.NewHub(logger, 0)
	var live domain.Broadcaster = hub
	var (
		rc      *redis.Client
		deduper api.Deduper
	)
	if cfg.RedisConn != "" {
		rc = redis.NewClient(parseRedisOptions(cfg.RedisConn))
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
		store = storage.NewCache(store, rc, cfg.UsersCacheTTL)
		relay := realtime.NewRedisRelay(rc, cfg.RealtimeChannel, hub, logger)
		go relay.Run(ctx)
		live = relay
	}
	targets := []domain.Broadcaster{live}
	if queue != nil {
		targets = append(targets, realtime.NewQueueSink(queue))
	}
	events := realtime.NewFanout(logger, targets...)

	var jwks *keyfunc.JWKS
	issuer := ""
	if cfg.Auth0Domain != "" {
		jwks, err = keyfunc.Get(fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth0Domain), keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		issuer = "https://" + cfg.Auth0Domain + "/"
	}
	auth := api.NewAuth(cfg.JWTSecret, cfg.SessionTTL, jwks, cfg.Auth0Audience, issuer)

	svc := api.Services{
		Tasks:         domain.NewTaskService(store, store, store, store, events, logger),
		Users:         domain.NewUserService(store, api.NewPasswordHasher(api.DefaultBcryptCost)),
		Notifications: domain.NewNotificationService(store),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding},
		AllowCredentials: !slices.Contains(cfg.CORSOrigins, "*"),
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(log.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": float64(v.Latency.Microseconds()) / 1000,
			})
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Debug("request")
			return nil
		},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, svc, auth, hub, logger, api.Options{CookieSecure: cfg.CookieSecure, Deduper: deduper})

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"taskflow": func(ctx context.Context) error {
				stopRelay()
				// closing the hub ends open streams so the server can drain
				hub.Close()
				err := e.Shutdown(ctx)
				if jwks != nil {
					jwks.EndBackground()
				}
				if rc != nil {
					if cerr := rc.Close(); cerr != nil && err == nil {
						err = cerr
					}
				}
				return err
			},
		},
	)
	os.Exit(<-wait)
}
