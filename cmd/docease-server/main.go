package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docease/docease/internal/config"
	"github.com/docease/docease/internal/domain/chat"
	"github.com/docease/docease/internal/domain/conference"
	"github.com/docease/docease/internal/domain/device"
	"github.com/docease/docease/internal/domain/inbox"
	"github.com/docease/docease/internal/domain/user"
	"github.com/docease/docease/internal/platform/auth"
	"github.com/docease/docease/internal/platform/db"
	"github.com/docease/docease/internal/platform/eventbus"
	"github.com/docease/docease/internal/platform/livestream"
	"github.com/docease/docease/internal/platform/middleware"
	"github.com/docease/docease/internal/platform/notification"
	"github.com/docease/docease/internal/platform/push"
	"github.com/docease/docease/internal/platform/websocket"
)

// deviceLister is the part of device.Service the push dispatcher needs.
type deviceLister interface {
	DevicesForUser(ctx context.Context, userID string) ([]*device.Device, error)
}

// deviceDirectoryAdapter adapts the device domain to push.DeviceDirectory,
// keeping the push package free of domain imports.
type deviceDirectoryAdapter struct {
	devices deviceLister
}

func (a deviceDirectoryAdapter) DevicesForUser(ctx context.Context, userID string) ([]push.Device, error) {
	devices, err := a.devices.DevicesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]push.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, push.Device{
			ID:          d.ID.String(),
			UserID:      d.UserID,
			DeviceToken: d.DeviceToken,
			IsDisabled:  d.IsDisabled,
		})
	}
	return out, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "docease-server",
		Short: "DocEase patient/doctor messaging server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationTarget resolves the schema and directory for migrate commands,
// preferring flags over configuration.
func migrationTarget(cmd *cobra.Command, cfg *config.Config) (schema, dir string) {
	schema, _ = cmd.Flags().GetString("schema")
	dir, _ = cmd.Flags().GetString("dir")
	if schema == "" {
		schema = cfg.DBSchema
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	return schema, dir
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			schema, dir := migrationTarget(cmd, cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, dir).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (default DB_SCHEMA)")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			schema, dir := migrationTarget(cmd, cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "", "Target schema (default DB_SCHEMA)")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSecret),
	})
}

func newPushGateway(cfg *config.Config, logger zerolog.Logger) push.Gateway {
	if cfg.PushGatewayURL == "" {
		logger.Warn().Msg("PUSH_GATEWAY_URL not set, push notifications are only logged")
		return push.NewLogGateway(logger)
	}
	return push.NewHTTPGateway(cfg.PushGatewayURL, cfg.PushGatewaySecret)
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Event delivery
	bus := eventbus.New(logger, eventbus.WithBufferSize(cfg.EventBufferSize))
	notificationStreams := livestream.NewRegistry()
	chatStreams := livestream.NewRegistry()
	templates := notification.NewTemplateEngine()

	// Repositories
	profileRepo := user.NewProfileRepoPG(pool)
	txRunner := db.PoolTxRunner{Pool: pool}

	// Services
	deviceSvc := device.NewService(device.NewDeviceRepoPG(pool))
	inboxSvc := inbox.NewService(inbox.NewNotificationRepoPG(pool), templates, bus)
	chatSvc := chat.NewService(
		chat.NewMessageRepoPG(pool),
		chat.NewChatMateRepoPG(pool),
		profileRepo,
		txRunner,
		templates,
		bus,
		logger,
	)
	conferenceSvc := conference.NewService(
		conference.NewConferenceRepoPG(pool),
		profileRepo,
		templates,
		bus,
		cfg.ConferenceReuseWindow,
		logger,
	)

	dispatcher := push.NewDispatcher(
		deviceDirectoryAdapter{devices: deviceSvc},
		newPushGateway(cfg, logger),
		logger,
		push.WithTimeout(cfg.PushTimeout),
		push.WithMaxConcurrency(cfg.PushMaxConcurrency),
	)
	router := notification.NewRouter(notificationStreams, chatStreams, inboxSvc, dispatcher, logger,
		notification.WithPersistTimeout(cfg.PersistTimeout))
	detach := router.Attach(bus)

	hub := websocket.NewHub(logger, websocket.WithAnnounceDelay(cfg.SignalAnnounceDelay))

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Event streams live for the whole connection, so they end when the
	// server starts shutting down rather than when Shutdown gives up.
	streamCtx, stopStreams := context.WithCancel(context.Background())
	e.Server.BaseContext = func(net.Listener) context.Context { return streamCtx }
	e.Server.RegisterOnShutdown(stopStreams)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Role"},
		AllowCredentials: true,
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.Gauges{
		"notifications": notificationStreams.Count,
		"chat":          chatStreams.Count,
	}))

	// API
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Requests: cfg.RateLimit,
		Window:   cfg.RateWindow,
	}))
	apiV1.Use(authMiddleware(cfg))

	streamOpts := []livestream.ConnOption{
		livestream.WithWriteWait(cfg.StreamWriteTimeout),
		livestream.WithSendBuffer(cfg.StreamSendBuffer),
	}
	apiV1.GET("/notifications/live", livestream.NewHandler("notifications", notificationStreams, cfg.HeartbeatInterval, logger, streamOpts...).Stream)
	apiV1.GET("/chat/live", livestream.NewHandler("chat", chatStreams, cfg.HeartbeatInterval, logger, streamOpts...).Stream)

	device.NewHandler(deviceSvc).RegisterRoutes(apiV1)
	inbox.NewHandler(inboxSvc).RegisterRoutes(apiV1)
	chat.NewHandler(chatSvc).RegisterRoutes(apiV1)
	conference.NewHandler(conferenceSvc).RegisterRoutes(apiV1)

	// Signaling
	ws := e.Group("/ws", authMiddleware(cfg))
	websocket.NewHandler(hub, logger).RegisterRoutes(ws)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	hub.Close()
	bus.Close()
	detach()
	router.Wait()
	logger.Info().Int("pending_streams", notificationStreams.Count()+chatStreams.Count()).Msg("server stopped")
	return nil
}
