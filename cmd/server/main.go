package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/fieldbill/auth"
	"github.com/diewo77/fieldbill/internal/config"
	"github.com/diewo77/fieldbill/internal/db"
	"github.com/diewo77/fieldbill/internal/handlers"
	"github.com/diewo77/fieldbill/internal/models"
	"github.com/diewo77/fieldbill/internal/notify"
	"github.com/diewo77/fieldbill/internal/pricing"
	"github.com/diewo77/fieldbill/internal/services"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
	issueTokenFlag  = flag.Uint("issue-token", 0, "Print an API token for the given user id and exit")
	tokenTTLFlag    = flag.Duration("token-ttl", 24*time.Hour, "Lifetime of tokens printed by -issue-token")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := initLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	auth.SetSecrets(cfg.Auth.SessionSecret, cfg.Auth.JWTSecret)

	dsn := db.ResolveDSN(cfg.Database)
	conn, err := db.Connect(dsn, cfg.Database.Debug, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if *migrateOnlyFlag {
		if err := migrateSchema(conn, dsn, cfg.App); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("migrations completed")
		return
	}
	if *seedOnlyFlag {
		if err := db.Seed(conn, os.Getenv("SEED_ADMIN_EMAIL")); err != nil {
			logger.Fatal("seeding failed", zap.Error(err))
		}
		logger.Info("seeding completed")
		return
	}
	if *issueTokenFlag != 0 {
		if err := printToken(conn, uint(*issueTokenFlag), *tokenTTLFlag); err != nil {
			logger.Fatal("issue token", zap.Error(err))
		}
		return
	}

	if cfg.App.Migrations || cfg.App.SQLMigrations {
		if err := migrateSchema(conn, dsn, cfg.App); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("migrations completed")
	}
	if cfg.App.Seed {
		if err := db.Seed(conn, os.Getenv("SEED_ADMIN_EMAIL")); err != nil {
			logger.Fatal("seeding failed", zap.Error(err))
		}
	}

	auth.SetResolver(userResolver(conn))

	var rdb *redis.Client
	if cfg.Notify.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Notify.RedisAddr})
		defer rdb.Close()
	}

	set, dispatcher, err := buildHandlers(conn, cfg, rdb, logger)
	if err != nil {
		logger.Fatal("wire handlers", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(conn, set, logger),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	// Let in-flight discount notifications finish before the DB goes away.
	dispatcher.Wait()
	logger.Info("server stopped")
}

// buildHandlers wires services, the pricing engine and the notification
// fan-out into the API handler set.
func buildHandlers(conn *gorm.DB, cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (handlers.Set, *notify.Dispatcher, error) {
	engine, err := pricing.NewEngine(pricing.EngineDeps{Source: services.NewPriceSource(conn), Logger: logger})
	if err != nil {
		return handlers.Set{}, nil, err
	}

	notifiers := notify.Multi{notify.DBNotifier{DB: conn}}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
	}
	if rdb != nil {
		notifiers = append(notifiers, &notify.RedisNotifier{Client: rdb, Channel: cfg.Notify.RedisChannel})
	}
	dispatcher := notify.NewDispatcher(notify.DispatcherDeps{
		Notifier: notifiers,
		Admins:   notify.DBAdminDirectory{DB: conn},
		Timeout:  cfg.Notify.Timeout,
		Logger:   logger,
	})

	catalog := services.NewCatalogService(conn, engine, logger)
	billing := services.NewBillingService(conn, dispatcher, logger)
	set := handlers.Set{
		Catalog:       handlers.NewCatalogHandler(catalog, logger),
		PriceLists:    handlers.NewPriceListHandler(services.NewPriceListService(conn, logger), services.NewCustomerService(conn), logger),
		Billing:       handlers.NewBillingHandler(billing, catalog, cfg.App.Currency, logger),
		Notifications: handlers.NewNotificationHandler(services.NewNotificationService(conn), logger),
	}
	return set, dispatcher, nil
}

func migrateSchema(conn *gorm.DB, dsn string, app config.AppConfig) error {
	if app.SQLMigrations {
		return db.RunSQLMigrations(dsn, app.MigrationsDir)
	}
	return db.Migrate(conn)
}

// userResolver refreshes identities from the users table so a disabled
// account or a changed role takes effect without waiting for token expiry.
func userResolver(conn *gorm.DB) auth.Resolver {
	return func(ctx context.Context, uid uint) (auth.Identity, bool) {
		var u models.User
		if err := conn.WithContext(ctx).Where("id = ? AND is_active = ?", uid, true).First(&u).Error; err != nil {
			return auth.Identity{}, false
		}
		return auth.Identity{UserID: u.ID, Name: u.Name, Role: u.Role}, true
	}
}

func printToken(conn *gorm.DB, uid uint, ttl time.Duration) error {
	id, ok := userResolver(conn)(context.Background(), uid)
	if !ok {
		return fmt.Errorf("user %d not found or inactive", uid)
	}
	token, err := auth.IssueToken(id, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	return zapCfg.Build()
}
