package main

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/madhvv-7/E-waste-madhav/internal/audit"
	"github.com/madhvv-7/E-waste-madhav/internal/config"
	"github.com/madhvv-7/E-waste-madhav/internal/events"
	"github.com/madhvv-7/E-waste-madhav/internal/handlers"
	"github.com/madhvv-7/E-waste-madhav/internal/lock"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
	"github.com/madhvv-7/E-waste-madhav/internal/services"
	"github.com/madhvv-7/E-waste-madhav/utils"
)

// appLogger adapts the info/error log pair to the Logger interfaces of the
// internal packages.
type appLogger struct{}

func (appLogger) Infof(format string, args ...interface{}) {
	infoLog.Printf(format, args...)
}

func (appLogger) Errorf(format string, args ...interface{}) {
	errorLog.Printf(format, args...)
}

type application struct {
	db     *sql.DB
	auth   *services.AuthService
	hub    *events.Hub
	push   *events.PushNotifier
	redis  *redis.Client
	closed []func()

	authHandler    *handlers.AuthHandler
	pickupHandler  *handlers.PickupHandler
	accountHandler *handlers.AccountHandler
	appealHandler  *handlers.AppealHandler
	eventsHandler  *handlers.EventsHandler
}

func initializeApp(ctx context.Context, cfg config.Config, db *sql.DB, dialect repositories.Dialect) (*application, error) {
	logger := appLogger{}
	app := &application{db: db}

	// Repositories
	accountRepo := &repositories.AccountRepository{DB: db, Dialect: dialect}
	pickupRepo := &repositories.PickupRepository{DB: db, Dialect: dialect}
	appealRepo := &repositories.AppealRepository{DB: db, Dialect: dialect}

	// Locks
	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return nil, errors.Wrapf(err, "redis ping %s", cfg.Redis.Addr)
		}
		app.closed = append(app.closed, func() { app.redis.Close() })
		locker = lock.NewRedis(app.redis, cfg.Locks.TTL, cfg.Locks.Wait, logger)
		infoLog.Printf("Using redis locks at %s", cfg.Redis.Addr)
	} else {
		locker = lock.NewLocal(cfg.Locks.Wait)
		infoLog.Printf("Using in-process locks")
	}

	// Events
	app.hub = events.NewHub(logger, cfg.Server.AllowedOrigins)
	publishers := events.Fanout{app.hub}
	if cfg.Push.CredentialsFile != "" {
		client, err := events.NewFirebaseMessaging(ctx, cfg.Push.CredentialsFile)
		if err != nil {
			return nil, err
		}
		app.push = events.NewPushNotifier(client, logger)
		app.closed = append(app.closed, app.push.Wait)
		publishers = append(publishers, app.push)
		infoLog.Printf("Push notifications enabled")
	}

	// Archive
	var archiver services.Archiver
	if cfg.Audit.Bucket != "" {
		client, err := audit.NewS3Client(audit.Config{
			Bucket:    cfg.Audit.Bucket,
			Region:    cfg.Audit.Region,
			Endpoint:  cfg.Audit.Endpoint,
			Prefix:    cfg.Audit.Prefix,
			AccessKey: cfg.Audit.AccessKey,
			SecretKey: cfg.Audit.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		archiver = audit.NewS3Archiver(client, cfg.Audit.Bucket, cfg.Audit.Prefix)
		infoLog.Printf("Archiving recycling records to s3://%s/%s", cfg.Audit.Bucket, cfg.Audit.Prefix)
	}

	tokens, err := utils.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}

	// Services
	accountService := &services.AccountService{Accounts: accountRepo, Locker: locker, Events: publishers, Logger: logger}
	pickupService := &services.PickupService{Pickups: pickupRepo, Locker: locker, Events: publishers, Archiver: archiver, Logger: logger}
	coordinator := &services.AssignmentCoordinator{Accounts: accountService, Pickups: pickupService, Locker: locker, Logger: logger}
	appealService := &services.AppealService{Appeals: appealRepo, Accounts: accountService, Locker: locker, Events: publishers, Logger: logger}
	app.auth = &services.AuthService{Accounts: accountRepo, Tokens: tokens, TokenTTL: cfg.Auth.AccessTTL, Logger: logger}

	// Handlers
	app.authHandler = &handlers.AuthHandler{Service: app.auth}
	app.pickupHandler = &handlers.PickupHandler{Service: pickupService, Coordinator: coordinator}
	app.accountHandler = &handlers.AccountHandler{Service: accountService}
	app.appealHandler = &handlers.AppealHandler{Service: appealService}
	app.eventsHandler = &handlers.EventsHandler{Hub: app.hub, Auth: app.auth}

	return app, nil
}

func (app *application) close() {
	for i := len(app.closed) - 1; i >= 0; i-- {
		app.closed[i]()
	}
}

// openDB opens the configured database and retries the first ping with
// exponential backoff so the server can start alongside its database.
func openDB(ctx context.Context, cfg config.Database) (*sql.DB, repositories.Dialect, error) {
	dialect, err := repositories.DialectFor(strings.ToLower(cfg.Driver))
	if err != nil {
		return nil, "", err
	}
	dsn := cfg.URL
	if dialect == repositories.DialectMySQL {
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, "", err
		}
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", errors.Wrap(err, "open database")
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectTimeout
	err = backoff.RetryNotify(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		infoLog.Printf("Database not ready (%v), retrying in %s", err, next.Round(time.Millisecond))
	})
	if err != nil {
		db.Close()
		return nil, "", errors.Wrap(err, "ping database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if dialect == repositories.DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	infoLog.Printf("Successfully connected to %s database", dialect)
	return db, dialect, nil
}

// mysqlDSN forces the options the repositories rely on: DATETIME columns scan
// into time.Time in UTC.
func mysqlDSN(raw string) (string, error) {
	mc, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}
