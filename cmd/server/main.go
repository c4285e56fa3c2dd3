package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/vaxguard/device-trust/pkg/attempt"
	"github.com/vaxguard/device-trust/pkg/device"
	deviceapi "github.com/vaxguard/device-trust/pkg/device/api"
	"github.com/vaxguard/device-trust/pkg/geo"
	"github.com/vaxguard/device-trust/pkg/notify"
	"github.com/vaxguard/device-trust/pkg/throttle"
)

type DbConfig struct {
	Host     string `env:"DEVICE_TRUST_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"DEVICE_TRUST_PG_PORT" env-default:"5432"`
	Database string `env:"DEVICE_TRUST_PG_DATABASE" env-default:"device_trust_db"`
	User     string `env:"DEVICE_TRUST_PG_USER" env-default:"device_trust"`
	Password string `env:"DEVICE_TRUST_PG_PASSWORD" env-default:"pwd"`
}

func (d DbConfig) toDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

type JwtConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

type RateLimitConfig struct {
	MaxAttempts   int    `env:"RATE_LIMIT_MAX_ATTEMPTS" env-default:"5"`
	WindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS" env-default:"300"`
	RedisAddr     string `env:"RATE_LIMIT_REDIS_ADDR" env-default:""`
	RedisPassword string `env:"RATE_LIMIT_REDIS_PASSWORD" env-default:""`
}

type GeoConfig struct {
	CityDBPath string `env:"GEOIP_CITY_DB_PATH" env-default:""`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" env-default:""`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	TLS      bool   `env:"SMTP_TLS" env-default:"true"`
	Username string `env:"SMTP_USERNAME" env-default:""`
	Password string `env:"SMTP_PASSWORD" env-default:""`
	From     string `env:"SMTP_FROM" env-default:"noreply@example.com"`
	AdminTo  string `env:"SMTP_ADMIN_TO" env-default:""`
}

type Config struct {
	DbConfig        DbConfig
	AppConfig       app.AppConfig
	JwtConfig       JwtConfig
	RateLimitConfig RateLimitConfig
	GeoConfig       GeoConfig
	SMTPConfig      SMTPConfig
	Persistence     string `env:"DEVICE_TRUST_PERSISTENCE" env-default:"postgres"`
}

func main() {
	loadEnvFile()

	config := Config{}
	cleanenv.ReadEnv(&config)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	var deviceRepo device.DeviceRepository
	var attemptRepo attempt.AttemptRepository

	if config.Persistence == "memory" {
		deviceRepo = device.NewInMemDeviceRepository()
		attemptRepo = attempt.NewInMemAttemptRepository()
	} else {
		dbConfig := config.DbConfig.toDbConfig()
		pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(-1)
		}
		deviceRepo = device.NewPostgresDeviceRepository(pool)
		attemptRepo = attempt.NewPostgresAttemptRepository(pool)
	}

	// Geolocation annotation is optional; without a database attempts are
	// recorded without location data.
	ledgerOpts := []attempt.LedgerOption{}
	if config.GeoConfig.CityDBPath != "" {
		annotator, err := geo.NewMaxMindAnnotator(config.GeoConfig.CityDBPath)
		if err != nil {
			slog.Error("Failed to open GeoIP database", "err", err, "path", config.GeoConfig.CityDBPath)
			os.Exit(-1)
		}
		defer annotator.Close()
		ledgerOpts = append(ledgerOpts, attempt.WithAnnotator(annotator))
	}
	ledger := attempt.NewLedger(attemptRepo, ledgerOpts...)

	trustGate := device.NewTrustGate(deviceRepo)
	approvalService := device.NewApprovalService(deviceRepo)

	var notifier notify.DeviceNotifier = notify.NoopNotifier{}
	if config.SMTPConfig.Host != "" {
		emailNotifier, err := notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     config.SMTPConfig.Host,
			Port:     config.SMTPConfig.Port,
			TLS:      config.SMTPConfig.TLS,
			Username: config.SMTPConfig.Username,
			Password: config.SMTPConfig.Password,
			From:     config.SMTPConfig.From,
			To:       config.SMTPConfig.AdminTo,
		})
		if err != nil {
			slog.Error("Failed to create email notifier", "err", err)
			os.Exit(-1)
		}
		notifier = emailNotifier
	}

	// Shared Redis window when configured, per-instance otherwise
	var limiter throttle.Limiter
	window := time.Duration(config.RateLimitConfig.WindowSeconds) * time.Second
	if config.RateLimitConfig.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     config.RateLimitConfig.RedisAddr,
			Password: config.RateLimitConfig.RedisPassword,
		})
		limiter = throttle.NewRedisLimiter(redisClient, config.RateLimitConfig.MaxAttempts, window)
	} else {
		limiter = throttle.NewInMemLimiter(config.RateLimitConfig.MaxAttempts, window)
	}
	throttleMiddleware := throttle.NewMiddleware(limiter)

	deviceHandler := deviceapi.NewDeviceHandler(trustGate, approvalService, ledger, notifier)

	tokenAuth := jwtauth.New("HS256", []byte(config.JwtConfig.JwtSecret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(throttleMiddleware.Handler)
		r.Mount("/api/v1/devices", deviceapi.Handler(deviceHandler))
	})

	server.Run()
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}

	execDir := filepath.Dir(execPath)
	envFile := filepath.Join(execDir, ".env")

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}
