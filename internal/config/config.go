package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	drv "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Port       string
	Production bool

	JWTSecret     string
	LoginTokenTTL time.Duration

	MySQLDSN  string
	DBTimeout time.Duration

	MongoURI    string
	MongoDBName string

	CacheBackend       string
	CacheSweepInterval time.Duration
	RedisAddr          string
	RedisPassword      string

	QRTokenTTL       time.Duration
	EntryMinDuration time.Duration
}

// Load reads the env file named by START (.env when unset) and then
// the process environment. Invalid configuration is fatal.
func Load() *Config {
	/*
		START выбирает файл окружения: .env-local для локальной бд,
		.env.docker для докера. Если файла нет, берем то, что уже лежит
		в окружении процесса.
	*/
	envFile := os.Getenv("START")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("env file %q not loaded: %v", envFile, err)
	}

	cfg, err := Parse(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func Parse(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:          valueOr(getenv("PORT"), "5050"),
		Production:    getenv("APP_ENV") == "production",
		JWTSecret:     getenv("JWT_SECRET"),
		MySQLDSN:      getenv("MYSQL_DSN"),
		MongoURI:      getenv("MONGO_URI"),
		MongoDBName:   valueOr(getenv("MONGO_DB_NAME"), "mice"),
		CacheBackend:  valueOr(getenv("CACHE_BACKEND"), CacheMemory),
		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set in environment")
	}
	if cfg.MySQLDSN == "" {
		return nil, errors.New("MYSQL_DSN is not set in environment")
	}
	dsn, err := mysqlDSN(cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("MYSQL_DSN: %w", err)
	}
	cfg.MySQLDSN = dsn

	switch cfg.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"LOGIN_TOKEN_TTL", 7 * 24 * time.Hour, &cfg.LoginTokenTTL},
		{"DB_TIMEOUT", 3 * time.Second, &cfg.DBTimeout},
		{"CACHE_SWEEP_INTERVAL", 30 * time.Second, &cfg.CacheSweepInterval},
		{"QR_TOKEN_TTL", 60 * time.Second, &cfg.QRTokenTTL},
		{"ENTRY_MIN_DURATION", 100 * time.Millisecond, &cfg.EntryMinDuration},
	}
	for _, d := range durations {
		v, err := duration(getenv(d.key), d.def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dest = v
	}

	if cfg.QRTokenTTL <= 0 {
		return nil, errors.New("QR_TOKEN_TTL must be positive")
	}

	return cfg, nil
}

// mysqlDSN makes DATETIME columns scan into time.Time as UTC.
func mysqlDSN(raw string) (string, error) {
	c, err := drv.ParseDSN(raw)
	if err != nil {
		return "", err
	}
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN(), nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// duration accepts Go duration syntax ("90s") or a bare number of seconds.
func duration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
