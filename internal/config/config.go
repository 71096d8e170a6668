package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver   string
		Path     string
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int32
	}
	Auth struct {
		JWTSecret     string
		RefreshSecret string
		Issuer        string
		AccessTTL     time.Duration
		RefreshTTL    time.Duration
		BcryptCost    int
		HashWorkers   int
	}
	Revocation struct {
		Backend       string
		PurgeInterval time.Duration
	}
	Redis struct {
		Addr      string
		Password  string
		DB        int
		KeyPrefix string
	}
	Log struct {
		Level  string
		Format string
	}
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BackendDatabase = "database"
	BackendRedis    = "redis"
)

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("TODOLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/todolist.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "todolist")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxconns", 10)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.refreshsecret", "")
	v.SetDefault("auth.issuer", "todolist")
	v.SetDefault("auth.accessttl", 15*time.Minute)
	v.SetDefault("auth.refreshttl", 7*24*time.Hour)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("auth.hashworkers", 0)
	v.SetDefault("revocation.backend", BackendDatabase)
	v.SetDefault("revocation.purgeinterval", time.Hour)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyprefix", "todolist:revoked:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwtsecret is required"))
	}
	if strings.TrimSpace(c.Auth.RefreshSecret) == "" {
		errs = append(errs, errors.New("auth.refreshsecret is required"))
	}
	if c.Auth.JWTSecret != "" && c.Auth.JWTSecret == c.Auth.RefreshSecret {
		errs = append(errs, errors.New("auth.jwtsecret and auth.refreshsecret must differ"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("auth token lifetimes must be positive"))
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		errs = append(errs, errors.New("auth.accessttl must be shorter than auth.refreshttl"))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("database.host and database.name are required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Revocation.Backend {
	case BackendDatabase:
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis revocation backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown revocation.backend %q", c.Revocation.Backend))
	}

	return errors.Join(errs...)
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
