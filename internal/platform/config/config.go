package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"registrar/pkg/platform/middleware/metadata"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	Environment     string        `yaml:"environment"`
	LogLevel        string        `yaml:"log_level"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies lists addresses or CIDR ranges whose forwarding headers
	// identify the client. Empty means every request is keyed on its peer address.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Auth configures token issuance and password hashing.
type Auth struct {
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	Issuer          string        `yaml:"issuer"`
	Audience        string        `yaml:"audience"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	BcryptCost      int           `yaml:"bcrypt_cost"`
}

// Database configures the Postgres connection pool.
type Database struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
	Migrate         bool          `yaml:"migrate"`
}

// RedisConfig configures the optional statistics cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	StatsTTL     time.Duration `yaml:"stats_ttl"`
}

// RateLimit bounds requests per client IP on the /auth endpoints.
type RateLimit struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Bootstrap optionally creates an admin principal at startup.
type Bootstrap struct {
	AdminEmail     string `yaml:"admin_email"`
	AdminPassword  string `yaml:"admin_password"`
	AdminFirstName string `yaml:"admin_first_name"`
	AdminLastName  string `yaml:"admin_last_name"`
}

// Config is the full application configuration.
type Config struct {
	Server    Server      `yaml:"server"`
	Auth      Auth        `yaml:"auth"`
	Database  Database    `yaml:"database"`
	Redis     RedisConfig `yaml:"redis"`
	RateLimit RateLimit   `yaml:"rate_limit"`
	Bootstrap Bootstrap   `yaml:"bootstrap"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			Environment:     EnvDevelopment,
			LogLevel:        "info",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: Auth{
			Issuer:          "student-course-api",
			Audience:        "student-course-app",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 30 * 24 * time.Hour,
			BcryptCost:      12,
		},
		Database: Database{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			TxTimeout:       5 * time.Second,
			Migrate:         true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			StatsTTL:     time.Minute,
		},
		RateLimit: RateLimit{
			Enabled:  true,
			Requests: 100,
			Window:   15 * time.Minute,
		},
		Bootstrap: Bootstrap{
			AdminFirstName: "System",
			AdminLastName:  "Admin",
		},
	}
}

// devSigningKey is only accepted in development mode.
const devSigningKey = "dev-secret-key-change-in-production"

// Load builds the configuration: defaults, then an optional YAML file named by
// REGISTRAR_CONFIG, then a .env file if present, then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("REGISTRAR_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if cfg.Auth.JWTSigningKey == "" && cfg.IsDevelopment() {
		cfg.Auth.JWTSigningKey = devSigningKey
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.Split(v, ",")
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("REGISTRAR_ADDR", &cfg.Server.Addr)
	str("APP_ENV", &cfg.Server.Environment)
	str("LOG_LEVEL", &cfg.Server.LogLevel)
	dur("REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	dur("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	list("TRUSTED_PROXIES", &cfg.Server.TrustedProxies)

	str("JWT_SIGNING_KEY", &cfg.Auth.JWTSigningKey)
	str("JWT_ISSUER", &cfg.Auth.Issuer)
	str("JWT_AUDIENCE", &cfg.Auth.Audience)
	dur("JWT_ACCESS_TTL", &cfg.Auth.AccessTokenTTL)
	dur("JWT_REFRESH_TTL", &cfg.Auth.RefreshTokenTTL)
	num("BCRYPT_COST", &cfg.Auth.BcryptCost)

	str("DATABASE_URL", &cfg.Database.URL)
	num("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	num("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	dur("DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
	dur("DB_TX_TIMEOUT", &cfg.Database.TxTimeout)
	flag("DB_MIGRATE", &cfg.Database.Migrate)

	str("REDIS_URL", &cfg.Redis.URL)
	num("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	dur("REDIS_STATS_TTL", &cfg.Redis.StatsTTL)

	flag("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	num("RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	dur("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)

	str("ADMIN_EMAIL", &cfg.Bootstrap.AdminEmail)
	str("ADMIN_PASSWORD", &cfg.Bootstrap.AdminPassword)

	return errors.Join(errs...)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Server.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("environment must be %q or %q", EnvDevelopment, EnvProduction))
	}
	if _, err := metadata.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Auth.JWTSigningKey) == "" {
		errs = append(errs, errors.New("JWT signing key is required"))
	}
	if !c.IsDevelopment() && c.Auth.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("development JWT signing key is not allowed outside development"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.Auth.RefreshTokenTTL < c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("refresh token TTL must not be shorter than access token TTL"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, errors.New("bcrypt cost must be between 4 and 31"))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("database max open connections must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate limit requests and window must be positive"))
	}
	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		errs = append(errs, errors.New("admin bootstrap needs both email and password"))
	}
	return errors.Join(errs...)
}
