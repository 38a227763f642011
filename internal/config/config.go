package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	CORS    CORSConfig
	Cert    CertConfig
	TLS     TLSConfig
	Catalog CatalogConfig
	SMTP    SMTPConfig
}

type AppConfig struct {
	Env      string
	Port     string
	LogLevel string
}

type DBConfig struct {
	Driver   string // postgres | memory
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (d DBConfig) DSN() string {
	return "host=" + d.Host +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" port=" + d.Port +
		" sslmode=" + d.SSLMode +
		" TimeZone=UTC"
}

// URL returns the PostgreSQL connection URL (for golang-migrate)
func (d DBConfig) URL() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.Name + "?sslmode=" + d.SSLMode
}

// InMemory reports whether persistence runs without Postgres and Redis
func (d DBConfig) InMemory() bool {
	return d.Driver == "memory"
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

type CORSConfig struct {
	Origins []string
}

// CertConfig configures the local device certificate authority
type CertConfig struct {
	Enabled       bool
	CAFile        string
	CAKeyFile     string
	CACommonName  string
	Organization  string
	ForwardHeader string // set by a TLS-terminating proxy, PEM (optionally URL-escaped)
	SkipPaths     []string
}

// TLSConfig enables HTTPS with optional client certificates
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Enabled reports whether the server should listen with TLS
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

type CatalogConfig struct {
	CacheTTL time.Duration
}

// SMTPConfig configures device enrollment and revocation notices
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Enabled reports whether notices should be mailed
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// Load reads configuration from .env file and environment variables
func Load() *Config {
	// Load .env file (ignore error if not exists - e.g. in Docker)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading from environment variables")
	}

	return &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnv("APP_PORT", "8080"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "reelsync"),
			Password: getEnv("DB_PASSWORD", "reelsync"),
			Name:     getEnv("DB_NAME", "reelsync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "default-secret"),
			Expiry: getDuration("JWT_EXPIRY", 24*time.Hour),
			Issuer: getEnv("JWT_ISSUER", "reelsync"),
		},
		CORS: CORSConfig{
			Origins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		},
		Cert: CertConfig{
			Enabled:       getEnv("CERT_AUTH_ENABLED", "true") == "true",
			CAFile:        getEnv("CERT_CA_FILE", "certs/ca.crt"),
			CAKeyFile:     getEnv("CERT_CA_KEY_FILE", "certs/ca.key"),
			CACommonName:  getEnv("CERT_CA_COMMON_NAME", "ReelSync Local CA"),
			Organization:  getEnv("CERT_ORGANIZATION", "ReelSync"),
			ForwardHeader: getEnv("CERT_FORWARD_HEADER", "X-Client-Cert"),
			SkipPaths: splitList(getEnv("CERT_SKIP_PATHS",
				"/api/v1/certificates/enroll,/api/v1/auth/login,/api/v1/auth/register,/api/v1/health,/api/v1/ws,/metrics,/swagger,/docs")),
		},
		TLS: TLSConfig{
			CertFile: getEnv("TLS_CERT_FILE", ""),
			KeyFile:  getEnv("TLS_KEY_FILE", ""),
		},
		Catalog: CatalogConfig{
			CacheTTL: getDuration("CATALOG_CACHE_TTL", 10*time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "1025"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@reelsync.local"),
			FromName: getEnv("SMTP_FROM_NAME", "ReelSync"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
