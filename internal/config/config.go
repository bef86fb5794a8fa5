package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Session      SessionConfig
	Directory    DirectoryConfig
	Notification NotificationConfig
	Discord      DiscordConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	FrontendURL           string
	BackendURL            string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr selects the
// in-memory session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Format  string
	Service string
}

// AuthConfig describes the external identity provider.
type AuthConfig struct {
	ServerURL       string
	LoginURL        string
	LogoutURL       string
	Environment     string
	MinAccessRole   int
	MinAdminRole    int
	VerifyKey       string
	AllowUnverified bool
	TimeoutSeconds  int
	MentorPass      string
	BcryptCost      int
}

// SessionConfig configures the server-side session cookie.
type SessionConfig struct {
	CookieName   string
	TTLHours     int
	CookieSecure bool
}

// DirectoryConfig points at the external user directory API.
type DirectoryConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// NotificationConfig holds push and e-mail notification settings.
type NotificationConfig struct {
	GotifyURL    string
	GotifyToken  string
	EmailFrom    string
	EmailTo      string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// DiscordConfig holds OAuth client credentials for Discord linking.
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	minAccess, err := strconv.Atoi(getEnv("MIN_ACCESS_ROLE", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_ACCESS_ROLE: %w", err)
	}
	minAdmin, err := strconv.Atoi(getEnv("MIN_ADMIN_ROLE", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_ADMIN_ROLE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "mentor-queue"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			FrontendURL:           strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:6001"), "/"),
			BackendURL:            strings.TrimRight(getEnv("BACKEND_URL", "http://127.0.0.1:3001"), "/"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: getEnv("APP_NAME", "mentor-queue"),
		},
		Auth: AuthConfig{
			ServerURL:       getEnv("AUTH_SERVER_URL", "http://localhost:3000/api/sessionUser"),
			LoginURL:        getEnv("AUTH_LOGIN_URL", "http://localhost:3000/login"),
			LogoutURL:       getEnv("AUTH_LOGOUT_URL", "http://localhost:3000/api/sessionLogout"),
			Environment:     getEnv("AUTH_ENVIRONMENT", "production"),
			MinAccessRole:   minAccess,
			MinAdminRole:    minAdmin,
			VerifyKey:       os.Getenv("AUTH_VERIFY_KEY"),
			AllowUnverified: getEnvAsBool("AUTH_ALLOW_UNVERIFIED", true),
			TimeoutSeconds:  getEnvAsInt("AUTH_TIMEOUT_SECONDS", 5),
			MentorPass:      os.Getenv("MENTOR_PASS"),
			BcryptCost:      getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Session: SessionConfig{
			CookieName:   getEnv("SESSION_COOKIE_NAME", "mq_session"),
			TTLHours:     getEnvAsInt("SESSION_TTL_HOURS", 24),
			CookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", false),
		},
		Directory: DirectoryConfig{
			BaseURL:        strings.TrimRight(getEnv("DIRECTORY_API_URL", "https://apiv3.hackpsu.org"), "/"),
			TimeoutSeconds: getEnvAsInt("DIRECTORY_TIMEOUT_SECONDS", 5),
		},
		Notification: NotificationConfig{
			GotifyURL:    strings.TrimRight(getEnv("GOTIFY_URL", "https://notify.hackpsu.org"), "/"),
			GotifyToken:  os.Getenv("GOTIFY_TOKEN"),
			EmailFrom:    os.Getenv("NOTIFY_EMAIL_FROM"),
			EmailTo:      os.Getenv("NOTIFY_EMAIL_TO"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		},
		Discord: DiscordConfig{
			ClientID:     os.Getenv("DISCORD_CLIENT_ID"),
			ClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout bounds a single call to the auth server.
func (a AuthConfig) Timeout() time.Duration {
	return secondsOr(a.TimeoutSeconds, 5)
}

// Timeout bounds a single directory lookup.
func (d DirectoryConfig) Timeout() time.Duration {
	return secondsOr(d.TimeoutSeconds, 5)
}

// TTL returns the session lifetime.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.TTLHours) * time.Hour
}

func secondsOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
