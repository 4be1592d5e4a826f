// Package config loads the service configuration.
//
// LAYERS (highest priority first):
//  1. Environment variables, parsed with caarlos0/env
//  2. An optional TOML file named by CONFIG_FILE
//  3. Built-in defaults
//
// The layers are merged with mergo: a field set in a higher layer is never
// overwritten by a lower one. Because mergo treats zero values as "unset",
// an env var cannot force a field back to zero if the file or the defaults
// set it; every default in this package is chosen so that is never needed.
package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server     Server     `envPrefix:"SERVER_"     toml:"server"`
	Storage    Storage    `envPrefix:"STORAGE_"    toml:"storage"`
	Auth       Auth       `envPrefix:"AUTH_"       toml:"auth"`
	Quota      Quota      `envPrefix:"QUOTA_"      toml:"quota"`
	Classifier Classifier `envPrefix:"CLASSIFIER_" toml:"classifier"`
	Redis      Redis      `envPrefix:"REDIS_"      toml:"redis"`
	RabbitMQ   RabbitMQ   `envPrefix:"RABBITMQ_"   toml:"rabbitmq"`
	Log        Log        `envPrefix:"LOG_"        toml:"log"`

	// FilePath is read from the environment only.
	FilePath string `env:"CONFIG_FILE" toml:"-"`
}

type Server struct {
	Port            int           `env:"PORT"             toml:"port"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     toml:"read_timeout"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    toml:"write_timeout"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     toml:"idle_timeout"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" toml:"shutdown_timeout"`
}

// Addr is the listen address for net/http.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type Storage struct {
	// Driver selects the backend: "sqlite" or "mongo".
	Driver        string `env:"DRIVER"         toml:"driver"`
	SQLitePath    string `env:"SQLITE_PATH"    toml:"sqlite_path"`
	MongoURI      string `env:"MONGO_URI"      toml:"mongo_uri"`
	MongoDatabase string `env:"MONGO_DATABASE" toml:"mongo_database"`
}

type Auth struct {
	JWTSecret          string        `env:"JWT_SECRET"           toml:"jwt_secret"`
	Issuer             string        `env:"ISSUER"               toml:"issuer"`
	TokenTTL           time.Duration `env:"TOKEN_TTL"            toml:"token_ttl"`
	GitHubClientID     string        `env:"GITHUB_CLIENT_ID"     toml:"github_client_id"`
	GitHubClientSecret string        `env:"GITHUB_CLIENT_SECRET" toml:"github_client_secret"`
	GitHubCallbackURL  string        `env:"GITHUB_CALLBACK_URL"  toml:"github_callback_url"`
	CookieSecure       bool          `env:"COOKIE_SECURE"        toml:"cookie_secure"`
}

// GitHubEnabled reports whether both OAuth credentials are configured.
func (a Auth) GitHubEnabled() bool {
	return a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

type Quota struct {
	DefaultLimit      int      `env:"DEFAULT_LIMIT"       toml:"default_limit"`
	ElevatedLimit     int      `env:"ELEVATED_LIMIT"      toml:"elevated_limit"`
	PrivilegedUserIDs []string `env:"PRIVILEGED_USER_IDS" toml:"privileged_user_ids" envSeparator:","`
}

// Classifier configures the OpenAI-compatible oracle. An empty APIKey
// disables it and every unclassified snippet is saved as "Other".
type Classifier struct {
	BaseURL string        `env:"BASE_URL" toml:"base_url"`
	APIKey  string        `env:"API_KEY"  toml:"api_key"`
	Model   string        `env:"MODEL"    toml:"model"`
	Timeout time.Duration `env:"TIMEOUT"  toml:"timeout"`
}

// Redis configures the cache. An empty Addr disables caching.
type Redis struct {
	Addr        string        `env:"ADDR"         toml:"addr"`
	Password    string        `env:"PASSWORD"     toml:"password"`
	DB          int           `env:"DB"           toml:"db"`
	ListTTL     time.Duration `env:"LIST_TTL"     toml:"list_ttl"`
	ClassifyTTL time.Duration `env:"CLASSIFY_TTL" toml:"classify_ttl"`
}

// RabbitMQ configures event publication. An empty URL disables it.
type RabbitMQ struct {
	URL   string `env:"URL"   toml:"url"`
	Queue string `env:"QUEUE" toml:"queue"`
}

type Log struct {
	Level  string `env:"LEVEL"  toml:"level"`
	Format string `env:"FORMAT" toml:"format"`
	// File, when set, also writes logs to a size-rotated file.
	File string `env:"FILE" toml:"file"`
}

// Defaults returns the lowest configuration layer.
func Defaults() *Config {
	return &Config{
		Server: Server{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: Storage{
			Driver:        DriverSQLite,
			SQLitePath:    "data/snippets.db",
			MongoDatabase: "snippetvault",
		},
		Auth: Auth{
			Issuer:            "snippet-vault",
			TokenTTL:          24 * time.Hour,
			GitHubCallbackURL: "http://localhost:8080/auth/github/callback",
		},
		Quota: Quota{
			DefaultLimit:  40,
			ElevatedLimit: 75,
		},
		Classifier: Classifier{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 10 * time.Second,
		},
		Redis: Redis{
			ListTTL:     5 * time.Minute,
			ClassifyTTL: 24 * time.Hour,
		},
		RabbitMQ: RabbitMQ{
			Queue: "snippet.events",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}
