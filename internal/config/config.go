package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the web process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	Gateway GatewayConfig
	Session SessionConfig
	Crypto  CryptoConfig
	DB      DBConfig
	Redis   RedisConfig
	SQLite  SQLiteConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type GatewayConfig struct {
	BaseURL       string
	Timeout       time.Duration
	DirectTimeout time.Duration

	// Services maps a legacy backend name to its base URL.
	// Direct calls are only allowed to these hosts.
	Services map[string]string
}

// Session store backends.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type SessionConfig struct {
	Store        string
	Secret       string
	CookieName   string
	TTL          time.Duration
	RememberTTL  time.Duration
	CookieSecure bool
}

type CryptoConfig struct {
	// EncryptionKey is 64 hex characters (32 bytes, AES-256).
	EncryptionKey string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	// URL (redis://...) overrides Host, Port, Password and DB when set.
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

const (
	defaultGatewayURL     = "http://localhost:3000"
	defaultLegacyServices = "appointments=http://localhost:3003,users=http://localhost:3001"

	// Development-only key shared with the backend's dev profile.
	devEncryptionKey = "a1b2c3d4e5f6789012345678901234567890abcdef1234567890abcdef123456"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Gateway.BaseURL = strings.TrimSpace(os.Getenv("GATEWAY_BASE_URL"))
	c.Gateway.Timeout = mustDuration("GATEWAY_TIMEOUT")
	c.Gateway.DirectTimeout = mustDuration("GATEWAY_DIRECT_TIMEOUT")
	{
		raw, ok := os.LookupEnv("LEGACY_SERVICE_URLS")
		if !ok {
			raw = defaultLegacyServices
		}
		services, err := parseServices(raw)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Gateway.Services = services
	}

	c.Session.Store = strings.TrimSpace(os.Getenv("SESSION_STORE"))
	c.Session.Secret = os.Getenv("SESSION_SECRET")
	c.Session.CookieName = strings.TrimSpace(os.Getenv("SESSION_COOKIE_NAME"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Session.TTL = mustDuration("SESSION_TTL")
	c.Session.RememberTTL = mustDuration("SESSION_REMEMBER_TTL")
	c.Session.CookieSecure = strings.EqualFold(strings.TrimSpace(os.Getenv("SESSION_COOKIE_SECURE")), "true")

	c.Crypto.EncryptionKey = strings.TrimSpace(os.Getenv("ENCRYPTION_KEY"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := optionalInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.URL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.SQLite.Path = strings.TrimSpace(os.Getenv("SQLITE_PATH"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks c and fills in defaults. It is called by Load.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = defaultGatewayURL
	}
	if err := validateBaseURL("GATEWAY_BASE_URL", c.Gateway.BaseURL); err != nil {
		errs = append(errs, err)
	}
	c.Gateway.BaseURL = strings.TrimRight(c.Gateway.BaseURL, "/")
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 30 * time.Second
	}
	if c.Gateway.DirectTimeout <= 0 {
		c.Gateway.DirectTimeout = 10 * time.Second
	}
	for name, base := range c.Gateway.Services {
		if err := validateBaseURL("LEGACY_SERVICE_URLS["+name+"]", base); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "hf_session"
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Session.RememberTTL <= 0 {
		c.Session.RememberTTL = 30 * 24 * time.Hour
	}
	if c.Session.RememberTTL < c.Session.TTL {
		errs = append(errs, errors.New("SESSION_REMEMBER_TTL must not be shorter than SESSION_TTL"))
	}
	if c.Session.Store == "" {
		c.Session.Store = StoreRedis
	}
	switch c.Session.Store {
	case StoreRedis:
		if c.Redis.URL != "" {
			if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
				errs = append(errs, fmt.Errorf("REDIS_URL must use redis:// or rediss://, got %q", c.Redis.URL))
			}
			break
		}
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST or REDIS_URL is required for the redis session store"))
		}
		if c.Redis.Port == 0 {
			c.Redis.Port = 6379
		}
		if c.Redis.Port < 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	case StorePostgres:
		errs = append(errs, c.validateDB()...)
	case StoreSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = "hospital_frontend.sqlite3"
		}
	case StoreMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("SESSION_STORE=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be one of redis, postgres, sqlite, memory, got %q", c.Session.Store))
	}

	if c.Crypto.EncryptionKey == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("ENCRYPTION_KEY is required in production"))
		} else {
			c.Crypto.EncryptionKey = devEncryptionKey
		}
	}
	if c.Crypto.EncryptionKey != "" {
		if b, err := hex.DecodeString(c.Crypto.EncryptionKey); err != nil || len(b) != 32 {
			errs = append(errs, errors.New("ENCRYPTION_KEY must be 64 hex characters (32 bytes)"))
		}
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.Port < 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ServiceNames returns the configured legacy service names in sorted order.
func (c Config) ServiceNames() []string {
	out := make([]string, 0, len(c.Gateway.Services))
	for name := range c.Gateway.Services {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

// parseServices reads "name=url,name=url".
func parseServices(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, base, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		base = strings.TrimSpace(base)
		if !ok || name == "" || base == "" {
			return nil, fmt.Errorf("LEGACY_SERVICE_URLS entry must be name=url, got %q", part)
		}
		out[name] = strings.TrimRight(base, "/")
	}
	return out, nil
}

func validateBaseURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
