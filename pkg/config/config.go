package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

// ConfigPathEnv overrides the default config file location.
const ConfigPathEnv = "LEADFORM_CONFIG_PATH"

// publicEnvPrefixes are prefixes that bundlers and hosting platforms expose to the
// browser. Server-side secrets must never be supplied through them.
var publicEnvPrefixes = []string{"PUBLIC_", "VITE_", "NEXT_PUBLIC_", "REACT_APP_"}

// secretEnvNames lists the variables carrying server-side credentials.
var secretEnvNames = []string{
	"LEADFORM_MAIL_PASSWORD",
	"LEADFORM_MAIL_API_KEY",
	"LEADFORM_AI_API_KEY",
	"LEADFORM_JWT_SECRET",
}

type Server struct {
	ListenAddress  string   `yaml:"listenAddress" env:"LEADFORM_LISTEN_ADDRESS"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRS to trust for X-Forwarded-For headers
	// AllowedOrigins enables CORS on the intake API for forms embedded on other sites.
	AllowedOrigins []string `yaml:"allowedOrigins"`
	// ShutdownTimeout bounds graceful shutdown (e.g. "15s").
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

type Frontend struct {
	// Dir holds the static form page. Empty disables static serving.
	Dir          string `yaml:"dir" env:"LEADFORM_FRONTEND_DIR"`
	BaseURL      string `yaml:"baseURL"`
	BrandingName string `yaml:"brandingName"`
}

// Store locates the persistence store. URL and Key are the two client values of the
// hosted data API; Key is the publishable (anon) key, row-level policies do the gating.
type Store struct {
	Driver  string `yaml:"driver" env:"LEADFORM_STORE_DRIVER" validate:"omitempty,oneof=memory sqlite rest"`
	URL     string `yaml:"url" env:"LEADFORM_STORE_URL"`
	Key     string `yaml:"key" env:"LEADFORM_STORE_KEY"`
	Table   string `yaml:"table"`
	DSN     string `yaml:"dsn" env:"LEADFORM_SQLITE_DSN"`
	Timeout string `yaml:"timeout"`
}

type Notify struct {
	// Mode is "local" (in-process service), "remote" (call URL) or "disabled".
	Mode string `yaml:"mode" env:"LEADFORM_NOTIFY_MODE" validate:"omitempty,oneof=local remote disabled"`
	URL  string `yaml:"url" env:"LEADFORM_NOTIFY_URL"`
	// AllowedOrigins is the CORS allow-list of the notification endpoint. AllowedOrigin
	// is merged into it and exists so a single origin can come from the environment.
	AllowedOrigins  []string `yaml:"allowedOrigins"`
	AllowedOrigin   string   `yaml:"allowedOrigin" env:"LEADFORM_ALLOWED_ORIGIN"`
	Subject         string   `yaml:"subject"`
	FallbackMessage string   `yaml:"fallbackMessage"`
	Timeout         string   `yaml:"timeout"`
}

type Mail struct {
	// Provider is "smtp", "api" or "log".
	Provider           string `yaml:"provider" env:"LEADFORM_MAIL_PROVIDER" validate:"omitempty,oneof=smtp api log"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password" env:"LEADFORM_MAIL_PASSWORD"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	APIURL             string `yaml:"apiURL"`
	APIKey             string `yaml:"apiKey" env:"LEADFORM_MAIL_API_KEY"`
	SenderAddress      string `yaml:"senderAddress" validate:"omitempty,email"`
	SenderName         string `yaml:"senderName"`
}

type AI struct {
	Enabled         bool   `yaml:"enabled" env:"LEADFORM_AI_ENABLED"`
	Model           string `yaml:"model"`
	APIKey          string `yaml:"apiKey" env:"LEADFORM_AI_API_KEY"`
	MaxOutputTokens int    `yaml:"maxOutputTokens"`
	Timeout         string `yaml:"timeout"`
}

type Auth struct {
	JWTSecret string `yaml:"jwtSecret" env:"LEADFORM_JWT_SECRET"`
	JWKSURL   string `yaml:"jwksURL"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Audit struct {
	Log   bool   `yaml:"log"`
	Kafka *Kafka `yaml:"kafka"`
}

type Session struct {
	TTL        string `yaml:"ttl"`
	CookieName string `yaml:"cookieName"`
}

type RateLimit struct {
	SubmitRate  float64 `yaml:"submitRate"`
	SubmitBurst int     `yaml:"submitBurst"`
}

// Tracing configures OpenTelemetry spans around submissions and confirmations.
type Tracing struct {
	Enabled bool `yaml:"enabled" env:"LEADFORM_TRACING_ENABLED"`
	// Exporter is "otlp", "stdout" or "none".
	Exporter     string  `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Frontend  Frontend  `yaml:"frontend"`
	Store     Store     `yaml:"store"`
	Notify    Notify    `yaml:"notify"`
	Mail      Mail      `yaml:"mail"`
	AI        AI        `yaml:"ai"`
	Auth      Auth      `yaml:"auth"`
	Audit     Audit     `yaml:"audit"`
	Session   Session   `yaml:"session"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Tracing   Tracing   `yaml:"tracing"`
}

// Load reads the YAML file, applies environment overrides (a local .env file is
// honoured), fills defaults and validates the result.
// If configPath is empty, LEADFORM_CONFIG_PATH and then "./config.yaml" are tried;
// a missing default file is not an error so the service can run from env alone.
func Load(configPath ...string) (Config, error) {
	var config Config

	path := ""
	explicit := false
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
		explicit = true
	} else if p := os.Getenv(ConfigPathEnv); p != "" {
		path = p
		explicit = true
	} else {
		path = "./config.yaml"
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &config); err != nil {
			return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return config, fmt.Errorf("trying to open leadform config file %s: %w", path, err)
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	if err := checkPublicSecrets(os.Environ()); err != nil {
		return config, err
	}
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return config, fmt.Errorf("reading environment overrides: %w", err)
	}

	config.Defaults()
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Defaults fills unset values.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Frontend.BrandingName == "" {
		c.Frontend.BrandingName = "Leadform"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
		if c.Store.URL != "" {
			c.Store.Driver = "rest"
		}
	}
	if c.Store.Table == "" {
		c.Store.Table = "leads"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "leads.db"
	}
	if c.Store.Timeout == "" {
		c.Store.Timeout = "10s"
	}
	if c.Notify.Mode == "" {
		c.Notify.Mode = "local"
		if c.Notify.URL != "" {
			c.Notify.Mode = "remote"
		}
	}
	if c.Notify.AllowedOrigin != "" {
		for _, o := range strings.Split(c.Notify.AllowedOrigin, ",") {
			o = strings.TrimSpace(o)
			if o != "" && !lo.Contains(c.Notify.AllowedOrigins, o) {
				c.Notify.AllowedOrigins = append(c.Notify.AllowedOrigins, o)
			}
		}
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = "Thanks for your interest, {{ .Name }}"
	}
	if c.Notify.FallbackMessage == "" {
		c.Notify.FallbackMessage = DefaultFallbackMessage
	}
	if c.Notify.Timeout == "" {
		c.Notify.Timeout = "20s"
	}
	if c.Mail.Provider == "" {
		c.Mail.Provider = "log"
		if c.Mail.Host != "" {
			c.Mail.Provider = "smtp"
		} else if c.Mail.APIKey != "" {
			c.Mail.Provider = "api"
		}
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.APIURL == "" {
		c.Mail.APIURL = "https://api.resend.com"
	}
	if c.Mail.SenderAddress == "" {
		c.Mail.SenderAddress = "noreply@example.com"
	}
	if c.Mail.SenderName == "" {
		c.Mail.SenderName = c.Frontend.BrandingName
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash"
	}
	if c.AI.MaxOutputTokens == 0 {
		c.AI.MaxOutputTokens = 300
	}
	if c.AI.Timeout == "" {
		c.AI.Timeout = "10s"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "30m"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "leadform_session"
	}
	if c.RateLimit.SubmitRate == 0 {
		c.RateLimit.SubmitRate = 1
	}
	if c.RateLimit.SubmitBurst == 0 {
		c.RateLimit.SubmitBurst = 5
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "otlp"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1
	}
}

// DefaultFallbackMessage is sent when no personalized message could be generated.
const DefaultFallbackMessage = "Thank you for signing up! We received your details and will be in touch shortly with information tailored to your industry."

var validate = validator.New()

// Validate checks struct tags and the rules tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid leadform config: %w", err)
	}
	for _, o := range append(append([]string{}, c.Notify.AllowedOrigins...), c.Server.AllowedOrigins...) {
		if strings.TrimSpace(o) == "*" {
			return fmt.Errorf("invalid leadform config: wildcard origin %q is not allowed, list origins explicitly", o)
		}
	}
	if c.Store.Driver == "rest" && (c.Store.URL == "" || c.Store.Key == "") {
		return fmt.Errorf("invalid leadform config: store driver rest requires store.url and store.key (LEADFORM_STORE_URL, LEADFORM_STORE_KEY)")
	}
	if c.Notify.Mode == "remote" && c.Notify.URL == "" {
		return fmt.Errorf("invalid leadform config: notify mode remote requires notify.url")
	}
	if c.Mail.Provider == "api" && c.Mail.APIKey == "" {
		return fmt.Errorf("invalid leadform config: mail provider api requires an API key (LEADFORM_MAIL_API_KEY)")
	}
	if c.Mail.Provider == "smtp" && c.Mail.Host == "" {
		return fmt.Errorf("invalid leadform config: mail provider smtp requires mail.host")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("invalid leadform config: ai.enabled requires an API key (LEADFORM_AI_API_KEY)")
	}
	for _, d := range []string{c.Server.ShutdownTimeout, c.Store.Timeout, c.Notify.Timeout, c.AI.Timeout, c.Session.TTL} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid leadform config: duration %q: %w", d, err)
		}
	}
	return nil
}

// checkPublicSecrets refuses credentials supplied through client-exposed variables.
func checkPublicSecrets(environ []string) error {
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		for _, prefix := range publicEnvPrefixes {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			for _, secret := range secretEnvNames {
				if strings.TrimPrefix(name, prefix) == secret {
					return fmt.Errorf("refusing %s: credentials must come from the server-side variable %s", name, secret)
				}
			}
		}
	}
	return nil
}

// Duration parses a duration setting, falling back to def when empty or malformed.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// PublicConfig is the subset of configuration that may be handed to the browser.
type PublicConfig struct {
	StoreURL     string `json:"storeURL,omitempty"`
	StoreKey     string `json:"storeKey,omitempty"`
	NotifyURL    string `json:"notifyURL,omitempty"`
	BrandingName string `json:"brandingName"`
}

// Public returns the browser-safe configuration. Secrets never appear here.
func (c Config) Public() PublicConfig {
	return PublicConfig{
		StoreURL:     c.Store.URL,
		StoreKey:     c.Store.Key,
		NotifyURL:    c.Notify.URL,
		BrandingName: c.Frontend.BrandingName,
	}
}
