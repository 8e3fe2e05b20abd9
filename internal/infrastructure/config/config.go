package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all terminal configuration
type Config struct {
	App      AppConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Store    StoreConfig
	Backend  BackendConfig
	Checkout CheckoutConfig
	Redis    RedisConfig
	Receipt  ReceiptConfig
	S3       S3Config
	Ambient  AmbientConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Tracing bool // request spans; on unless app.tracing = false
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CSRFCookieSecure  bool
	TrustedProxies    []string
}

// StoreConfig holds the values the terminal page embeds: tax rate,
// currency and branding
type StoreConfig struct {
	TaxRate        decimal.Decimal // percent, 0..100
	CurrencySymbol string
	LogoURL        string
	BusinessName   string
}

// BackendConfig holds the sales backend connection settings
type BackendConfig struct {
	BaseURL          string
	CategoriesPath   string
	ProductsPath     string
	CompleteSalePath string
	Timeout          time.Duration
	CSRFToken        string // token embedded by the page that served the terminal, optional
	CSRFCookie       string // cookie the backend sets its token in
	BreakerFailures  uint32 // consecutive catalog failures before the breaker opens
	BreakerTimeout   time.Duration
	GetRetries       int // retries for idempotent catalog GETs only
}

// CheckoutConfig holds sale submission settings
type CheckoutConfig struct {
	PaymentMethods       []string
	DefaultPaymentMethod string
	Notes                string
	SubmitTimeout        time.Duration
	IdempotencyTTL       time.Duration
	Store                string // memory or redis
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ReceiptConfig holds receipt printing settings
type ReceiptConfig struct {
	PaperSize       string // 80mm, 58mm or A4
	PDFEnabled      bool
	ChromeRemoteURL string // remote Chrome DevTools endpoint; local Chrome when empty
	NoSandbox       bool
	Storage         string // fs or s3
	BasePath        string
	RenderTimeout   time.Duration
}

// S3Config holds S3-compatible object storage settings for archived receipts
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// AmbientConfig holds the terminal's cosmetic timers
type AmbientConfig struct {
	IdleAfter       time.Duration
	NotificationTTL time.Duration
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with POS_ prefix (e.g., POS_STORE_TAX_RATE)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; an empty path searches the
// default locations
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pos")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file: defaults and env vars only
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	taxRate, err := parseDecimal(v.GetString("store.tax_rate"))
	if err != nil {
		return nil, fmt.Errorf("store.tax_rate: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Tracing: !v.IsSet("app.tracing") || v.GetBool("app.tracing"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CSRFCookieSecure:  v.GetBool("http.csrf_cookie_secure"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Store: StoreConfig{
			TaxRate:        taxRate,
			CurrencySymbol: v.GetString("store.currency_symbol"),
			LogoURL:        v.GetString("store.logo_url"),
			BusinessName:   v.GetString("store.business_name"),
		},
		Backend: BackendConfig{
			BaseURL:          v.GetString("backend.base_url"),
			CategoriesPath:   v.GetString("backend.categories_path"),
			ProductsPath:     v.GetString("backend.products_path"),
			CompleteSalePath: v.GetString("backend.complete_sale_path"),
			Timeout:          v.GetDuration("backend.timeout"),
			CSRFToken:        v.GetString("backend.csrf_token"),
			CSRFCookie:       v.GetString("backend.csrf_cookie"),
			BreakerFailures:  v.GetUint32("backend.breaker_failures"),
			BreakerTimeout:   v.GetDuration("backend.breaker_timeout"),
			GetRetries:       v.GetInt("backend.get_retries"),
		},
		Checkout: CheckoutConfig{
			PaymentMethods:       v.GetStringSlice("checkout.payment_methods"),
			DefaultPaymentMethod: v.GetString("checkout.default_payment_method"),
			Notes:                v.GetString("checkout.notes"),
			SubmitTimeout:        v.GetDuration("checkout.submit_timeout"),
			IdempotencyTTL:       v.GetDuration("checkout.idempotency_ttl"),
			Store:                v.GetString("checkout.store"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Receipt: ReceiptConfig{
			PaperSize:       v.GetString("receipt.paper_size"),
			PDFEnabled:      v.GetBool("receipt.pdf_enabled"),
			ChromeRemoteURL: v.GetString("receipt.chrome_remote_url"),
			NoSandbox:       v.GetBool("receipt.no_sandbox"),
			Storage:         v.GetString("receipt.storage"),
			BasePath:        v.GetString("receipt.base_path"),
			RenderTimeout:   v.GetDuration("receipt.render_timeout"),
		},
		S3: S3Config{
			Endpoint:     v.GetString("s3.endpoint"),
			Region:       v.GetString("s3.region"),
			Bucket:       v.GetString("s3.bucket"),
			AccessKey:    v.GetString("s3.access_key"),
			SecretKey:    v.GetString("s3.secret_key"),
			UsePathStyle: v.GetBool("s3.use_path_style"),
		},
		Ambient: AmbientConfig{
			IdleAfter:       v.GetDuration("ambient.idle_after"),
			NotificationTTL: v.GetDuration("ambient.notification_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pos-terminal"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// long enough for a sale submission plus receipt rendering
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Store.CurrencySymbol == "" {
		cfg.Store.CurrencySymbol = "$"
	}
	if cfg.Store.BusinessName == "" {
		cfg.Store.BusinessName = "Point of Sale"
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000/"
	}
	if cfg.Backend.CategoriesPath == "" {
		cfg.Backend.CategoriesPath = "api/categories"
	}
	if cfg.Backend.ProductsPath == "" {
		cfg.Backend.ProductsPath = "api/products"
	}
	if cfg.Backend.CompleteSalePath == "" {
		cfg.Backend.CompleteSalePath = "api/sales/complete"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 15 * time.Second
	}
	if cfg.Backend.CSRFCookie == "" {
		cfg.Backend.CSRFCookie = "csrftoken"
	}
	if cfg.Backend.BreakerFailures == 0 {
		cfg.Backend.BreakerFailures = 3
	}
	if cfg.Backend.BreakerTimeout == 0 {
		cfg.Backend.BreakerTimeout = 30 * time.Second
	}
	if len(cfg.Checkout.PaymentMethods) == 0 {
		cfg.Checkout.PaymentMethods = []string{"cash", "card", "mobile"}
	}
	if cfg.Checkout.DefaultPaymentMethod == "" {
		cfg.Checkout.DefaultPaymentMethod = "cash"
	}
	if cfg.Checkout.Notes == "" {
		cfg.Checkout.Notes = "Sale Completed Successfully. Customer satisfied"
	}
	if cfg.Checkout.SubmitTimeout == 0 {
		cfg.Checkout.SubmitTimeout = 30 * time.Second
	}
	if cfg.Checkout.IdempotencyTTL == 0 {
		cfg.Checkout.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Checkout.Store == "" {
		cfg.Checkout.Store = "memory"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "pos:sale:"
	}
	if cfg.Receipt.PaperSize == "" {
		cfg.Receipt.PaperSize = "80mm"
	}
	if cfg.Receipt.Storage == "" {
		cfg.Receipt.Storage = "fs"
	}
	if cfg.Receipt.BasePath == "" {
		cfg.Receipt.BasePath = "./receipts"
	}
	if cfg.Receipt.RenderTimeout == 0 {
		cfg.Receipt.RenderTimeout = 30 * time.Second
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.Ambient.IdleAfter == 0 {
		cfg.Ambient.IdleAfter = 2 * time.Minute
	}
	if cfg.Ambient.NotificationTTL == 0 {
		cfg.Ambient.NotificationTTL = 5 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Store.TaxRate.IsNegative() || c.Store.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("store.tax_rate must be between 0 and 100, got %s", c.Store.TaxRate)
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}

	methods := map[string]bool{}
	for _, m := range c.Checkout.PaymentMethods {
		switch m {
		case "cash", "card", "mobile":
			methods[m] = true
		default:
			return fmt.Errorf("checkout.payment_methods: unsupported method %q", m)
		}
	}
	if !methods[c.Checkout.DefaultPaymentMethod] {
		return fmt.Errorf("checkout.default_payment_method %q is not one of checkout.payment_methods", c.Checkout.DefaultPaymentMethod)
	}

	switch c.Checkout.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("checkout.store must be memory or redis, got %q", c.Checkout.Store)
	}

	if c.Receipt.PDFEnabled {
		switch c.Receipt.Storage {
		case "fs":
		case "s3":
			if c.S3.Bucket == "" {
				return fmt.Errorf("s3.bucket is required when receipt.storage is s3")
			}
		default:
			return fmt.Errorf("receipt.storage must be fs or s3, got %q", c.Receipt.Storage)
		}
	}

	if c.App.Env == "production" {
		if !c.HTTP.CSRFCookieSecure {
			return fmt.Errorf("http.csrf_cookie_secure must be true in production")
		}
		if u.Scheme != "https" {
			return fmt.Errorf("backend.base_url must use https in production")
		}
	}

	return nil
}
