package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Booking       BookingConfig       `mapstructure:"booking"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" validate:"required"`
}

// SecurityConfig only carries the verification half of the JWT pair; sessions are issued elsewhere.
type SecurityConfig struct {
	JWTPublicKey string `mapstructure:"jwt_public_key" validate:"required"`
	JWTIssuer    string `mapstructure:"jwt_issuer"`
	CronKey      string `mapstructure:"cron_key" validate:"required,min=16"`
}

type PaymentConfig struct {
	Provider         string        `mapstructure:"provider" validate:"required"`
	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	ClientID         string        `mapstructure:"client_id" validate:"required"`
	PartnerID        string        `mapstructure:"partner_id" validate:"required"`
	ChannelID        string        `mapstructure:"channel_id" validate:"required"`
	MerchantID       string        `mapstructure:"merchant_id"`
	StoreID          string        `mapstructure:"store_id"`
	TerminalID       string        `mapstructure:"terminal_id"`
	PartnerServiceID string        `mapstructure:"partner_service_id"`
	Currency         string        `mapstructure:"currency" validate:"required,len=3"`
	SigningScheme    string        `mapstructure:"signing_scheme" validate:"required,oneof=rsa hmac"`
	PrivateKey       string        `mapstructure:"private_key" validate:"required"`
	ProviderKey      string        `mapstructure:"provider_public_key" validate:"required"`
	ClientSecret     string        `mapstructure:"client_secret" validate:"required_if=SigningScheme hmac"`
	LegacyUserID     string        `mapstructure:"legacy_user_id"`
	LegacyPassword   string        `mapstructure:"legacy_password"`
	CallbackURL      string        `mapstructure:"callback_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	NotifyPath       string        `mapstructure:"notify_path"`
	VAInquiryPath    string        `mapstructure:"va_inquiry_path"`
	VAPaymentPath    string        `mapstructure:"va_payment_path"`
}

type BookingConfig struct {
	HoldGrace      time.Duration `mapstructure:"hold_grace"`
	VAExpiryGrace  time.Duration `mapstructure:"va_expiry_grace"`
	SweepWorkers   int           `mapstructure:"sweep_workers" validate:"min=0,max=64"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size" validate:"min=0"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

const (
	DefaultHoldGrace      = 15 * time.Minute
	DefaultVAExpiryGrace  = 5 * time.Minute
	DefaultGatewayTimeout = 15 * time.Second
	DefaultSweepWorkers   = 4
	DefaultSweepBatchSize = 200
)

// ApplyDefaults fills the zero values the file or environment left unset.
func (c *Config) ApplyDefaults() {
	if c.Booking.HoldGrace <= 0 {
		c.Booking.HoldGrace = DefaultHoldGrace
	}
	if c.Booking.VAExpiryGrace <= 0 {
		c.Booking.VAExpiryGrace = DefaultVAExpiryGrace
	}
	if c.Booking.SweepWorkers <= 0 {
		c.Booking.SweepWorkers = DefaultSweepWorkers
	}
	if c.Booking.SweepBatchSize <= 0 {
		c.Booking.SweepBatchSize = DefaultSweepBatchSize
	}
	if c.Payment.Timeout <= 0 {
		c.Payment.Timeout = DefaultGatewayTimeout
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "IDR"
	}
	if c.Payment.NotifyPath == "" {
		c.Payment.NotifyPath = "/v1.0/qr/qr-mpm-notify"
	}
	if c.Payment.VAInquiryPath == "" {
		c.Payment.VAInquiryPath = "/v1.0/transfer-va/inquiry"
	}
	if c.Payment.VAPaymentPath == "" {
		c.Payment.VAPaymentPath = "/v1.0/transfer-va/payment"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// ----------------- ENV LOADING -----------------

func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("HTTP_BASE_URL", ""),
			AllowedOrigins:    getEnv("HTTP_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			JWTPublicKey: getEnv("JWT_PUBLIC_KEY", ""),
			JWTIssuer:    getEnv("JWT_ISSUER", ""),
			CronKey:      getEnv("CRON_KEY", ""),
		},
		Payment: PaymentConfig{
			Provider:         getEnv("PAYMENT_PROVIDER", "pakailink"),
			BaseURL:          getEnv("PAYMENT_BASE_URL", ""),
			ClientID:         getEnv("PAYMENT_CLIENT_ID", ""),
			PartnerID:        getEnv("PAYMENT_PARTNER_ID", ""),
			ChannelID:        getEnv("PAYMENT_CHANNEL_ID", ""),
			MerchantID:       getEnv("PAYMENT_MERCHANT_ID", ""),
			StoreID:          getEnv("PAYMENT_STORE_ID", ""),
			TerminalID:       getEnv("PAYMENT_TERMINAL_ID", ""),
			PartnerServiceID: getEnv("PAYMENT_PARTNER_SERVICE_ID", ""),
			Currency:         getEnv("PAYMENT_CURRENCY", "IDR"),
			SigningScheme:    getEnv("PAYMENT_SIGNING_SCHEME", "rsa"),
			PrivateKey:       getEnv("PAYMENT_PRIVATE_KEY", ""),
			ProviderKey:      getEnv("PAYMENT_PROVIDER_PUBLIC_KEY", ""),
			ClientSecret:     getEnv("PAYMENT_CLIENT_SECRET", ""),
			LegacyUserID:     getEnv("PAYMENT_LEGACY_USER_ID", ""),
			LegacyPassword:   getEnv("PAYMENT_LEGACY_PASSWORD", ""),
			CallbackURL:      getEnv("PAYMENT_CALLBACK_URL", ""),
			Timeout:          getEnvAsDuration("PAYMENT_TIMEOUT", DefaultGatewayTimeout),
			NotifyPath:       getEnv("PAYMENT_NOTIFY_PATH", ""),
			VAInquiryPath:    getEnv("PAYMENT_VA_INQUIRY_PATH", ""),
			VAPaymentPath:    getEnv("PAYMENT_VA_PAYMENT_PATH", ""),
		},
		Booking: BookingConfig{
			HoldGrace:      getEnvAsDuration("BOOKING_HOLD_GRACE", DefaultHoldGrace),
			VAExpiryGrace:  getEnvAsDuration("BOOKING_VA_EXPIRY_GRACE", DefaultVAExpiryGrace),
			SweepWorkers:   getEnvAsInt("BOOKING_SWEEP_WORKERS", DefaultSweepWorkers),
			SweepBatchSize: getEnvAsInt("BOOKING_SWEEP_BATCH_SIZE", DefaultSweepBatchSize),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New()

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if _, err := c.GetPublicKey(); err != nil {
		return fmt.Errorf("invalid JWT public key: %w", err)
	}
	return nil
}

func (c *SecurityConfig) GetPublicKey() (*rsa.PublicKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(c.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}

func (c *PaymentConfig) Validate() error {
	for name, path := range map[string]string{
		"notify_path":     c.NotifyPath,
		"va_inquiry_path": c.VAInquiryPath,
		"va_payment_path": c.VAPaymentPath,
	} {
		if path != "" && !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with /", name)
		}
	}
	if (c.LegacyUserID == "") != (c.LegacyPassword == "") {
		return errors.New("legacy_user_id and legacy_password must be set together")
	}
	return nil
}

// DecodePEM accepts either raw PEM text or its base64 encoding, the latter being how keys travel in env vars.
func DecodePEM(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "-----BEGIN") {
		return []byte(trimmed), nil
	}
	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return data, nil
}
