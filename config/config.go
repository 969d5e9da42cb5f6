package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const minSigningKeyLength = 32

// Config is the process configuration, read from the environment
type Config struct {
	SigningKey string        `env:"AUTH_SIGNING_KEY,required,unset" json:"-"`
	Issuer     string        `env:"AUTH_ISSUER" json:"issuer"`
	TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h" json:"token_ttl"`
	OTPTTL     time.Duration `env:"AUTH_OTP_TTL" envDefault:"10m" json:"otp_ttl"`
	ResetTTL   time.Duration `env:"AUTH_RESET_TTL" envDefault:"30m" json:"reset_ttl"`
	ResetURL   string        `env:"AUTH_RESET_URL" envDefault:"http://localhost:3000/forgetpassword/changepassword" json:"reset_url"`
	BcryptCost int           `env:"AUTH_BCRYPT_COST" envDefault:"12" json:"bcrypt_cost"`

	HTTPAddr    string   `env:"HTTP_ADDR" envDefault:":8080" json:"http_addr"`
	CORSOrigins []string `env:"HTTP_CORS_ORIGINS" envDefault:"http://localhost:3000" envSeparator:"," json:"cors_origins"`

	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"file:auth.db?cache=shared" json:"database_dsn"`

	MailDriver      string `env:"MAIL_DRIVER" envDefault:"log" json:"mail_driver"`
	MailFrom        string `env:"SMTP_FROM" json:"mail_from"`
	SMTPHost        string `env:"SMTP_HOST" json:"smtp_host"`
	SMTPPort        int    `env:"SMTP_PORT" envDefault:"587" json:"smtp_port"`
	SMTPUsername    string `env:"SMTP_USERNAME" json:"smtp_username"`
	SMTPPassword    string `env:"SMTP_PASSWORD" json:"-"`
	SendGridAPIKey  string `env:"SENDGRID_API_KEY" json:"-"`
	SendGridSandbox bool   `env:"SENDGRID_SANDBOX" json:"sendgrid_sandbox"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" json:"log_level"`
	LogPretty bool   `env:"LOG_PRETTY" json:"log_pretty"`
	Debug     bool   `env:"DEBUG" json:"debug"`
}

// Load parses the process environment
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses values instead of the process environment
func LoadFrom(values map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Environment: values,
	})
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate fails on settings that would only surface at request time
func (c Config) Validate() error {
	if len(c.SigningKey) < minSigningKeyLength {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes", minSigningKeyLength)
	}

	if c.TokenTTL <= 0 || c.OTPTTL <= 0 || c.ResetTTL <= 0 {
		return fmt.Errorf("token, otp and reset ttl must be positive")
	}

	switch strings.ToLower(c.MailDriver) {
	case "smtp", "sendgrid", "log":
	default:
		return fmt.Errorf("MAIL_DRIVER must be one of smtp, sendgrid, log: got %q", c.MailDriver)
	}

	return nil
}

func (c Config) GetSigningKey() string      { return c.SigningKey }
func (c Config) GetIssuer() string          { return c.Issuer }
func (c Config) GetTokenTTL() time.Duration { return c.TokenTTL }
func (c Config) GetOTPTTL() time.Duration   { return c.OTPTTL }
func (c Config) GetResetTTL() time.Duration { return c.ResetTTL }
func (c Config) GetResetURL() string        { return c.ResetURL }
func (c Config) GetBcryptCost() int         { return c.BcryptCost }
func (c Config) GetMailDriver() string      { return c.MailDriver }
func (c Config) GetMailFrom() string        { return c.MailFrom }
func (c Config) GetSMTPHost() string        { return c.SMTPHost }
func (c Config) GetSMTPPort() int           { return c.SMTPPort }
func (c Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c Config) GetSendGridAPIKey() string  { return c.SendGridAPIKey }
func (c Config) GetSendGridSandbox() bool   { return c.SendGridSandbox }
func (c Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c Config) GetDatabaseDSN() string     { return c.DatabaseDSN }
