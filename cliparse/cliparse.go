package cliparse

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
)

type Config struct {
	Port         int    `envconfig:"PORT"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DatabaseType string `envconfig:"DATABASE_TYPE"`
	IPHashSalt   string `envconfig:"IP_HASH_SALT"`

	OTPTTL         time.Duration `envconfig:"OTP_TTL"`
	OTPCooldown    time.Duration `envconfig:"OTP_COOLDOWN"`
	OTPMaxAttempts int           `envconfig:"OTP_MAX_ATTEMPTS"`
	BallotTTL      time.Duration `envconfig:"BALLOT_TTL"`
	BcryptCost     int           `envconfig:"BCRYPT_COST"`

	SMTPHost        string `envconfig:"SMTP_HOST"`
	SMTPPort        int    `envconfig:"SMTP_PORT"`
	SMTPUsername    string `envconfig:"SMTP_USERNAME"`
	SMTPPassword    string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom        string `envconfig:"SMTP_FROM"`
	SMSGatewayURL   string `envconfig:"SMS_GATEWAY_URL"`
	SMSGatewayToken string `envconfig:"SMS_GATEWAY_TOKEN"`
	DevDelivery     bool   `envconfig:"DEV_DELIVERY"` // log codes instead of sending them

	DeliveryWorkers   int           `envconfig:"DELIVERY_WORKERS"`
	DeliveryQueueSize int           `envconfig:"DELIVERY_QUEUE_SIZE"`
	DeliveryTimeout   time.Duration `envconfig:"DELIVERY_TIMEOUT"`

	VerifyRateLimit float64 `envconfig:"VERIFY_RATE_LIMIT"` // requests per second per IP, 0 disables
	VerifyRateBurst int     `envconfig:"VERIFY_RATE_BURST"`

	// TrustProxyHeaders keys throttling and IP hashes on X-Forwarded-For and
	// X-Real-IP instead of the socket peer. Only set it behind a proxy that
	// overwrites those headers.
	TrustProxyHeaders bool `envconfig:"TRUST_PROXY_HEADERS"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() Config {
	return Config{
		Port:              3318,
		DatabaseType:      "sqlite",
		OTPTTL:            5 * time.Minute,
		OTPCooldown:       60 * time.Second,
		OTPMaxAttempts:    5,
		BallotTTL:         30 * time.Minute,
		BcryptCost:        10,
		SMTPPort:          587,
		DeliveryWorkers:   4,
		DeliveryQueueSize: 256,
		DeliveryTimeout:   30 * time.Second,
		VerifyRateLimit:   1,
		VerifyRateBurst:   5,
		ShutdownTimeout:   15 * time.Second,
	}
}

// LoadDotEnv copies variables from a .env file into the environment.
// Variables already set win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// FromEnv applies environment variables on top of Defaults
func FromEnv() (Config, error) {
	cfg := Defaults()
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// AddFlags registers a flag for each setting. The current values of cfg
// become the flag defaults, so flags override whatever cfg already holds.
func AddFlags(fs *pflag.FlagSet, cfg *Config) {
	// Network config
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")
	fs.StringVarP(&cfg.DatabaseURL, "database-url", "d", cfg.DatabaseURL, "Database URL")
	fs.StringVarP(&cfg.DatabaseType, "database-type", "t", cfg.DatabaseType, "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.IPHashSalt, "ip-salt", cfg.IPHashSalt, "IP hash salt (prefer env)")

	// Protocol
	fs.DurationVar(&cfg.OTPTTL, "otp-ttl", cfg.OTPTTL, "OTP lifetime")
	fs.DurationVar(&cfg.OTPCooldown, "otp-cooldown", cfg.OTPCooldown, "Minimum time between OTP requests")
	fs.IntVar(&cfg.OTPMaxAttempts, "otp-max-attempts", cfg.OTPMaxAttempts, "Wrong codes before an OTP is locked")
	fs.DurationVar(&cfg.BallotTTL, "ballot-ttl", cfg.BallotTTL, "Ballot token lifetime")

	// Delivery
	fs.StringVar(&cfg.SMTPHost, "smtp-host", cfg.SMTPHost, "SMTP server host")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", cfg.SMTPPort, "SMTP server port")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", cfg.SMTPFrom, "Sender address for OTP email")
	fs.StringVar(&cfg.SMSGatewayURL, "sms-url", cfg.SMSGatewayURL, "SMS gateway endpoint")
	fs.BoolVar(&cfg.DevDelivery, "dev-delivery", cfg.DevDelivery, "Log OTP codes instead of sending them")
	fs.IntVar(&cfg.DeliveryWorkers, "delivery-workers", cfg.DeliveryWorkers, "Concurrent delivery workers")

	fs.BoolVar(&cfg.TrustProxyHeaders, "trust-proxy", cfg.TrustProxyHeaders, "Take client IPs from X-Forwarded-For/X-Real-IP")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
}

// ParseFlags resolves the configuration from defaults, environment and args,
// in that order of increasing precedence, and validates it
func ParseFlags(args []string) (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}

	fs := pflag.NewFlagSet("ballotbox", pflag.ContinueOnError)
	AddFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateDatabase checks only what is needed to reach the database
func (c Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.DatabaseType != "sqlite" && c.DatabaseType != "postgres" {
		return fmt.Errorf("unsupported database type %q", c.DatabaseType)
	}
	return nil
}

// Validate reports the first setting that cannot work
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	// Secrets - MUST be provided
	if c.IPHashSalt == "" {
		return errors.New("IP_HASH_SALT required")
	}

	if c.OTPTTL <= 0 || c.OTPCooldown <= 0 || c.BallotTTL <= 0 {
		return errors.New("OTP_TTL, OTP_COOLDOWN and BALLOT_TTL must be positive")
	}
	if c.OTPMaxAttempts <= 0 {
		return errors.New("OTP_MAX_ATTEMPTS must be positive")
	}
	if c.DeliveryTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("DELIVERY_TIMEOUT and SHUTDOWN_TIMEOUT must be positive")
	}
	if c.VerifyRateLimit < 0 {
		return errors.New("VERIFY_RATE_LIMIT must not be negative")
	}

	if !c.DevDelivery && c.SMTPHost == "" && c.SMSGatewayURL == "" {
		return errors.New("no OTP delivery configured (set SMTP_HOST, SMS_GATEWAY_URL or DEV_DELIVERY)")
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return errors.New("SMTP_FROM required when SMTP_HOST is set")
	}

	return nil
}
