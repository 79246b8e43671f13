package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Name         string        `mapstructure:"name"`
	SSLMode      string        `mapstructure:"sslmode"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	TxTimeout    time.Duration `mapstructure:"tx_timeout"`
}

// DSN builds the postgres connection URL. A positive QueryTimeout is sent
// as the session statement_timeout.
func (d DatabaseConfig) DSN() string {
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	if d.QueryTimeout > 0 {
		q.Set("statement_timeout", fmt.Sprint(d.QueryTimeout.Milliseconds()))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

type IdentityConfig struct {
	VerifyTimeout time.Duration `mapstructure:"verify_timeout"`
}

type DeliveryConfig struct {
	StrictTransitions bool `mapstructure:"strict_transitions"`
}

type S3Config struct {
	Enabled          bool          `mapstructure:"enabled"`
	Bucket           string        `mapstructure:"bucket"`
	Region           string        `mapstructure:"region"`
	AccessKeyID      string        `mapstructure:"access_key_id"`
	SecretAccessKey  string        `mapstructure:"secret_access_key"`
	CloudFrontDomain string        `mapstructure:"cloudfront_domain"`
	UploadTimeout    time.Duration `mapstructure:"upload_timeout"`
}

type EmailConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	From        string        `mapstructure:"from"`
	Region      string        `mapstructure:"region"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Identity IdentityConfig `mapstructure:"identity"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	S3       S3Config       `mapstructure:"s3"`
	Email    EmailConfig    `mapstructure:"email"`
	Log      LogConfig      `mapstructure:"log"`
}

const devSecret = "default_super_secret_key"

var envBindings = map[string]string{
	"server.port":            "PORT",
	"server.mode":            "GIN_MODE",
	"server.request_timeout": "SERVER_REQUEST_TIMEOUT",
	"server.cors_origins":    "CORS_ORIGINS",

	"database.host":          "DB_HOST",
	"database.port":          "DB_PORT",
	"database.user":          "DB_USER",
	"database.password":      "DB_PASSWORD",
	"database.name":          "DB_NAME",
	"database.sslmode":       "DB_SSLMODE",
	"database.query_timeout": "DB_QUERY_TIMEOUT",
	"database.tx_timeout":    "DB_TX_TIMEOUT",

	"jwt.secret":      "JWT_SECRET",
	"jwt.issuer":      "JWT_ISSUER",
	"jwt.access_ttl":  "JWT_ACCESS_TTL",
	"jwt.refresh_ttl": "JWT_REFRESH_TTL",

	"identity.verify_timeout": "IDENTITY_VERIFY_TIMEOUT",

	"delivery.strict_transitions": "DELIVERY_STRICT_TRANSITIONS",

	"s3.enabled":           "S3_ENABLED",
	"s3.bucket":            "S3_BUCKET",
	"s3.region":            "S3_REGION",
	"s3.access_key_id":     "S3_ACCESS_KEY_ID",
	"s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
	"s3.cloudfront_domain": "S3_CLOUDFRONT_DOMAIN",
	"s3.upload_timeout":    "S3_UPLOAD_TIMEOUT",

	"email.enabled":      "SES_ENABLED",
	"email.from":         "SES_FROM_EMAIL",
	"email.region":       "SES_AWS_REGION",
	"email.send_timeout": "SES_SEND_TIMEOUT",

	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.query_timeout", 5*time.Second)
	v.SetDefault("database.tx_timeout", 10*time.Second)

	v.SetDefault("jwt.secret", devSecret)
	v.SetDefault("jwt.issuer", "supplychain")
	v.SetDefault("jwt.access_ttl", 24*time.Hour)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)

	v.SetDefault("identity.verify_timeout", 2*time.Second)

	v.SetDefault("delivery.strict_transitions", false)

	v.SetDefault("s3.upload_timeout", 20*time.Second)

	v.SetDefault("email.region", "eu-central-1")
	v.SetDefault("email.send_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads config.yaml from path and overrides it with environment
// variables. A .env file next to it is loaded first when present. A missing
// config file is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	_ = godotenv.Load(path + "/.env")

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return cfg, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that are unsafe to serve with
func (c Config) Validate() error {
	if c.Server.Mode == "release" && (c.JWT.Secret == "" || c.JWT.Secret == devSecret) {
		return errors.New("JWT_SECRET is required in release mode")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt ttl values must be positive")
	}
	if len(c.Server.CORSOrigins) == 0 {
		return errors.New("server.cors_origins must list at least one origin")
	}
	if c.Database.TxTimeout <= 0 {
		return errors.New("database.tx_timeout must be positive")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return errors.New("s3.bucket is required when s3 is enabled")
	}
	if c.Email.Enabled && c.Email.From == "" {
		return errors.New("email.from is required when email is enabled")
	}
	return nil
}
