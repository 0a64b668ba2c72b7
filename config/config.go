package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

//go:embed config.yml
var embeddedConfig []byte

// EnvPrefix is prepended to every environment override, e.g.
// SUGARVOICE_JWT_SECRETKEY overrides jwt.secretKey.
const EnvPrefix = "SUGARVOICE"

type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
	Issuer         string        `mapstructure:"issuer"`
}

type AuthConfig struct {
	BcryptCost          int           `mapstructure:"bcryptCost"`
	MaxConcurrentHashes int64         `mapstructure:"maxConcurrentHashes"`
	MaxFailedLogins     int           `mapstructure:"maxFailedLogins"`
	LockoutWindow       time.Duration `mapstructure:"lockoutWindow"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
	JWT  JWTConfig  `mapstructure:"jwt"`
	Auth AuthConfig `mapstructure:"auth"`
}

func InitConfig() (Config, error) {
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	return load(v)
}

// load applies environment overrides on top of whatever v has read, then
// unmarshals and validates.
func load(v *viper.Viper) (Config, error) {
	var config Config

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about; bind the
	// secrets explicitly so they can live in the environment alone.
	for _, key := range []string{"jwt.secretKey", "repositories.postgres.password"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate rejects settings the auth layer cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.SecretKey) == "" {
		errs = append(errs, errors.New("jwt.secretKey must be set"))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("jwt.accessTokenTTL must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcryptCost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Auth.MaxConcurrentHashes <= 0 {
		errs = append(errs, errors.New("auth.maxConcurrentHashes must be positive"))
	}
	if c.Auth.MaxFailedLogins < 0 {
		errs = append(errs, errors.New("auth.maxFailedLogins must not be negative"))
	}
	if c.Auth.MaxFailedLogins > 0 && c.Auth.LockoutWindow <= 0 {
		errs = append(errs, errors.New("auth.lockoutWindow must be positive when maxFailedLogins is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the colored development logger should be used.
func (c Config) IsDevelopment() bool {
	return c.Mode == "" || c.Mode == "development"
}
