package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"UD_referral_program/internal/notify"
	"UD_referral_program/internal/ratelimit"
	"UD_referral_program/internal/repository"
	"UD_referral_program/internal/scheduler"
	"UD_referral_program/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"

	configFileEnv = "APP_CONFIG_FILE"
)

type Config struct {
	Database repository.Config     `mapstructure:"database"`
	Server   ServerConfig          `mapstructure:"server"`
	Redis    ratelimit.RedisConfig `mapstructure:"redis"`

	TelegramAuth TelegramAuthConfig `mapstructure:"telegramAuth"`

	Cron     CronConfig            `mapstructure:"cron"`
	Notify   notify.Config         `mapstructure:"notify"`
	Referral service.ProgramConfig `mapstructure:"referral"`

	LogLevel string `mapstructure:"logLevel" validate:"oneof=debug info warn error"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	TrustedProxies  []string      `mapstructure:"trustedProxies" validate:"dive,cidr|ip"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string `mapstructure:"telegramBotToken"`
	DebugMode        bool   `mapstructure:"debugMode"`
}

type CronConfig struct {
	Secret           string `mapstructure:"secret"`
	scheduler.Config `mapstructure:",squash"`
}

// Keys only ever supplied through the environment have to be known to viper
// for Unmarshal to see them.
var envOnlyKeys = []string{
	"database.password",
	"redis.addr",
	"redis.password",
	"telegramAuth.telegramBotToken",
	"cron.secret",
	"notify.botToken",
	"notify.chatId",
	"referral.salt",
	"referral.linkBaseUrl",
}

func LoadConfig() (*Config, error) {
	v := viper.New()

	if file := os.Getenv(configFileEnv); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(configPath)
		v.SetConfigType(configFormat)
	}

	return loadConfig(v)
}

func loadConfig(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range envOnlyKeys {
		v.SetDefault(key, "")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()

	// mapstructure merges slices element by element; a configured tier
	// table replaces the defaults instead.
	if v.IsSet("referral.tiers") {
		cfg.Referral.Tiers = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Database: repository.Config{
			Port:            "5432",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Cron:     CronConfig{Config: scheduler.DefaultConfig()},
		Referral: service.DefaultProgramConfig(),
		LogLevel: "info",
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(struct {
		Database repository.Config
		Server   ServerConfig
		LogLevel string `validate:"oneof=debug info warn error"`
	}{c.Database, c.Server, c.LogLevel}); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := c.Referral.Validate(); err != nil {
		return err
	}

	return nil
}
