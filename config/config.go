package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/chess-arena/utils"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL        string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecretKey       string `env:"JWT_SECRET_KEY,required,notEmpty"`
	ServerPort         int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	DrawPolicy string `env:"DRAW_POLICY" envDefault:"replay"`
	ByePolicy  string `env:"BYE_POLICY" envDefault:"none"`

	Archive ArchiveConfig `envPrefix:"ARCHIVE_"`
}

// ArchiveConfig описывает S3-совместимое хранилище архивов. Пустой Bucket
// отключает архивирование.
type ArchiveConfig struct {
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"auto"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL"`
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Ошибку не считаем фатальной: .env нужен только локально.
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment as it is, without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.DrawPolicy {
	case "replay", "white_advances":
	default:
		errs = append(errs, fmt.Errorf("DRAW_POLICY must be replay or white_advances, got %q", c.DrawPolicy))
	}
	switch c.ByePolicy {
	case "none", "advance":
	default:
		errs = append(errs, fmt.Errorf("BYE_POLICY must be none or advance, got %q", c.ByePolicy))
	}
	if c.Archive.Enabled() && (c.Archive.AccessKeyID == "" || c.Archive.SecretAccessKey == "") {
		errs = append(errs, errors.New("ARCHIVE_ACCESS_KEY_ID and ARCHIVE_SECRET_ACCESS_KEY are required when ARCHIVE_BUCKET is set"))
	}
	if len(c.AllowedOrigins()) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must list at least one origin"))
	}

	return errors.Join(errs...)
}

func (c *Config) AllowedOrigins() []string {
	return utils.SplitCSV(c.CORSAllowedOrigins)
}

// SlogLevel переводит LOG_LEVEL в slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
