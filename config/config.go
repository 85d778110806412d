// Package config loads application settings from a JSON file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"social_media_agent/generator"
)

// ErrInvalid wraps every load or validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

const envPrefix = "SMA"

// Config holds the whole application configuration.
type Config struct {
	LLM        LLMConfig   `mapstructure:"llm"`
	ServerAddr string      `mapstructure:"server_addr"`
	DataDir    string      `mapstructure:"data_dir" validate:"required"`
	Auth       AuthConfig  `mapstructure:"auth"`
	Redis      RedisConfig `mapstructure:"redis"`
}

// LLMConfig 描述模型服务与候选模型顺序。
type LLMConfig struct {
	Provider       string        `mapstructure:"provider" validate:"required,oneof=groq openai mock"`
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string        `mapstructure:"api_key" validate:"required_unless=Provider mock"`
	Models         []string      `mapstructure:"models" validate:"required,min=1,dive,required"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"gte=0"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gte=0"`
}

// RedisConfig is optional; an empty Addr keeps history in DataDir.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// UsersPath and HistoryPath are the JSON documents under DataDir.
func (c Config) UsersPath() string   { return filepath.Join(c.DataDir, "users.json") }
func (c Config) HistoryPath() string { return filepath.Join(c.DataDir, "history.json") }

// Load reads path (optional when it does not exist), then .env, then the
// environment. Keys map to SMA_<SECTION>_<KEY>; GROQ_API_KEY is also accepted
// for llm.api_key and SMA_LLM_MODELS takes a comma-separated list.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("%w: load .env: %v", ErrInvalid, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", envPrefix+"_LLM_API_KEY", "GROQ_API_KEY")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: stat %s: %v", ErrInvalid, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode: %v", ErrInvalid, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.models", generator.DefaultModels)
	v.SetDefault("llm.attempt_timeout", "60s")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("data_dir", "data")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
