package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	DataDir string `mapstructure:"data_dir"`

	MaxConnections int `mapstructure:"max_connections"`
	MaxRoomMembers int `mapstructure:"max_room_members"`

	IdleThreshold time.Duration `mapstructure:"idle_threshold"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	SendBuffer int           `mapstructure:"send_buffer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "dev-secret")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("max_connections", 100)
	v.SetDefault("max_room_members", 5)
	v.SetDefault("idle_threshold", "5m")
	v.SetDefault("sweep_interval", "5m")
	v.SetDefault("stats_interval", "1m")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_buffer", 32)
	v.SetDefault("token_ttl", "24h")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
