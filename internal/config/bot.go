package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	BaseURL     string        `env:"BOT_BASE_URL" envDefault:"http://localhost:8080"`
	TenantID    string        `env:"BOT_TENANT_ID" envDefault:"sandbox"`
	PlayerID    string        `env:"BOT_PLAYER_ID" envDefault:"bot"`
	ChannelID   string        `env:"BOT_CHANNEL_ID" envDefault:"bot-channel"`
	ShellAPIKey string        `env:"SHELL_API_KEY" envDefault:""`
	Interval    time.Duration `env:"BOT_INTERVAL" envDefault:"2s"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
