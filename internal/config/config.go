package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DiscordConfig — gateway settings.
type DiscordConfig struct {
	Token  string `env:"DISCORD_TOKEN,required"`
	Prefix string `env:"COMMAND_PREFIX" envDefault:"!"`
}

// MindConfig — context memory caps and pressure thresholds.
type MindConfig struct {
	MaxEmbarrassingMoments int     `env:"MIND_MAX_MOMENTS" envDefault:"50"`
	MaxCodeSnippetsPerUser int     `env:"MIND_MAX_SNIPPETS_PER_USER" envDefault:"20"`
	MaxRunningGags         int     `env:"MIND_MAX_GAGS" envDefault:"30"`
	MaxSummarizedFacts     int     `env:"MIND_MAX_FACTS" envDefault:"50"`
	HeapWarnMB             float64 `env:"MIND_HEAP_WARN_MB" envDefault:"256"`
	HeapCriticalMB         float64 `env:"MIND_HEAP_CRITICAL_MB" envDefault:"512"`
}

// RoastConfig — decision engine knobs.
type RoastConfig struct {
	BaseChance      float64 `env:"ROAST_BASE_CHANCE" envDefault:"0.4"`
	MaxChance       float64 `env:"ROAST_MAX_CHANCE" envDefault:"0.9"`
	EnforceCooldown bool    `env:"ROAST_ENFORCE_COOLDOWN" envDefault:"true"`
}

// Config is the full application profile, parsed from the environment and
// validated at construction.
type Config struct {
	Discord         DiscordConfig
	Mind            MindConfig
	Roast           RoastConfig
	AIProvider      string `env:"AI_PROVIDER" envDefault:"pollinations"`
	PersonalityPath string `env:"PERSONALITY_PATH" envDefault:"data/personality.json"`
}

// New loads .env (when present), parses the environment and validates.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] no .env file found, using system environment")
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range values before anything is constructed.
func (c *Config) Validate() error {
	if c.Mind.MaxEmbarrassingMoments <= 0 || c.Mind.MaxCodeSnippetsPerUser <= 0 ||
		c.Mind.MaxRunningGags <= 0 || c.Mind.MaxSummarizedFacts <= 0 {
		return fmt.Errorf("mind caps must be positive")
	}
	if c.Mind.HeapCriticalMB <= c.Mind.HeapWarnMB {
		return fmt.Errorf("MIND_HEAP_CRITICAL_MB must exceed MIND_HEAP_WARN_MB")
	}
	if c.Roast.BaseChance < 0.2 || c.Roast.BaseChance > 0.7 {
		return fmt.Errorf("ROAST_BASE_CHANCE must be within [0.2, 0.7], got %.2f", c.Roast.BaseChance)
	}
	if c.Roast.MaxChance <= 0 || c.Roast.MaxChance > 1 {
		return fmt.Errorf("ROAST_MAX_CHANCE must be within (0, 1], got %.2f", c.Roast.MaxChance)
	}
	return nil
}
