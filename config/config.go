package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is loaded once at startup from environment variables.
type Config struct {
	Port           string   `env:"PORT" envDefault:"5000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,required" envSeparator:","`
	PostgresURL    string   `env:"POSTGRES_URL,required"`
	TriviaBaseURL  string   `env:"TRIVIA_API_URL" envDefault:"https://opentdb.com/api.php"`
	QuestionAmount int      `env:"QUESTION_AMOUNT" envDefault:"30"`
	Debug          bool     `env:"DEBUG" envDefault:"false"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
