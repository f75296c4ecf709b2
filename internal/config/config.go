package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	SUKL      SUKLConfig
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	LogLevel       string `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type OpenAIConfig struct {
	APIKey              string `mapstructure:"api_key"`
	EmbeddingModel      string `mapstructure:"embedding_model"`
	EmbeddingDimensions int    `mapstructure:"embedding_dimensions"`
	TextModel           string `mapstructure:"text_model"`
	VisionModel         string `mapstructure:"vision_model"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type RateLimitConfig struct {
	TextPerMinute  int `mapstructure:"text_per_minute"`
	ImagePerMinute int `mapstructure:"image_per_minute"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
}

type SUKLConfig struct {
	DataDir string `mapstructure:"data_dir"`
	DataURL string `mapstructure:"data_url"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("pillsee")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("database.sslmode", "require")
	viper.SetDefault("openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("openai.embedding_dimensions", 512)
	viper.SetDefault("openai.text_model", "gpt-4o-mini")
	viper.SetDefault("openai.vision_model", "gpt-4-vision-preview")
	viper.SetDefault("ratelimit.text_per_minute", 10)
	viper.SetDefault("ratelimit.image_per_minute", 5)
	viper.SetDefault("security.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("security.max_body_bytes", 15<<20)
	viper.SetDefault("sukl.data_dir", "data")
	viper.SetDefault("sukl.data_url", "https://opendata.sukl.cz/")
}

// Validate checks settings the service cannot run without.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		return fmt.Errorf("database.host and database.name are required")
	}
	return nil
}
