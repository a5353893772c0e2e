package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spigell/resume-tailor/internal/gateway"
	"github.com/spigell/resume-tailor/internal/vectorstore/qdrant"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-tailor"
)

type Config struct {
	Gemini    *GeminiConfig   `mapstructure:"gemini"`
	Gateway   gateway.Config  `mapstructure:"gateway"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Intent    IntentConfig    `mapstructure:"intent"`
	Qdrant    qdrant.Config   `mapstructure:"qdrant"`
}

type GeminiConfig struct {
	APIKey              string `mapstructure:"api-key"`
	APIKeyFile          string `mapstructure:"api-key-file"`
	Model               string `mapstructure:"model"`
	EmbeddingModel      string `mapstructure:"embedding-model"`
	EmbeddingDimensions int    `mapstructure:"embedding-dimensions"`
	MaxLogLength        int    `mapstructure:"max-log-length"`
}

type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider"`
	BatchSize         int           `mapstructure:"batch-size"`
	RetryDelay        time.Duration `mapstructure:"retry-delay"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute"`
}

type RetrievalConfig struct {
	TopK         int `mapstructure:"top-k"`
	ChunkSize    int `mapstructure:"chunk-size"`
	ChunkOverlap int `mapstructure:"chunk-overlap"`
	MinJobLength int `mapstructure:"min-job-length"`
}

type SessionsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type IntentConfig struct {
	Mode string `mapstructure:"mode"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-tailor analyzes a job description and tailors a resume to it with retrieved context",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}
	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-tailor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	gw := gateway.DefaultConfig()

	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.embedding-model", "gemini-embedding-001")
	viper.SetDefault("gemini.embedding-dimensions", 768)
	viper.SetDefault("gemini.max-log-length", 200)

	viper.SetDefault("gateway.max-retries", gw.MaxRetries)
	viper.SetDefault("gateway.base-delay", gw.BaseDelay)
	viper.SetDefault("gateway.multiplier", gw.Multiplier)
	viper.SetDefault("gateway.jitter", gw.Jitter)
	viper.SetDefault("gateway.max-rate-limit-wait", gw.MaxRateLimitWait)
	viper.SetDefault("gateway.context-budget", gw.ContextBudget)
	viper.SetDefault("gateway.timeout", gw.Timeout)
	viper.SetDefault("gateway.max-log-length", gw.MaxLogLength)

	viper.SetDefault("embedding.provider", embeddingProviderGemini)
	viper.SetDefault("embedding.batch-size", 100)
	viper.SetDefault("embedding.retry-delay", 500*time.Millisecond)

	viper.SetDefault("retrieval.top-k", 5)
	viper.SetDefault("retrieval.chunk-size", 1000)
	viper.SetDefault("retrieval.chunk-overlap", 200)
	viper.SetDefault("retrieval.min-job-length", 50)

	viper.SetDefault("sessions.ttl", 2*time.Hour)
	viper.SetDefault("intent.mode", "model")

	viper.SetDefault("qdrant.address", "localhost:6334")
	viper.SetDefault("qdrant.collection", "resume_tailor_chunks")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so a missing config file is fine unless
	// it was requested explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
