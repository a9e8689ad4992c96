package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// runtime configuration, loaded from environment variables
type Config struct {
	Provider       string        // transcription provider (openai, gemini)
	Classifier     string        // text-generation provider for classification (openai, anthropic)
	OpenAIKey      string
	GeminiKey      string
	AnthropicKey   string
	ModelSize      string        // model resource tier (tiny, base, small)
	ChunkDuration  time.Duration // audio chunk length
	WindowDuration time.Duration // classification window length
	MaxDuration    time.Duration // duration ceiling enforced before processing
	ScratchDir     string        // where chunk files are materialized
	TaskRetention  time.Duration // how long terminal tasks stay pollable (0 = forever)
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Provider:       getEnv("VIDSCRIBE_PROVIDER", "openai"),
		Classifier:     getEnv("VIDSCRIBE_CLASSIFIER", "openai"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		GeminiKey:      os.Getenv("GEMINI_API_KEY"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		ModelSize:      getEnv("VIDSCRIBE_MODEL_SIZE", "tiny"),
		ChunkDuration:  getEnvSeconds("VIDSCRIBE_CHUNK_SECONDS", 20*time.Second),
		WindowDuration: getEnvSeconds("VIDSCRIBE_WINDOW_SECONDS", 120*time.Second),
		MaxDuration:    getEnvSeconds("VIDSCRIBE_MAX_DURATION_SECONDS", 5*time.Minute),
		ScratchDir:     getEnv("VIDSCRIBE_SCRATCH_DIR", os.TempDir()),
		TaskRetention:  getEnvSeconds("VIDSCRIBE_TASK_RETENTION_SECONDS", 0),
	}

	if cfg.ChunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", cfg.ChunkDuration)
	}
	if cfg.WindowDuration <= 0 {
		return nil, fmt.Errorf("window duration must be positive, got %v", cfg.WindowDuration)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}
