package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Keys     KeysConfig     `yaml:"keys"`
	Retry    RetryConfig    `yaml:"retry"`
	LLM      LLMConfig      `yaml:"llm"`
	Topics   TopicsConfig   `yaml:"topics"`
	TTS      TTSConfig      `yaml:"tts"`
	Media    MediaConfig    `yaml:"media"`
	Compose  ComposeConfig  `yaml:"compose"`
	Upload   UploadConfig   `yaml:"upload"`
}

type PipelineConfig struct {
	TopicsPerRun    int    `yaml:"topics_per_run"`
	WorkspaceRoot   string `yaml:"workspace_root"`
	CleanupAgeHours int    `yaml:"cleanup_age_hours"`
	JobTimeoutMin   int    `yaml:"job_timeout_min"`
}

type KeysConfig struct {
	RateLimit   int `yaml:"rate_limit"`
	WindowSec   int `yaml:"window_sec"`
	CooldownMin int `yaml:"cooldown_min"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
}

type LLMConfig struct {
	PrimaryModel  string  `yaml:"primary_model"`
	FallbackModel string  `yaml:"fallback_model"`
	PrimaryWeight float64 `yaml:"primary_weight"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
}

type TopicsConfig struct {
	Query     string   `yaml:"query"`
	Subreddit string   `yaml:"subreddit"`
	Seeds     []string `yaml:"seeds"`
}

type TTSConfig struct {
	ModelID         string  `yaml:"model_id"`
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
}

type MediaConfig struct {
	PerPage        int `yaml:"per_page"`
	MinDurationSec int `yaml:"min_duration_sec"`
	MaxDurationSec int `yaml:"max_duration_sec"`
}

type ComposeConfig struct {
	MaxDurationSec int    `yaml:"max_duration_sec"`
	FontFile       string `yaml:"font_file"`
}

type UploadConfig struct {
	CategoryID  string `yaml:"category_id"`
	Privacy     string `yaml:"privacy"`
	MadeForKids bool   `yaml:"made_for_kids"`
}

// Default returns the config used when no config.yaml is present.
// Values match the free-tier budgets the pipeline is tuned for.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			TopicsPerRun:    2,
			WorkspaceRoot:   "workspace",
			CleanupAgeHours: 24,
			JobTimeoutMin:   5,
		},
		Keys: KeysConfig{
			RateLimit:   3,
			WindowSec:   60,
			CooldownMin: 30,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMs: 500,
			MaxDelayMs:  8000,
		},
		LLM: LLMConfig{
			PrimaryModel:  "gpt-4o-mini",
			FallbackModel: "gemini-1.5-flash",
			PrimaryWeight: 0.7,
			Temperature:   0.9,
			MaxTokens:     1024,
		},
		Topics: TopicsConfig{
			Query:     "technology",
			Subreddit: "technology",
			Seeds: []string{
				"The rise of AI assistants in everyday life",
				"How quantum computers actually work",
				"The race to build humanoid robots",
				"Why chip manufacturing shapes geopolitics",
				"The hidden cost of data centers",
				"How satellites deliver internet anywhere",
			},
		},
		TTS: TTSConfig{
			ModelID:         "eleven_monolingual_v1",
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		Media: MediaConfig{
			PerPage:        15,
			MinDurationSec: 55,
			MaxDurationSec: 65,
		},
		Compose: ComposeConfig{
			MaxDurationSec: 58,
			FontFile:       "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		},
		Upload: UploadConfig{
			CategoryID:  "28",
			Privacy:     "public",
			MadeForKids: false,
		},
	}
}

// Load reads config.yaml and returns a Config struct.
// A missing file is not an error: unattended deployments run on defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
