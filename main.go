package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shorts-factory/archive"
	"shorts-factory/compose"
	"shorts-factory/config"
	"shorts-factory/keys"
	"shorts-factory/llm"
	"shorts-factory/media"
	"shorts-factory/pipeline"
	"shorts-factory/retry"
	"shorts-factory/secrets"
	"shorts-factory/topics"
	"shorts-factory/tts"
	"shorts-factory/upload"
	"shorts-factory/workspace"
)

func main() {
	// Load .env (local dev only — deployments use real env or Secret Manager)
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	orch, err := build(cfg)
	if err != nil {
		log.Fatalf("Failed to assemble pipeline: %v", err)
	}

	// With PORT set we run as a service (health + trigger endpoints);
	// otherwise this is a one-shot scheduled invocation.
	if port := os.Getenv("PORT"); port != "" {
		serve(port, orch)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := orch.Run(ctx)
	if err != nil {
		log.Fatalf("Batch aborted: %v", err)
	}
	// Per-job failures are normal operation, not a process failure.
	log.Printf("Done: %d uploaded, %d failed", summary.Succeeded, summary.Failed)
}

// build wires every component from config and resolved secrets. Errors here
// are configuration errors and fatal at process start.
func build(cfg *config.Config) (*pipeline.Orchestrator, error) {
	sec := secrets.New(os.Getenv("GCP_PROJECT_ID"))

	rotator := keys.NewRotator(
		cfg.Keys.RateLimit,
		time.Duration(cfg.Keys.WindowSec)*time.Second,
		time.Duration(cfg.Keys.CooldownMin)*time.Minute,
	)

	openaiKeys, err := sec.Get("OPENAI_API_KEYS")
	if err != nil {
		return nil, err
	}
	rotator.Seed("openai", strings.Split(openaiKeys, ","))

	geminiKey, err := sec.Get("GEMINI_API_KEY")
	if err != nil {
		return nil, err
	}
	rotator.Seed("gemini", []string{geminiKey})

	elevenKey, err := sec.Get("ELEVENLABS_API_KEY")
	if err != nil {
		return nil, err
	}
	rotator.Seed("elevenlabs", []string{elevenKey})

	voiceID, err := sec.Get("ELEVENLABS_VOICE_ID")
	if err != nil {
		return nil, err
	}

	pexelsKey, err := sec.Get("PEXELS_API_KEY")
	if err != nil {
		return nil, err
	}
	rotator.Seed("pexels", []string{pexelsKey})

	ytClientID, err := sec.Get("YOUTUBE_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	ytClientSecret, err := sec.Get("YOUTUBE_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}
	ytRefreshToken, err := sec.Get("YOUTUBE_REFRESH_TOKEN")
	if err != nil {
		return nil, err
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
	}

	dispatcher := llm.NewDispatcher(
		llm.NewOpenAIBackend(rotator, policy, cfg.LLM.PrimaryModel, cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		llm.NewGeminiBackend(rotator, policy, cfg.LLM.FallbackModel, cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		cfg.LLM.PrimaryWeight,
	)

	ws, err := workspace.NewManager(cfg.Pipeline.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	return &pipeline.Orchestrator{
		Topics:    topicSource(cfg, sec),
		Scripts:   &llm.Writer{Dispatcher: dispatcher},
		Voice:     tts.NewClient(rotator, policy, voiceID, cfg.TTS.ModelID, cfg.TTS.Stability, cfg.TTS.SimilarityBoost),
		Clips:     media.NewAcquirer(rotator, policy, cfg.Media.PerPage, cfg.Media.MinDurationSec, cfg.Media.MaxDurationSec),
		Composer:  compose.New(cfg.Compose.MaxDurationSec, cfg.Compose.FontFile),
		Publisher: upload.New(ytClientID, ytClientSecret, ytRefreshToken, policy),
		Workspace: ws,
		Archive:   archive.New(os.Getenv("GCP_BUCKET_NAME")),

		TopicsPerRun: cfg.Pipeline.TopicsPerRun,
		CleanupAge:   time.Duration(cfg.Pipeline.CleanupAgeHours) * time.Hour,
		JobTimeout:   time.Duration(cfg.Pipeline.JobTimeoutMin) * time.Minute,

		CategoryID:  cfg.Upload.CategoryID,
		Privacy:     cfg.Upload.Privacy,
		MadeForKids: cfg.Upload.MadeForKids,
	}, nil
}

// topicSource picks the richest available source: news feed when a key is
// configured, reddit otherwise, seeds as the floor.
func topicSource(cfg *config.Config, sec *secrets.Provider) topics.Source {
	seed := topics.NewSeedSource(cfg.Topics.Seeds)

	if newsKey := sec.Optional("NEWS_API_KEY"); newsKey != "" {
		return topics.NewFeedSource(cfg.Topics.Query, newsKey, seed)
	}
	if cfg.Topics.Subreddit != "" {
		return topics.NewRedditSource(cfg.Topics.Subreddit, seed)
	}
	return seed
}
