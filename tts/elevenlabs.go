package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"shorts-factory/keys"
	"shorts-factory/retry"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// TTSError is stage-fatal: the job fails, the batch continues.
type TTSError struct {
	Err error
}

func (e *TTSError) Error() string { return fmt.Sprintf("tts: %v", e.Err) }
func (e *TTSError) Unwrap() error { return e.Err }

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string { return fmt.Sprintf("http %d: %s", e.Status, e.Body) }

// Client synthesizes speech through the ElevenLabs API.
type Client struct {
	rotator *keys.Rotator
	policy  retry.Policy
	voiceID string
	modelID string

	stability       float64
	similarityBoost float64

	baseURL    string
	httpClient *http.Client
}

func NewClient(rotator *keys.Rotator, policy retry.Policy, voiceID, modelID string, stability, similarityBoost float64) *Client {
	policy.Classify = classify
	return &Client{
		rotator:         rotator,
		policy:          policy,
		voiceID:         voiceID,
		modelID:         modelID,
		stability:       stability,
		similarityBoost: similarityBoost,
		baseURL:         elevenLabsBaseURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize posts text and writes the returned audio bytes to outPath.
func (c *Client) Synthesize(ctx context.Context, text, outPath string) error {
	var cred *keys.Credential

	err := retry.Run(ctx, c.policy, func(ctx context.Context) error {
		k, err := c.rotator.Acquire("elevenlabs")
		if err != nil {
			return err
		}
		cred = k

		if err := c.call(ctx, k.Secret, text, outPath); err != nil {
			return err
		}
		c.rotator.Report(k, keys.Ok)
		return nil
	}, func(err error) {
		var se *statusError
		outcome := keys.TransientOther
		if errors.As(err, &se) {
			switch se.Status {
			case http.StatusTooManyRequests:
				outcome = keys.RateLimited
			case http.StatusUnauthorized, http.StatusForbidden:
				outcome = keys.AuthFailed
			}
		}
		c.rotator.Report(cred, outcome)
	})

	if err != nil {
		return &TTSError{Err: err}
	}
	log.Printf("[tts] audio written to %s", outPath)
	return nil
}

func (c *Client) call(ctx context.Context, apiKey, text, outPath string) error {
	reqBody := synthesizeRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarityBoost,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Status: resp.StatusCode, Body: string(body)}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

// classify follows the provider contract: 429 and auth failures are
// credential faults, 5xx and transport errors retry, other 4xx are fatal.
func classify(err error) retry.Class {
	if errors.Is(err, keys.ErrNoKeyAvailable) {
		return retry.Fatal
	}
	var se *statusError
	if !errors.As(err, &se) {
		return retry.Retryable
	}
	switch {
	case se.Status == http.StatusTooManyRequests,
		se.Status == http.StatusUnauthorized,
		se.Status == http.StatusForbidden:
		return retry.CredentialFault
	case se.Status >= 500:
		return retry.Retryable
	default:
		return retry.Fatal
	}
}
