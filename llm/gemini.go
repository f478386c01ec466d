package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"shorts-factory/keys"
	"shorts-factory/retry"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiBackend generates text through the Gemini REST API. The fallback pool
// is usually a single key, but it goes through the rotator like every other
// credential.
type GeminiBackend struct {
	rotator    *keys.Rotator
	policy     retry.Policy
	model      string
	temp       float64
	maxTok     int
	baseURL    string
	httpClient *http.Client
}

func NewGeminiBackend(rotator *keys.Rotator, policy retry.Policy, model string, temperature float64, maxTokens int) *GeminiBackend {
	policy.Classify = classifyGemini
	return &GeminiBackend{
		rotator:    rotator,
		policy:     policy,
		model:      model,
		temp:       temperature,
		maxTok:     maxTokens,
		baseURL:    geminiBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *GeminiBackend) Name() string { return "gemini" }

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	var cred *keys.Credential

	err := retry.Run(ctx, b.policy, func(ctx context.Context) error {
		c, err := b.rotator.Acquire("gemini")
		if err != nil {
			return err
		}
		cred = c

		text, err := b.call(ctx, c.Secret, prompt)
		if err != nil {
			return err
		}
		b.rotator.Report(c, keys.Ok)
		out = text
		return nil
	}, func(err error) {
		var se *statusError
		status := 0
		if errors.As(err, &se) {
			status = se.Status
		}
		b.rotator.Report(cred, outcomeForStatus(status))
	})

	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	log.Printf("[llm] gemini produced %d bytes", len(out))
	return out, nil
}

func (b *GeminiBackend) call(ctx context.Context, key, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{
			Temperature:     b.temp,
			MaxOutputTokens: b.maxTok,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", b.baseURL, b.model, key)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{Status: resp.StatusCode, Body: truncate(string(respBytes), 200)}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("parse gemini response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func classifyGemini(err error) retry.Class {
	if errors.Is(err, keys.ErrNoKeyAvailable) {
		return retry.Fatal
	}
	return classifyStatus(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
