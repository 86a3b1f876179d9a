package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	config "github.com/kee711/threads-saas-sub001/configs"
)

const threadWriterPrompt = `You write short social media posts for Threads.
Keep it under 500 characters, no hashtags unless asked, match the requested tone.`

// AIService turns a user prompt into draft thread text. The model provider
// is any OpenAI-compatible chat completions endpoint.
type AIService interface {
	GenerateThread(ctx context.Context, prompt, tone string) (string, error)
}

type aiService struct {
	cfg config.Config
}

func NewAIService(cfg config.Config) AIService {
	return &aiService{cfg: cfg}
}

func (s *aiService) GenerateThread(ctx context.Context, prompt, tone string) (string, error) {
	if prompt == "" {
		err := errors.New("prompt cannot be empty")
		slog.Info(err.Error())
		return "", err
	}

	userPrompt := prompt
	if tone != "" {
		userPrompt = fmt.Sprintf("%s\n\nTone: %s", prompt, tone)
	}

	payload := map[string]interface{}{
		"model": s.cfg.AIModel,
		"messages": []map[string]string{
			{"role": "system", "content": threadWriterPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", s.cfg.AIBaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AIAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Info(fmt.Sprintf("model provider status %d: %s", resp.StatusCode, respBody))
		return "", fmt.Errorf("unexpected status code from model provider: %d", resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", errors.New("no content returned from model provider")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
