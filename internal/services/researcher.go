package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
	"github.com/MegaGrindStone/research-web-ui/internal/stream"
)

// Researcher is a client for the research backend. It forwards the conversation transcript to the
// backend and exposes the streamed answer as a sequence of decoded envelopes.
type Researcher struct {
	baseURL string
	apiKey  string

	client *http.Client

	logger *slog.Logger
}

type researchRequest struct {
	Messages []researchMessage `json:"messages"`
	Mode     string            `json:"mode"`
	Tool     string            `json:"tool,omitempty"`
	Stream   bool              `json:"stream"`
}

type researchMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const researchPath = "/api/research"

// NewResearcher creates a new Researcher talking to the backend at baseURL. The apiKey may be empty
// when the backend does not require authentication.
func NewResearcher(baseURL, apiKey string, logger *slog.Logger) Researcher {
	return Researcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "researcher")),
	}
}

// Research streams the backend's answer for a given transcript. The mode selects the research mode,
// and the tool optionally pins a specific retrieval tool; both are passed through to the backend
// untouched. It returns an iterator that yields decoded envelopes and potential errors. The context
// can be used to cancel ongoing requests. Refer to stream.Envelope for the envelope structure.
func (r Researcher) Research(
	ctx context.Context,
	messages []models.Message,
	mode string,
	tool string,
) iter.Seq2[stream.Envelope, error] {
	return func(yield func(stream.Envelope, error) bool) {
		resp, err := r.doRequest(ctx, messages, mode, tool)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(stream.Envelope{}, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		for env, err := range stream.Envelopes(resp.Body, r.logger) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield(stream.Envelope{}, fmt.Errorf("error reading response: %w", err))
				return
			}

			r.logger.Debug("Received envelope",
				slog.String("kind", string(env.Kind)),
			)

			if !yield(env, nil) {
				return
			}
		}
	}
}

func (r Researcher) doRequest(
	ctx context.Context,
	messages []models.Message,
	mode string,
	tool string,
) (*http.Response, error) {
	msgs := make([]researchMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = researchMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	reqBody := researchRequest{
		Messages: msgs,
		Mode:     mode,
		Tool:     tool,
		Stream:   true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	r.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+researchPath, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}
