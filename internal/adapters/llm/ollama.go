// Package llm provides the Ollama generation adapter.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var _ ports.LLMService = (*OllamaLLMAdapter)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "mistral"
	DefaultTimeout = 300 * time.Second

	maxLineSize = 1 << 20
)

// OllamaLLMAdapter implements ports.LLMService using the Ollama generate API.
type OllamaLLMAdapter struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string, timeout time.Duration) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaLLMAdapter{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Model returns the generation model name.
func (a *OllamaLLMAdapter) Model() string {
	return a.model
}

// ollamaGenerateRequest is the Ollama generate API request.
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse is one Ollama generate API response object.
// Response is a pointer so a line without the field can be told apart from an empty delta.
type ollamaGenerateResponse struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
	Error    string  `json:"error"`
}

func (a *OllamaLLMAdapter) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	jsonData, err := json.Marshal(ollamaGenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Stream: stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp, nil
}

// Generate blocks until the backend returns the full answer.
// Every failure is reported as *entities.UpstreamError.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.post(ctx, prompt, false)
	if err != nil {
		return "", &entities.UpstreamError{Op: "generate", Err: err}
	}
	defer resp.Body.Close()

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", &entities.UpstreamError{Op: "generate", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if genResp.Error != "" {
		return "", &entities.UpstreamError{Op: "generate", Err: errors.New(genResp.Error)}
	}
	if genResp.Response == nil {
		return "", nil
	}
	return *genResp.Response, nil
}

// GenerateStream streams the answer as it is produced.
//
// The returned channel carries text records in arrival order followed by exactly
// one terminal record (done or error), and is then closed. Connection and status
// failures arrive as an error record too. Cancelling ctx stops the producer; the
// terminal record is then delivered only if the consumer is still receiving.
func (a *OllamaLLMAdapter) GenerateStream(ctx context.Context, prompt string) <-chan entities.StreamRecord {
	ch := make(chan entities.StreamRecord, 16)

	go func() {
		defer close(ch)

		terminal := a.stream(ctx, prompt, ch)
		if ctx.Err() != nil {
			select {
			case ch <- terminal:
			default:
			}
			return
		}
		ch <- terminal
	}()

	return ch
}

// stream pumps text records into ch and returns the terminal record.
func (a *OllamaLLMAdapter) stream(ctx context.Context, prompt string, ch chan<- entities.StreamRecord) entities.StreamRecord {
	fail := func(err error) entities.StreamRecord {
		log.Warn().Err(err).Str("model", a.model).Msg("generation stream failed")
		return entities.StreamRecord{Kind: entities.RecordError, Err: &entities.UpstreamError{Op: "stream", Err: err}}
	}

	resp, err := a.post(ctx, prompt, true)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fail(fmt.Errorf("decoding stream line: %w", err))
		}
		if chunk.Error != "" {
			return fail(errors.New(chunk.Error))
		}

		if chunk.Response != nil {
			select {
			case ch <- entities.StreamRecord{Kind: entities.RecordText, Text: *chunk.Response}:
			case <-ctx.Done():
				return entities.StreamRecord{Kind: entities.RecordError, Err: ctx.Err()}
			}
		}

		if chunk.Done {
			return entities.StreamRecord{Kind: entities.RecordDone}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return entities.StreamRecord{Kind: entities.RecordError, Err: ctx.Err()}
		}
		return fail(fmt.Errorf("reading stream: %w", err))
	}
	return entities.StreamRecord{Kind: entities.RecordDone}
}
