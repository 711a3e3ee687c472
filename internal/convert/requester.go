// Package convert packages normalized content into a request to the AI
// conversion service and validates the structured response. The service
// speaks the OpenAI-compatible chat API; the base URL is configurable so
// a Gemini-compatible endpoint works unchanged.
package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"reactify-service/internal/entity"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 120 * time.Second

	// maxPromptChars bounds the serialized tree to keep requests under
	// the model's input limit.
	maxPromptChars = 60000
)

var ErrAPIKeyNotSet = errors.New("conversion API key not set")

// Requester invokes the AI conversion service. It performs a single
// logical attempt per call; retrying is the processor's job.
type Requester struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

type Option func(*Requester)

func WithModel(model string) Option {
	return func(r *Requester) { r.model = model }
}

func WithTimeout(timeout time.Duration) Option {
	return func(r *Requester) { r.timeout = timeout }
}

func NewRequester(apiKey, baseURL string, opts ...Option) (*Requester, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	r := &Requester{
		client:  openai.NewClient(clientOpts...),
		model:   DefaultModel,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Convert sends the normalized tree and parses the generated components.
// Failures map onto the pipeline taxonomy: transport and 5xx are
// ServiceUnavailable (retryable), 429 is QuotaExceeded, schema
// violations are InvalidResponse.
func (r *Requester) Convert(ctx context.Context, content *entity.NormalizedContent, opts entity.ConversionOptions) (*entity.ConversionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt, err := buildPrompt(content, opts)
	if err != nil {
		return nil, entity.NewPipelineError(entity.StageConvert, entity.ErrInternal, err)
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.7),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	}

	completion, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, entity.NewPipelineError(entity.StageConvert, entity.ErrInvalidResponse,
			errors.New("no completion choices returned"))
	}

	result, err := ParseResult(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func classifyAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return entity.NewPipelineError(entity.StageConvert, entity.ErrServiceUnavailable, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return entity.NewPipelineError(entity.StageConvert, entity.ErrQuotaExceeded, err)
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return entity.NewPipelineError(entity.StageConvert, entity.ErrAccessDenied, err)
		case apiErr.StatusCode >= 500:
			return entity.NewPipelineError(entity.StageConvert, entity.ErrServiceUnavailable, err)
		default:
			return entity.NewPipelineError(entity.StageConvert, entity.ErrInvalidResponse, err)
		}
	}
	return entity.NewPipelineError(entity.StageConvert, entity.ErrServiceUnavailable, err)
}

func buildPrompt(content *entity.NormalizedContent, opts entity.ConversionOptions) (string, error) {
	tree, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	treeStr := string(tree)
	if len(treeStr) > maxPromptChars {
		cut := maxPromptChars
		for cut > 0 && !utf8.RuneStart(treeStr[cut]) {
			cut--
		}
		treeStr = treeStr[:cut] + `…"truncated":true}`
	}

	opts = opts.WithDefaults()
	ts := "TypeScript"
	if opts.TypeScript != nil && !*opts.TypeScript {
		ts = "JavaScript"
	}

	return fmt.Sprintf(`Convert this normalized page structure into %s React components for %s using %s styling.

IMPORTANT: Return ONLY a valid JSON object, no markdown code blocks or extra text.

PAGE STRUCTURE:
%s

Return a JSON object with this exact structure:
{
  "components": {
    "ComponentName": {
      "tsx": "complete component source",
      "css": "stylesheet source",
      "types": "type definitions"
    }
  },
  "index": "export statements",
  "dependencies": ["react"],
  "notes": ["optimization or accessibility notes"]
}`, ts, opts.Framework, opts.Styling, treeStr), nil
}
