package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/infrastructure/resilience"
)

const (
	defaultModel      = "gemini-1.5-flash"
	defaultTimeout    = 60 * time.Second
	generateOperation = "gemini_generate"
)

type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Executor   *resilience.Executor
}

// Client reads food labels with a Gemini vision model.
type Client struct {
	models   *genai.Models
	model    string
	executor *resilience.Executor
	config   *genai.GenerateContentConfig
}

func New(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(baseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		models:   client.Models,
		model:    model,
		executor: opts.Executor,
		config: &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
		},
	}, nil
}

// ReadLabel sends the prompt and the image inline and returns the raw reply
// text. Parsing is left to the normalizer.
func (c *Client) ReadLabel(ctx context.Context, image domain.LabelImage, allergies []string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(buildLabelPrompt(allergies)),
			genai.NewPartFromBytes(image.Data, image.MimeType),
		}, genai.RoleUser),
	}

	var text string
	call := func(callCtx context.Context) error {
		resp, err := c.models.GenerateContent(callCtx, c.model, contents, c.config)
		if err != nil {
			return err
		}
		text = responseText(resp)
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, generateOperation, call, classifyGeminiError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("gemini generate", err)
	}
	return text, nil
}

// CircuitState reports the breaker state guarding model calls.
func (c *Client) CircuitState() string {
	if c.executor == nil {
		return "disabled"
	}
	return c.executor.State(generateOperation)
}

// responseText joins the text parts of every candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Candidates))
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			parts = append(parts, part.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
