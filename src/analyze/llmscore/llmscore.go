// Package llmscore precomputes per-message sentiment polarity with an OpenAI
// model. The scores are handed to the classifiers through analyze.Input so the
// classifiers themselves never perform I/O.
package llmscore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"rapport-agent/src/contracts"
	"rapport-agent/src/logger"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultBatchSize = 50
	maxOutputTokens  = 4000
	// Longest message text sent to the model, in runes.
	maxContentRunes = 500
)

const instructions = `You score the emotional polarity of chat messages between two people.
For every input line "<sequence_id>\t<text>" return one entry with that sequence_id and a
polarity between -1 (very negative) and 1 (very positive). 0 is neutral. Judge tone, not topic.
Sarcasm counts by its intended meaning. Return every sequence_id exactly once.`

// Client sends one structured-output request and returns the model's text.
type Client interface {
	Complete(ctx context.Context, params responses.ResponseNewParams) (string, error)
}

type openAIClient struct {
	svc *responses.ResponseService
}

func (c openAIClient) Complete(ctx context.Context, params responses.ResponseNewParams) (string, error) {
	resp, err := c.svc.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

type scoredMessage struct {
	SequenceID int     `json:"sequence_id" jsonschema:"required"`
	Polarity   float64 `json:"polarity" jsonschema:"required"`
}

type polarityResponse struct {
	Scores []scoredMessage `json:"scores" jsonschema:"required"`
}

var polaritySchema = generateSchema[polarityResponse]()

// Annotator scores messages in batches.
type Annotator struct {
	client    Client
	model     string
	batchSize int
	// Waits between attempts on rate-limit and server errors.
	backoff []time.Duration
	logger  logger.Logger
}

// New builds an Annotator backed by the OpenAI Responses API.
func New(apiKey, model string, batchSize int, log logger.Logger) *Annotator {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewWithClient(openAIClient{svc: &client.Responses}, model, batchSize, log)
}

// NewWithClient builds an Annotator on any Client.
func NewWithClient(c Client, model string, batchSize int, log logger.Logger) *Annotator {
	if model == "" {
		model = DefaultModel
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Annotator{
		client:    c,
		model:     model,
		batchSize: batchSize,
		backoff:   []time.Duration{5 * time.Second, 30 * time.Second},
		logger:    log,
	}
}

// Annotate returns polarity in [-1, 1] keyed by SequenceID. Messages the model
// skipped are absent from the map and fall back to the lexicon scorer.
func (a *Annotator) Annotate(ctx context.Context, msgs []contracts.CanonicalMessage) (map[int]float64, error) {
	out := make(map[int]float64, len(msgs))
	for start := 0; start < len(msgs); start += a.batchSize {
		end := min(start+a.batchSize, len(msgs))
		batch := msgs[start:end]

		scores, err := a.scoreBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("score messages %d-%d: %w", batch[0].SequenceID, batch[len(batch)-1].SequenceID, err)
		}

		want := make(map[int]bool, len(batch))
		for _, m := range batch {
			want[m.SequenceID] = true
		}
		for _, s := range scores {
			if !want[s.SequenceID] || math.IsNaN(s.Polarity) {
				continue
			}
			out[s.SequenceID] = math.Max(-1, math.Min(1, s.Polarity))
		}
		a.logger.Debug("[LLMScore] Scored %d/%d messages", end, len(msgs))
	}
	return out, nil
}

func (a *Annotator) scoreBatch(ctx context.Context, batch []contracts.CanonicalMessage) ([]scoredMessage, error) {
	var b strings.Builder
	for _, m := range batch {
		text := strings.ReplaceAll(m.Content, "\n", " ")
		if r := []rune(text); len(r) > maxContentRunes {
			text = string(r[:maxContentRunes])
		}
		fmt.Fprintf(&b, "%d\t%s\n", m.SequenceID, text)
	}

	params := responses.ResponseNewParams{
		Model:           a.model,
		MaxOutputTokens: openai.Int(maxOutputTokens),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(b.String(), responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "MessagePolarity",
					Schema:      polaritySchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Per-message polarity scores"),
					Type:        "json_schema",
				},
			},
		},
	}

	text, err := a.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}
	var resp polarityResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &resp); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	return resp.Scores, nil
}

func (a *Annotator) callWithRetry(ctx context.Context, params responses.ResponseNewParams) (string, error) {
	for attempt := 0; ; attempt++ {
		text, err := a.client.Complete(ctx, params)
		if err == nil {
			return text, nil
		}
		if !retryable(err) || attempt >= len(a.backoff) {
			return "", err
		}
		a.logger.Info("[LLMScore] Retrying after error (attempt %d): %v", attempt+1, err)
		select {
		case <-time.After(a.backoff[attempt]):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "too many requests", "500", "internal server error", "server_error"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	raw, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		panic(err)
	}
	strictify(schema)
	return schema
}

// strictify marks every object closed and every property required, which
// strict structured output demands.
func strictify(schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	if t, _ := schema["type"].(string); t == "object" {
		schema["additionalProperties"] = false
		required := make([]string, 0, len(props))
		for name := range props {
			required = append(required, name)
		}
		if len(required) > 0 {
			schema["required"] = required
		}
	}
	for _, p := range props {
		if m, ok := p.(map[string]any); ok {
			strictify(m)
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		strictify(items)
	}
}
