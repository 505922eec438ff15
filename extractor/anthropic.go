package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/contracts"
)

const extractionSystemPrompt = `You extract structured facets from a single user message.

Return a JSON array only, no prose. Each element is one of:
- {"type":"person","confidence":0..1,"person":{"valence":-1..1,"arousal":0..1,"need":"listen|plan|encourage|clarify|vent|unknown","intention":"vent|plan|decide|reflect|report|unknown","emotion":"...","energy":"low|neutral|high"}}
- {"type":"activity","confidence":0..1,"activity":{"action":"...","horizon":"now|today|soon|later","effort":"light|medium|deep","importance":"low|medium|high|critical","duration_minutes":0,"context":"..."}}

Only include facets the message supports. An empty array is valid.`

// AnthropicExtractor asks Claude for facets. On any failure the caller
// should fall back to an empty facet set for the turn.
type AnthropicExtractor struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	logger    zerolog.Logger
}

// NewAnthropicExtractor creates an extractor backed by the Messages API.
func NewAnthropicExtractor(apiKey, model string, logger zerolog.Logger) (*AnthropicExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicExtractor{
		client:    &client,
		model:     model,
		maxTokens: 1024,
		logger:    logger.With().Str("component", "anthropicExtractor").Logger(),
	}, nil
}

func (e *AnthropicExtractor) Extract(ctx context.Context, msg contracts.Message) (Output, error) {
	start := time.Now()

	message, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: extractionSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content.Text)),
		},
	})
	if err != nil {
		return Output{}, fmt.Errorf("anthropic extract: %w", err)
	}

	var raw string
	for _, blockUnion := range message.Content {
		if block, ok := blockUnion.AsAny().(anthropic.TextBlock); ok {
			raw = block.Text
			break
		}
	}

	facets, err := parseFacetJSON(raw, msg.ID)
	if err != nil {
		e.logger.Warn().Err(err).Str("messageID", msg.ID).Msg("unparseable extraction output")
		return Output{}, err
	}
	return Output{
		Facets: facets,
		Diagnostics: Diagnostics{
			LatencyMS: time.Since(start).Milliseconds(),
			Model:     e.model,
		},
	}, nil
}

// parseFacetJSON decodes the model's JSON array, stamps identity fields,
// and drops anything that fails contract validation.
func parseFacetJSON(raw, messageID string) ([]contracts.Facet, error) {
	raw = strings.TrimSpace(raw)
	// Tolerate fenced output.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var decoded []contracts.Facet
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("decode facets: %w", err)
	}

	facets := make([]contracts.Facet, 0, len(decoded))
	for i := range decoded {
		facet := decoded[i]
		facet.SchemaVersion = contracts.SchemaVersion
		facet.MessageID = messageID
		if facet.ID == "" {
			facet.ID = fmt.Sprintf("%s-f%d", messageID, i+1)
		}
		facet.Confidence = contracts.Clamp01(facet.Confidence)
		if err := contracts.ValidateFacet(&facet); err != nil {
			continue
		}
		facets = append(facets, facet)
	}
	return facets, nil
}
