package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// aliasSystemPrompt constrains the model to spelling-level variants
// built from the allowed fingerspelling confusion pairs only. Anything
// outside these rules is rejected by the validator anyway, but a tight
// prompt keeps the reject rate low.
const aliasSystemPrompt = `TASK
Generate spelling-level alias variants for ASL fingerspelling, using ONLY the confusion pairs listed below.

OUTPUT (JSON ONLY)
Return an UPPERCASE JSON array of objects. No prose, no markdown. Example:
[
  {"surface":"AWS","aliases":["AW6","A W S"]}
]
Constraints:
- surface: UPPERCASE, 2-40 chars
- aliases: array of UPPERCASE strings (2-40 chars), max 50 per surface, minimum 10 per surface
- Return valid JSON only

ALLOWED CONFUSIONS (ONLY THESE)

1) Digit <-> Letter swaps
- W <-> 6
- W <-> 3
- V <-> 2
- F <-> 9
- D <-> 1
- O <-> 0

2) Compact-fist look-alikes (A / E / S / T / M / N)
- A <-> E, A <-> T    (NOT A <-> S)
- E <-> S, E <-> T, E <-> A, E <-> N, E <-> M
- T <-> A, T <-> E, T <-> M   (NOT T <-> S)
- S <-> N, S <-> T
- N <-> M

3) Orientation / mirror / pointing-finger
- H <-> U, H <-> V, H <-> 7
- R <-> U, R <-> V
- U <-> V, U <-> 7
- V <-> 7, V <-> 2

4) Circle or thumb-contact shapes
- C <-> O, C <-> 0
- D <-> 1
- O <-> 0

5) Dynamic / motion-dependent / similar shapes
- J <-> Z
- J <-> I
- Z <-> 1

STRUCTURAL EDITS
- Allow minor repetition or deletion of one character ("WW" <-> "W").
- Allow spacing/hyphenation ("AWS" -> "A W S", "A-W-S").
- Disallow any alias with edit distance > 2 from surface or length < 2.

RULES
- Apply substitutions anywhere (first/middle/last character).
- Do NOT modify any character unless it appears in the allowed lists above.
- Ignore "_" (pause); never emit it.
- Output JSON ONLY in uppercase; do not add explanations.`

// surfaceAliases is one entry of the model's JSON output.
type surfaceAliases struct {
	Surface string   `json:"surface"`
	Aliases []string `json:"aliases"`
}

// AliasGenerator proposes raw alias candidates for a batch of surface
// terms. Candidates are unvalidated; the caller scores and filters them.
type AliasGenerator interface {
	Generate(ctx context.Context, terms []string) ([]surfaceAliases, error)
}

// OpenAIGenerator implements AliasGenerator on the chat completions API.
type OpenAIGenerator struct {
	client oai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("kb: OpenAI API key must not be empty")
	}
	return &OpenAIGenerator{
		client: oai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, terms []string) ([]surfaceAliases, error) {
	batch, err := json.Marshal(terms)
	if err != nil {
		return nil, fmt.Errorf("marshal term batch: %w", err)
	}

	resp, err := g.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(aliasSystemPrompt),
			oai.UserMessage("Generate aliases for these terms:\n" + string(batch)),
		},
		Temperature: param.NewOpt(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty choices in response")
	}

	return parseAliasResponse(resp.Choices[0].Message.Content)
}

// parseAliasResponse extracts the JSON array from the model output,
// tolerating prose or markdown fences around it.
func parseAliasResponse(text string) ([]surfaceAliases, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var out []surfaceAliases
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parse alias response: %w", err)
	}
	return out, nil
}

// PlaceholderGenerator produces a spaced variant per surface. Used when
// no LLM is configured so the rest of the pipeline still runs.
type PlaceholderGenerator struct{}

func (PlaceholderGenerator) Generate(_ context.Context, terms []string) ([]surfaceAliases, error) {
	out := make([]surfaceAliases, 0, len(terms))
	for _, term := range terms {
		surface := strings.ToUpper(term)
		if len(surface) <= 2 {
			continue
		}
		out = append(out, surfaceAliases{
			Surface: surface,
			Aliases: []string{strings.Join(strings.Split(surface, ""), " ")},
		})
	}
	return out, nil
}
