package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/ebay-specifics/internal/specifics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiModel = "gemini-3-flash-preview"

// Labeler produces an unordered set of free-text labels for an image.
type Labeler interface {
	DetectLabels(ctx context.Context, imageData []byte, mimeType string) ([]string, error)
}

// Synthesizer turns detection labels into a fixed-shape attribute set.
type Synthesizer interface {
	Synthesize(ctx context.Context, labels []string) (specifics.AttributeSet, error)
}

var labelPrompt = strings.TrimSpace(dedent.Dedent(`
	Look at this image of a clothing item and list descriptive labels for it,
	the way an image labeling API would: garment type, visible colors, sleeve
	and collar characteristics, material, pattern, style.

	Respond in JSON format: {"labels": ["label", ...]}

	Respond ONLY with the JSON object, no markdown or other text.`))

var synthesisPrompt = strings.TrimSpace(dedent.Dedent(`
	Based on these image labels for a clothing item: %s

	Generate a JSON object describing the item. For each field, make an
	educated guess based on the labels and common clothing characteristics.
	Use null for any field that cannot be reasonably guessed.

	Required fields:
	{
	  "color": "the main color(s) of the item",
	  "collarType": "collar style (e.g. crew neck, v-neck, polo)",
	  "sleeveType": "sleeve style (e.g. short sleeve, long sleeve)",
	  "fit": "how the item appears to fit (e.g. regular, loose, fitted)",
	  "countryOfOrigin": "country of origin if determinable, otherwise null",
	  "style": "whether the item is blank, graphic, or embellished"
	}

	Respond ONLY with the JSON object, no additional text.`))

// GeminiAnalyzer implements both Labeler and Synthesizer using Google's
// Gemini API.
type GeminiAnalyzer struct {
	client *genai.Client
}

// NewGeminiAnalyzer creates a Gemini-based analyzer using the given API key.
func NewGeminiAnalyzer(ctx context.Context, apiKey string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAnalyzer{client: client}, nil
}

// DetectLabels implements the Labeler interface using Gemini.
func (g *GeminiAnalyzer) DetectLabels(ctx context.Context, imageData []byte, mimeType string) ([]string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(labelPrompt),
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	text := result.Text()
	log.Info().Str("response", text).Msg("gemini label response")

	labels, err := parseLabels(text)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels detected")
	}

	return labels, nil
}

// Synthesize implements the Synthesizer interface using Gemini.
func (g *GeminiAnalyzer) Synthesize(ctx context.Context, labels []string) (specifics.AttributeSet, error) {
	prompt := fmt.Sprintf(synthesisPrompt, strings.Join(labels, ", "))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	text := result.Text()
	log.Info().Str("response", text).Msg("gemini synthesis response")

	return specifics.ParseGenerated(text)
}

func parseLabels(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var resp struct {
		Labels []string `json:"labels"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse label response JSON: %w (response: %s)", err, text)
	}

	return resp.Labels, nil
}
