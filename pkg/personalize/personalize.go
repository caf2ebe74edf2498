package personalize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/lead"
)

var (
	// ErrNoCandidates is returned when the provider answered without usable text.
	ErrNoCandidates = errors.New("completion provider returned no candidates")
	// ErrDisabled is returned by the Disabled personalizer.
	ErrDisabled = errors.New("personalization disabled")
)

// Personalizer produces the body of a confirmation email for a lead.
type Personalizer interface {
	Personalize(ctx context.Context, l lead.Lead) (string, error)
}

// ContentGenerator is the subset of *genai.Models used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GenAI struct {
	models    ContentGenerator
	model     string
	maxTokens int32
	log       *zap.SugaredLogger
}

// New returns a GenAI personalizer when cfg.Enabled, Disabled otherwise.
func New(ctx context.Context, cfg config.AI, log *zap.SugaredLogger) (Personalizer, error) {
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewGenAI(client.Models, cfg.Model, cfg.MaxOutputTokens, log), nil
}

func NewGenAI(models ContentGenerator, model string, maxTokens int, log *zap.SugaredLogger) *GenAI {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GenAI{models: models, model: model, maxTokens: int32(maxTokens), log: log.Named("personalize")} // #nosec G115 -- small config value
}

func (g *GenAI) Personalize(ctx context.Context, l lead.Lead) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = g.maxTokens
	}
	resp, err := g.models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(Prompt(l), genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("generating personalized message: %w", err)
	}
	text := firstCandidateText(resp)
	if text == "" {
		return "", ErrNoCandidates
	}
	g.log.Debugw("Generated personalized message", "industry", l.Industry, "chars", len(text))
	return text, nil
}

// firstCandidateText joins the text parts of the first candidate only.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

const systemPrompt = "You write short, friendly welcome emails for a company newsletter. " +
	"Answer with two or three plain sentences and no greeting line or signature."

// Prompt is the user prompt sent for l.
func Prompt(l lead.Lead) string {
	return fmt.Sprintf("Write a personalized welcome message for %s, who works in the %s industry. "+
		"Mention one way we can help businesses in that industry.", l.Name, l.Industry)
}

// Disabled never produces a message.
type Disabled struct{}

func (Disabled) Personalize(context.Context, lead.Lead) (string, error) { return "", ErrDisabled }
