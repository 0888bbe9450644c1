package llm

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/rbright/ari/internal/conversation"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini API backend.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Gemini streams replies through the Google genai SDK.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
}

var _ Model = (*Gemini)(nil)

// NewGemini builds a Gemini API client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	cfg.Model = strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if cfg.Model == "" {
		return nil, errors.New("llm model is empty")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, unavailable("gemini", errors.New("api key is empty"))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, unavailable("gemini", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

// Stream implements Model.
//
// A failure before the first fragment is reported as unavailable because the SDK only
// surfaces transport errors through the sequence.
func (g *Gemini) Stream(ctx context.Context, turns []conversation.Turn) (iter.Seq2[string, error], error) {
	cfg, contents := geminiContents(turns)
	if len(contents) == 0 {
		return nil, unavailable("gemini", errors.New("no contents"))
	}
	if g.cfg.Temperature > 0 {
		temperature := g.cfg.Temperature
		cfg.Temperature = &temperature
	}
	if g.cfg.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.cfg.MaxTokens)
	}

	chunks := g.client.Models.GenerateContentStream(ctx, g.cfg.Model, contents, cfg)

	return func(yield func(string, error) bool) {
		started := false
		for chunk, err := range chunks {
			if err != nil {
				if started {
					yield("", modelError("gemini", err))
				} else {
					yield("", unavailable("gemini", err))
				}
				return
			}
			fragment := geminiText(chunk)
			if fragment == "" {
				continue
			}
			started = true
			if !yield(fragment, nil) {
				return
			}
		}
	}, nil
}

// geminiContents maps turns onto Gemini roles; the system turn becomes the instruction and
// consecutive turns of one role are merged.
func geminiContents(turns []conversation.Turn) (*genai.GenerateContentConfig, []*genai.Content) {
	cfg := &genai.GenerateContentConfig{}

	var (
		contents []*genai.Content
		last     *genai.Content
	)
	for _, turn := range turns {
		if turn.Role == conversation.RoleSystem {
			if strings.TrimSpace(turn.Content) != "" {
				cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: turn.Content}}}
			}
			continue
		}

		role := "user"
		if turn.Role == conversation.RoleAssistant {
			role = "model"
		}
		part := &genai.Part{Text: turn.Content}
		if last != nil && last.Role == role {
			last.Parts = append(last.Parts, part)
			continue
		}
		last = &genai.Content{Role: role, Parts: []*genai.Part{part}}
		contents = append(contents, last)
	}
	return cfg, contents
}

func geminiText(chunk *genai.GenerateContentResponse) string {
	if chunk == nil || len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range chunk.Candidates[0].Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
