package insight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient serves completion and vision extraction. Transcription is
// handled by the whisper client; the Composite stitches them together.
type GeminiClient struct {
	client      *genai.Client
	genModel    string
	visionModel string
}

func NewGeminiClient(ctx context.Context, apiKey, genModel, visionModel string) (*GeminiClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if genModel == "" {
		genModel = "gemini-1.5-flash"
	}
	if visionModel == "" {
		visionModel = genModel
	}
	return &GeminiClient{client: cl, genModel: genModel, visionModel: visionModel}, nil
}

func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	m := g.client.GenerativeModel(g.genModel)
	if maxTokens > 0 {
		m.SetMaxOutputTokens(int32(maxTokens))
	}
	m.SetTemperature(temperature)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return firstCandidateText(resp), nil
}

// VisionExtract sends raw document or image bytes alongside an instruction.
func (g *GeminiClient) VisionExtract(ctx context.Context, data []byte, mimeType, instruction string) (string, error) {
	m := g.client.GenerativeModel(g.visionModel)

	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(instruction),
	)
	if err != nil {
		return "", fmt.Errorf("gemini vision: %w", err)
	}
	return firstCandidateText(resp), nil
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
