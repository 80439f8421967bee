package caption

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
	"google.golang.org/api/option"
)

// maxImageBytes caps the inline image sent with a caption request.
const maxImageBytes = 20 << 20

// Generator produces the raw caption response for one asset.
type Generator interface {
	Generate(ctx context.Context, assetID string, used []int, url string) (string, error)
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type GeminiGenerator struct {
	client  *genai.Client
	model   contentGenerator
	http    *http.Client
	limiter ratelimit.Limiter
}

// NewGeminiGenerator connects to the Gemini API. rps limits caption requests
// per second; zero or less disables the limit.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, rps int) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}

	g := newGenerator(model, http.DefaultClient, rps)
	g.client = client
	return g, nil
}

func newGenerator(model contentGenerator, hc *http.Client, rps int) *GeminiGenerator {
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}
	return &GeminiGenerator{model: model, http: hc, limiter: limiter}
}

func (g *GeminiGenerator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiGenerator) Generate(ctx context.Context, assetID string, used []int, url string) (string, error) {
	img, subtype, err := g.fetchImage(ctx, url)
	if err != nil {
		return "", err
	}

	prompt := BuildPrompt(assetID, used)
	log.Debug().Str("asset_id", assetID).Ints("used_hours", used).Int("image_bytes", len(img)).Msg("Requesting caption")

	g.limiter.Take()
	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, genai.ImageData(subtype, img), genai.Text(prompt))
	if err != nil {
		log.Error().Err(err).Str("asset_id", assetID).Msg("Failed to generate caption")
		return "", fmt.Errorf("generate caption for %s: %w", assetID, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty caption response for %s", assetID)
	}

	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
	}

	log.Debug().Str("asset_id", assetID).Int("response_length", out.Len()).Dur("duration", time.Since(start)).Msg("Caption received")
	return out.String(), nil
}

// fetchImage downloads the asset and detects its image subtype (jpeg, png, ...)
// from the leading bytes.
func (g *GeminiGenerator) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download image %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image %s: %w", url, err)
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return nil, "", fmt.Errorf("detect image type: %w", err)
	}
	if !filetype.IsImage(data) {
		return nil, "", errors.New("asset at " + url + " is not an image (" + kind.Extension + ")")
	}
	return data, kind.MIME.Subtype, nil
}
