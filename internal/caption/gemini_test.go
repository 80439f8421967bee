package caption

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type mockModel struct {
	mock.Mock
}

func (m *mockModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, parts)
	if resp, ok := args.Get(0).(*genai.GenerateContentResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, genai.Text(t))
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func imageServer(t *testing.T, body []byte, status int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateSendsImageAndPrompt(t *testing.T) {
	srv := imageServer(t, pngHeader, http.StatusOK)
	model := &mockModel{}
	model.On("GenerateContent", mock.Anything, mock.MatchedBy(func(parts []genai.Part) bool {
		if len(parts) != 2 {
			return false
		}
		blob, ok := parts[0].(genai.Blob)
		if !ok || blob.MIMEType != "image/png" {
			return false
		}
		prompt, ok := parts[1].(genai.Text)
		return ok && strings.Contains(string(prompt), "3:00 PM")
	})).Return(textResponse("Golden hour ", "Recommended Time: 6:00 PM"), nil)

	g := newGenerator(model, srv.Client(), 0)
	out, err := g.Generate(context.Background(), "beach", []int{15}, srv.URL+"/beach.png")

	require.NoError(t, err)
	assert.Equal(t, "Golden hour Recommended Time: 6:00 PM", out)
	model.AssertExpectations(t)
}

func TestGenerateRejectsNonImage(t *testing.T) {
	srv := imageServer(t, []byte("plain text, not a picture"), http.StatusOK)
	model := &mockModel{}

	g := newGenerator(model, srv.Client(), 0)
	_, err := g.Generate(context.Background(), "notes", nil, srv.URL+"/notes.txt")

	assert.Error(t, err)
	model.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)
}

func TestGenerateDownloadFailure(t *testing.T) {
	srv := imageServer(t, nil, http.StatusNotFound)
	g := newGenerator(&mockModel{}, srv.Client(), 0)

	_, err := g.Generate(context.Background(), "gone", nil, srv.URL+"/gone.jpg")
	assert.ErrorContains(t, err, "status 404")
}

func TestGenerateServiceError(t *testing.T) {
	srv := imageServer(t, pngHeader, http.StatusOK)
	model := &mockModel{}
	model.On("GenerateContent", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

	g := newGenerator(model, srv.Client(), 5)
	_, err := g.Generate(context.Background(), "beach", nil, srv.URL+"/beach.png")

	assert.ErrorContains(t, err, "quota exceeded")
}

func TestGenerateEmptyResponse(t *testing.T) {
	srv := imageServer(t, pngHeader, http.StatusOK)
	model := &mockModel{}
	model.On("GenerateContent", mock.Anything, mock.Anything).Return(&genai.GenerateContentResponse{}, nil)

	g := newGenerator(model, srv.Client(), 0)
	_, err := g.Generate(context.Background(), "beach", nil, srv.URL+"/beach.png")

	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("summer/beach", nil)
	assert.Contains(t, p, `"summer/beach"`)
	assert.NotContains(t, p, "already taken")

	p = BuildPrompt("summer/beach", []int{0, 9, 12, 23})
	assert.Contains(t, p, "12:00 AM, 9:00 AM, 12:00 PM, 11:00 PM")
}
