// Package enrich sends extracted contract text to Gemini and normalizes
// the response into typed contract metadata. The model is asked for JSON
// but nothing guarantees it returns any, so parsing is defensive: a
// response that cannot be decoded degrades to defaults plus the raw text
// instead of failing the ingestion.
package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/api/option"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
)

// Term is one clause extracted from the document.
type Term struct {
	Clause      string `json:"clause"`
	Description string `json:"description"`
}

// ContractMetadata is the normalized result of one enrichment call.
// Unrecognized response fields are carried in Extra so nothing the model
// returns is silently dropped.
type ContractMetadata struct {
	Title          string         `json:"title"`
	Parties        []string       `json:"parties"`
	EffectiveDate  string         `json:"effective_date"`
	ExpirationDate string         `json:"expiration_date"`
	Terms          []Term         `json:"terms"`
	Status         string         `json:"status"`
	Platform       string         `json:"platform"`
	Extra          map[string]any `json:"-"`
}

// UnstructuredError reports a response that could not be decoded. Raw keeps
// the model output so the caller can still surface something to the user.
type UnstructuredError struct {
	Raw string
	Err error
}

func (e *UnstructuredError) Error() string {
	return fmt.Sprintf("enrichment response is not structured: %v", e.Err)
}

func (e *UnstructuredError) Unwrap() error { return e.Err }

func (e *UnstructuredError) Is(target error) bool {
	return target == apperrors.ErrUnstructuredResponse
}

// TextGenerator abstracts the model call so tests run without the network.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

const cacheSize = 256

// Adapter wraps a TextGenerator with prompt construction, defensive
// parsing and a result memo. It never retries on its own: the external
// call is billed, so retry policy belongs to the caller.
type Adapter struct {
	gen   TextGenerator
	cache *lru.Cache[string, ContractMetadata]
}

// NewAdapter creates an enrichment adapter over the given generator.
func NewAdapter(gen TextGenerator) *Adapter {
	cache, _ := lru.New[string, ContractMetadata](cacheSize)
	return &Adapter{gen: gen, cache: cache}
}

const promptTemplate = `You are a contract analysis assistant. Extract the contract details
from the following document text and return them strictly as one JSON object with the fields:
"title" (string), "parties" (array of strings), "effective_date" (string),
"expiration_date" (string), "terms" (array of {"clause", "description"}),
"status" (one of "Active", "Draft", "Expired", "Unknown"), "platform" (string).
Give the detail exactly in JSON format, no commentary.

Document text:
%s`

// Enrich sends the text to the model and returns normalized metadata.
// A transport failure or timeout is returned as-is; a decodable-but-empty
// field set is filled with defaults; an undecodable response returns the
// defaults together with an UnstructuredError.
func (a *Adapter) Enrich(ctx context.Context, text string) (ContractMetadata, error) {
	key := digest(text)
	if md, ok := a.cache.Get(key); ok {
		return md, nil
	}

	raw, err := a.gen.GenerateText(ctx, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ContractMetadata{}, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return ContractMetadata{}, fmt.Errorf("enrichment call failed: %w", err)
	}

	md, perr := parseMetadata(raw)
	if perr != nil {
		return defaultMetadata(), &UnstructuredError{Raw: raw, Err: perr}
	}

	a.cache.Add(key, md)
	return md, nil
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GeminiGenerator is the production TextGenerator, wired the same way the
// rest of the system talks to Gemini.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2) // Low temperature for extraction accuracy

	return &GeminiGenerator{client: client, model: model}, nil
}

// Close cleans up the underlying client.
func (g *GeminiGenerator) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// GenerateText sends the prompt and concatenates the text parts of the
// first candidate.
func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}
