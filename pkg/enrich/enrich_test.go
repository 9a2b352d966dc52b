package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestEnrichStructuredResponse(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"title": "Streaming License Agreement",
		"parties": ["Acme Studios", "Netflix"],
		"effective_date": "2025-01-01",
		"expiration_date": "2027-01-01",
		"terms": [{"clause": "Payment Terms", "description": "Payment must be made within 30 days of invoice."}],
		"status": "active",
		"platform": "Netflix",
		"jurisdiction": "California"
	}`}
	a := NewAdapter(gen)

	md, err := a.Enrich(context.Background(), "contract text")
	require.NoError(t, err)
	assert.Equal(t, "Streaming License Agreement", md.Title)
	assert.Equal(t, []string{"Acme Studios", "Netflix"}, md.Parties)
	assert.Equal(t, "Active", md.Status, "status is normalized to the enum spelling")
	assert.Equal(t, "Netflix", md.Platform)
	require.Len(t, md.Terms, 1)
	assert.Equal(t, "Payment Terms", md.Terms[0].Clause)
	assert.Equal(t, "California", md.Extra["jurisdiction"], "unknown fields are kept")
}

func TestEnrichFencedResponse(t *testing.T) {
	gen := &fakeGenerator{response: "Here is the extracted detail:\n```json\n{\"title\": \"NDA\"}\n```\n"}
	a := NewAdapter(gen)

	md, err := a.Enrich(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "NDA", md.Title)
	assert.Equal(t, DefaultStatus, md.Status)
	assert.Empty(t, md.Parties)
	assert.Empty(t, md.Terms)
}

func TestEnrichUnstructuredResponse(t *testing.T) {
	gen := &fakeGenerator{response: "I could not find any contract details in this text, sorry."}
	a := NewAdapter(gen)

	md, err := a.Enrich(context.Background(), "text")
	assert.ErrorIs(t, err, apperrors.ErrUnstructuredResponse)

	var ue *UnstructuredError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, gen.response, ue.Raw, "raw text rides along for the caller")

	// Degraded call still yields usable defaults.
	assert.Equal(t, DefaultTitle, md.Title)
	assert.Equal(t, DefaultStatus, md.Status)
}

func TestEnrichCachesByTextDigest(t *testing.T) {
	gen := &fakeGenerator{response: `{"title": "Cached"}`}
	a := NewAdapter(gen)
	ctx := context.Background()

	_, err := a.Enrich(ctx, "same text")
	require.NoError(t, err)
	_, err = a.Enrich(ctx, "same text")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls, "identical text must not re-bill the service")

	_, err = a.Enrich(ctx, "different text")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestEnrichDeadlineIsTimeout(t *testing.T) {
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	a := NewAdapter(gen)

	_, err := a.Enrich(context.Background(), "text")
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, 1, gen.calls, "the adapter never retries on its own")
}
