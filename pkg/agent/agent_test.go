package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
	"github.com/sentientrolodex/backend/pkg/store"
)

type fakeGenerator struct {
	response string
	err      error
	prompt   string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func seedContract(t *testing.T) (*store.Store, string) {
	t.Helper()
	cfg := store.DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	s, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	userID, err := s.CreateUser(ctx, "owner@example.com", "hash")
	require.NoError(t, err)
	spaceID, err := s.CreateSpace(ctx, userID, "deals")
	require.NoError(t, err)
	cid, err := s.AddContract(ctx, spaceID, store.Contract{
		Title: "Streaming Deal",
		Terms: []store.Term{{Clause: "Payment Terms", Description: "Payment must be made within 30 days of invoice."}},
	})
	require.NoError(t, err)
	return s, cid
}

func waitForFinished(t *testing.T, a *Analyzer, runID string) Run {
	t.Helper()
	var run Run
	require.Eventually(t, func() bool {
		r, err := a.Status(runID)
		if err != nil {
			return false
		}
		run = r
		return run.State == StateDone || run.State == StateFailed
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestAnalyzeContract(t *testing.T) {
	s, cid := seedContract(t)
	gen := &fakeGenerator{response: "No breaches found."}
	a := New(gen, s)

	runID, err := a.Start(context.Background(), cid)
	require.NoError(t, err)

	run := waitForFinished(t, a, runID)
	assert.Equal(t, StateDone, run.State)
	assert.Equal(t, "No breaches found.", run.Report)
	assert.Equal(t, cid, run.ContractID)
	assert.True(t, strings.Contains(gen.prompt, "Payment Terms"), "prompt should carry the term clauses")
}

func TestAnalyzeFailure(t *testing.T) {
	s, cid := seedContract(t)
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	a := New(gen, s)

	runID, err := a.Start(context.Background(), cid)
	require.NoError(t, err)

	run := waitForFinished(t, a, runID)
	assert.Equal(t, StateFailed, run.State)
	assert.Contains(t, run.Error, "model unavailable")
}

func TestStartUnknownContract(t *testing.T) {
	s, _ := seedContract(t)
	a := New(&fakeGenerator{}, s)

	_, err := a.Start(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStatusUnknownRun(t *testing.T) {
	s, _ := seedContract(t)
	a := New(&fakeGenerator{}, s)

	_, err := a.Status("ghost-run")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
