// Package agent runs asynchronous contract reviews: a model pass over a
// contract's term clauses that flags potential breaches and risky terms.
// Runs are tracked in an in-memory registry and polled by callers; there
// is no push notification.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sentientrolodex/backend/pkg/enrich"
	"github.com/sentientrolodex/backend/pkg/ident"
	"github.com/sentientrolodex/backend/pkg/store"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
)

// RunState is the lifecycle of one analysis run.
type RunState string

const (
	StatePending RunState = "pending"
	StateRunning RunState = "running"
	StateDone    RunState = "done"
	StateFailed  RunState = "failed"
)

// Run is one analysis pass over one contract.
type Run struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	State      RunState  `json:"state"`
	Report     string    `json:"report,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// analysisTimeout bounds the model call for one run.
const analysisTimeout = 2 * time.Minute

// Analyzer launches and tracks analysis runs.
type Analyzer struct {
	gen   enrich.TextGenerator
	store *store.Store

	mu   sync.RWMutex
	runs map[string]*Run
}

// New creates an analyzer over the given generator and store.
func New(gen enrich.TextGenerator, s *store.Store) *Analyzer {
	return &Analyzer{gen: gen, store: s, runs: make(map[string]*Run)}
}

// Start launches an analysis run for a contract and returns the run ID.
// The run outlives the initiating request.
func (a *Analyzer) Start(ctx context.Context, contractID string) (string, error) {
	contract, err := a.store.FindContract(ctx, contractID)
	if err != nil {
		return "", err
	}

	run := &Run{
		ID:         ident.ToPortable(ident.New()),
		ContractID: contractID,
		State:      StatePending,
		StartedAt:  time.Now(),
	}
	a.mu.Lock()
	a.runs[run.ID] = run
	a.mu.Unlock()

	go a.execute(context.WithoutCancel(ctx), run.ID, contract)
	return run.ID, nil
}

// Status returns a snapshot of a run.
func (a *Analyzer) Status(runID string) (Run, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	run, ok := a.runs[runID]
	if !ok {
		return Run{}, fmt.Errorf("%w: run %s", apperrors.ErrNotFound, runID)
	}
	return *run, nil
}

func (a *Analyzer) execute(ctx context.Context, runID string, contract *store.Contract) {
	a.setState(runID, func(r *Run) { r.State = StateRunning })

	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	report, err := a.gen.GenerateText(ctx, buildReviewPrompt(contract))
	a.setState(runID, func(r *Run) {
		r.FinishedAt = time.Now()
		if err != nil {
			r.State = StateFailed
			r.Error = err.Error()
			return
		}
		r.State = StateDone
		r.Report = report
	})
}

func (a *Analyzer) setState(runID string, mutate func(*Run)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if run, ok := a.runs[runID]; ok {
		mutate(run)
	}
}

func buildReviewPrompt(c *store.Contract) string {
	var sb strings.Builder
	sb.WriteString("You are a legal compliance checker. Analyze the contract agreement below ")
	sb.WriteString("and check for breaches or risky terms. Produce a short report highlighting ")
	sb.WriteString("any violations of the listed clauses.\n\n")

	fmt.Fprintf(&sb, "Title: %s\n", c.Title)
	if len(c.Parties) > 0 {
		fmt.Fprintf(&sb, "Parties: %s\n", strings.Join(c.Parties, ", "))
	}
	if c.Platform != "" {
		fmt.Fprintf(&sb, "Platform: %s\n", c.Platform)
	}
	fmt.Fprintf(&sb, "Status: %s\n", c.Status)
	if c.EffectiveDate != "" || c.ExpirationDate != "" {
		fmt.Fprintf(&sb, "Effective: %s  Expires: %s\n", c.EffectiveDate, c.ExpirationDate)
	}

	sb.WriteString("\nTerms:\n")
	if len(c.Terms) == 0 {
		sb.WriteString("(no structured terms were extracted)\n")
	}
	for _, t := range c.Terms {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Clause, t.Description)
	}

	if c.RawResponse != "" {
		sb.WriteString("\nUnparsed extraction output:\n")
		sb.WriteString(c.RawResponse)
		sb.WriteString("\n")
	}
	return sb.String()
}
