// Package ingestion coordinates extraction, enrichment and persistence to
// add one contract to one space. The pipeline is best-effort: it prefers
// returning a degraded, partially-populated contract over failing the
// whole operation, and it reports every degradation as a warning.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
	"github.com/sentientrolodex/backend/pkg/enrich"
	"github.com/sentientrolodex/backend/pkg/store"
)

// State tracks one ingestion call through the pipeline.
type State string

const (
	StateReceived  State = "Received"
	StateExtracted State = "Extracted"
	StateEnriched  State = "Enriched"
	StatePersisted State = "Persisted"
	StateDone      State = "Done"
	StateAborted   State = "Aborted"
)

// WarningKind enumerates the degradations an ingestion can survive.
type WarningKind string

const (
	WarnNoTextFound          WarningKind = "NoTextFound"
	WarnUnstructuredResponse WarningKind = "UnstructuredResponse"
	WarnPartialLinkFailure   WarningKind = "PartialLinkFailure"
)

// Warning reports a step that degraded instead of aborting.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// Extractor is the document extraction step.
type Extractor interface {
	Extract(ctx context.Context, document []byte, mediaType string) (string, error)
}

// Enricher is the external enrichment step.
type Enricher interface {
	Enrich(ctx context.Context, text string) (enrich.ContractMetadata, error)
}

// Orchestrator drives extract, enrich and persist for one document.
type Orchestrator struct {
	extractor Extractor
	enricher  Enricher
	store     *store.Store
}

// New creates an orchestrator over the injected collaborators.
func New(ext Extractor, enr Enricher, s *store.Store) *Orchestrator {
	return &Orchestrator{extractor: ext, enricher: enr, store: s}
}

// Ingest adds one contract to one space from an uploaded document.
//
// Failure policy per step: a malformed document aborts. No recoverable
// text degrades to an empty-text enrichment with a warning. An
// unstructured enrichment response degrades to defaults plus the raw text
// with a warning. A half-linked persist is surfaced as a warning and is
// never rolled back.
func (o *Orchestrator) Ingest(ctx context.Context, spaceID string, document []byte, mediaType string) (string, []Warning, error) {
	st := StateReceived
	var warnings []Warning

	text, err := o.extractor.Extract(ctx, document, mediaType)
	switch {
	case errors.Is(err, apperrors.ErrNoTextFound):
		warnings = append(warnings, Warning{
			Kind:    WarnNoTextFound,
			Message: "document contains no recoverable text",
		})
		text = ""
	case err != nil:
		st = StateAborted
		log.Printf("ingestion: aborted at %s: %v", st, err)
		return "", nil, err
	}
	st = advance(st, StateExtracted)

	md, err := o.enricher.Enrich(ctx, text)
	var rawResponse string
	var ue *enrich.UnstructuredError
	switch {
	case errors.As(err, &ue):
		// A partially-understood contract beats a failed ingestion; keep
		// the raw model output in an extension field.
		warnings = append(warnings, Warning{
			Kind:    WarnUnstructuredResponse,
			Message: "enrichment response could not be parsed; stored defaults with raw text",
		})
		rawResponse = ue.Raw
	case err != nil:
		// Transport-level failure. No automatic retry; the caller decides.
		return "", warnings, err
	}
	st = advance(st, StateEnriched)

	contract := contractFrom(md, rawResponse)
	cid, err := o.store.AddContract(ctx, spaceID, contract)
	if err != nil {
		var ple *store.PartialLinkError
		if !errors.As(err, &ple) {
			return "", warnings, err
		}
		warnings = append(warnings, Warning{
			Kind:    WarnPartialLinkFailure,
			Message: fmt.Sprintf("contract %s persisted but not yet linked into space %s", ple.EntityID, spaceID),
		})
		log.Printf("ingestion: %v (needs reconciliation)", ple)
	}
	st = advance(st, StatePersisted)

	st = advance(st, StateDone)
	log.Printf("ingestion: contract %s ingested into space %s (%s, %d warnings)", cid, spaceID, st, len(warnings))
	return cid, warnings, nil
}

func advance(from, to State) State {
	log.Printf("ingestion: %s -> %s", from, to)
	return to
}

// CreateSpace creates a contract space for a user. A half-linked space is
// surfaced as a warning alongside the new identifier.
func (o *Orchestrator) CreateSpace(ctx context.Context, ownerID, name string) (string, []Warning, error) {
	if name == "" {
		return "", nil, fmt.Errorf("%w: empty space name", apperrors.ErrInvalidInput)
	}
	spaceID, err := o.store.CreateSpace(ctx, ownerID, name)
	if err != nil {
		var ple *store.PartialLinkError
		if !errors.As(err, &ple) {
			return "", nil, err
		}
		log.Printf("ingestion: %v (needs reconciliation)", ple)
		return spaceID, []Warning{{
			Kind:    WarnPartialLinkFailure,
			Message: fmt.Sprintf("space %s created but not yet linked to user %s", spaceID, ownerID),
		}}, nil
	}
	return spaceID, nil, nil
}

// Remove deletes a contract and detaches it from its owning space in the
// same logical operation. A failed detach leaves a dangling reference,
// which reads tolerate; it is logged for reconciliation.
func (o *Orchestrator) Remove(ctx context.Context, contractID string) error {
	c, err := o.store.FindContract(ctx, contractID)
	if err != nil {
		return err
	}
	if err := o.store.DeleteContract(ctx, contractID); err != nil {
		return err
	}
	if err := o.store.DetachContract(ctx, c.SpaceID, contractID); err != nil {
		log.Printf("ingestion: contract %s deleted but still referenced by space %s: %v", contractID, c.SpaceID, err)
	}
	return nil
}

func contractFrom(md enrich.ContractMetadata, rawResponse string) store.Contract {
	terms := make([]store.Term, 0, len(md.Terms))
	for _, t := range md.Terms {
		terms = append(terms, store.Term{Clause: t.Clause, Description: t.Description})
	}
	return store.Contract{
		Title:          md.Title,
		Parties:        md.Parties,
		EffectiveDate:  md.EffectiveDate,
		ExpirationDate: md.ExpirationDate,
		Terms:          terms,
		Status:         md.Status,
		Platform:       md.Platform,
		RawResponse:    rawResponse,
		Extra:          md.Extra,
	}
}
