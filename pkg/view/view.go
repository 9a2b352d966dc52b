// Package view builds read-side projections over the ownership graph.
// The aggregate is a convenience projection over an eventually-consistent
// link structure, not a transactional read: dangling references are
// skipped, and the view is always returned, possibly incomplete.
package view

import (
	"context"
	"errors"
	"log"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
	"github.com/sentientrolodex/backend/pkg/store"
)

// SpaceView is one space with its resolved contracts, in stored insertion
// order.
type SpaceView struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Contracts []store.Contract `json:"contracts"`
}

// UserView is a user's full ownership tree.
type UserView struct {
	ID     string      `json:"id"`
	Email  string      `json:"email"`
	Spaces []SpaceView `json:"contractSpaces"`
}

// Aggregator resolves identifier lists through the relationship store.
type Aggregator struct {
	store *store.Store
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(s *store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// BuildSpaceView resolves one space's contract list in stored insertion
// order, skipping dangling references.
func (a *Aggregator) BuildSpaceView(ctx context.Context, spaceID string) (*SpaceView, error) {
	space, err := a.store.FindSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	sv := &SpaceView{
		ID:        space.ID,
		Name:      space.Name,
		Contracts: make([]store.Contract, 0, len(space.Contracts)),
	}
	for _, contractID := range space.Contracts {
		c, err := a.store.FindContract(ctx, contractID)
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("view: space %s references missing contract %s, skipping", spaceID, contractID)
			continue
		}
		if err != nil {
			return nil, err
		}
		sv.Contracts = append(sv.Contracts, *c)
	}
	return sv, nil
}

// BuildUserView walks the user's space list and each space's contract
// list. A reference that fails to resolve is logged and skipped; only the
// user itself being absent, or a storage failure, is an error.
func (a *Aggregator) BuildUserView(ctx context.Context, userID string) (*UserView, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	uv := &UserView{
		ID:     user.ID,
		Email:  user.Email,
		Spaces: make([]SpaceView, 0, len(user.ContractSpaces)),
	}

	for _, spaceID := range user.ContractSpaces {
		sv, err := a.BuildSpaceView(ctx, spaceID)
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("view: user %s references missing space %s, skipping", userID, spaceID)
			continue
		}
		if err != nil {
			return nil, err
		}
		uv.Spaces = append(uv.Spaces, *sv)
	}

	return uv, nil
}
