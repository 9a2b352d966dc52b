package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, email string) string {
	t.Helper()
	id, err := s.CreateUser(context.Background(), email, "hashed-secret")
	require.NoError(t, err)
	return id
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "alice@example.com")
	_, err := s.CreateUser(ctx, "alice@example.com", "other-hash")
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	// Email match is exact and case-sensitive.
	_, err = s.CreateUser(ctx, "Alice@example.com", "other-hash")
	assert.NoError(t, err)
}

func TestCreateSpaceLinksOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s, "owner@example.com")

	spaceID, err := s.CreateSpace(ctx, userID, "Netflix-Deal")
	require.NoError(t, err)

	user, err := s.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{spaceID}, user.ContractSpaces)

	space, err := s.FindSpace(ctx, spaceID)
	require.NoError(t, err)
	assert.Equal(t, "Netflix-Deal", space.Name)
	assert.Empty(t, space.Contracts)
}

func TestCreateSpaceUnknownOwnerIsPartialLink(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	spaceID, err := s.CreateSpace(ctx, "no-such-user", "orphaned")
	assert.ErrorIs(t, err, apperrors.ErrPartialLink)

	var ple *PartialLinkError
	require.ErrorAs(t, err, &ple)
	assert.Equal(t, "space", ple.EntityKind)
	assert.Equal(t, spaceID, ple.EntityID)

	// The space exists even though the link step failed.
	_, err = s.FindSpace(ctx, spaceID)
	assert.NoError(t, err)
}

func TestAddContractReferentialSymmetry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s, "owner@example.com")
	spaceID, err := s.CreateSpace(ctx, userID, "deals")
	require.NoError(t, err)

	cid, err := s.AddContract(ctx, spaceID, Contract{Title: "License"})
	require.NoError(t, err)

	space, err := s.FindSpace(ctx, spaceID)
	require.NoError(t, err)

	occurrences := 0
	for _, id := range space.Contracts {
		if id == cid {
			occurrences++
		}
	}
	assert.Equal(t, 1, occurrences, "contract id should appear exactly once")

	c, err := s.FindContract(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, spaceID, c.SpaceID)
	assert.Equal(t, "License", c.Title)
	assert.Equal(t, StatusUnknown, c.Status, "missing status defaults to Unknown")
}

func TestAddContractUnknownSpace(t *testing.T) {
	s := openTestStore(t)
	_, err := s.AddContract(context.Background(), "missing-space", Contract{Title: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConcurrentAddContractNoLostUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s, "owner@example.com")
	spaceID, err := s.CreateSpace(ctx, userID, "busy")
	require.NoError(t, err)

	const writers = 16
	ids := make([]string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cid, err := s.AddContract(ctx, spaceID, Contract{Title: "c"})
			assert.NoError(t, err)
			ids[i] = cid
		}(i)
	}
	wg.Wait()

	space, err := s.FindSpace(ctx, spaceID)
	require.NoError(t, err)
	assert.Len(t, space.Contracts, writers)

	present := make(map[string]bool, writers)
	for _, id := range space.Contracts {
		present[id] = true
	}
	for _, id := range ids {
		assert.True(t, present[id], "contract %s lost from space list", id)
	}
}

func TestUpdateContractMetadataMerge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s, "owner@example.com")
	spaceID, err := s.CreateSpace(ctx, userID, "deals")
	require.NoError(t, err)
	cid, err := s.AddContract(ctx, spaceID, Contract{
		Title:   "Original",
		Parties: []string{"Acme", "Globex"},
		Status:  StatusActive,
	})
	require.NoError(t, err)

	err = s.UpdateContractMetadata(ctx, cid, map[string]any{
		"title":       "Overridden",
		"reviewed_by": "legal-team", // unknown field, stored as-is
		"id":          "evil",       // identity is not patchable
		"space_id":    "elsewhere",
	})
	require.NoError(t, err)

	c, err := s.FindContract(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, "Overridden", c.Title)
	assert.Equal(t, []string{"Acme", "Globex"}, c.Parties, "unpatched fields survive")
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, cid, c.ID)
	assert.Equal(t, spaceID, c.SpaceID)
	assert.Equal(t, "legal-team", c.Extra["reviewed_by"])
}

func TestUpdateSpaceMerge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s, "owner@example.com")
	spaceID, err := s.CreateSpace(ctx, userID, "old-name")
	require.NoError(t, err)
	cid, err := s.AddContract(ctx, spaceID, Contract{Title: "c"})
	require.NoError(t, err)

	err = s.UpdateSpace(ctx, spaceID, map[string]any{
		"name":      "new-name",
		"contracts": []string{}, // link list is not patchable
	})
	require.NoError(t, err)

	space, err := s.FindSpace(ctx, spaceID)
	require.NoError(t, err)
	assert.Equal(t, "new-name", space.Name)
	assert.Equal(t, []string{cid}, space.Contracts)

	err = s.UpdateSpace(ctx, "missing", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteContractLeavesDanglingReference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s, "owner@example.com")
	spaceID, err := s.CreateSpace(ctx, userID, "deals")
	require.NoError(t, err)
	cid, err := s.AddContract(ctx, spaceID, Contract{Title: "doomed"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteContract(ctx, cid))
	assert.ErrorIs(t, s.DeleteContract(ctx, cid), apperrors.ErrNotFound)

	_, err = s.FindContract(ctx, cid)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// DeleteContract alone leaves the reference in place.
	space, err := s.FindSpace(ctx, spaceID)
	require.NoError(t, err)
	assert.Contains(t, space.Contracts, cid)

	// Detach is idempotent and tolerates already-missing entries.
	require.NoError(t, s.DetachContract(ctx, spaceID, cid))
	require.NoError(t, s.DetachContract(ctx, spaceID, cid))
	space, err = s.FindSpace(ctx, spaceID)
	require.NoError(t, err)
	assert.NotContains(t, space.Contracts, cid)
}

func TestLookupsReturnNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.FindUser(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.FindSpace(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.FindContract(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestContextDeadlineSurfacesAsTimeout(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	_, err := s.FindSpace(ctx, "any")
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}
