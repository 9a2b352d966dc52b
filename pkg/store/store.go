// Package store owns the three persisted entity collections (users,
// contract spaces, contracts) and the mutations that keep their
// cross-references consistent. It is the only package that converts
// identifiers to their native form; everything above it passes portable
// strings.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
	"github.com/sentientrolodex/backend/pkg/ident"
)

const (
	prefixUser     = "user:"
	prefixEmail    = "email:"
	prefixSpace    = "space:"
	prefixContract = "contract:"

	// List appends run under conflict detection; retry a handful of times
	// before giving up.
	maxTxnRetries = 32
)

// PartialLinkError reports a two-step write that half-completed: the entity
// exists but the back-link into its parent's list was not written. The
// caller decides whether to reconcile or surface it as a warning.
type PartialLinkError struct {
	EntityKind string // "space" or "contract"
	EntityID   string
	ParentKind string // "user" or "space"
	ParentID   string
	Err        error
}

func (e *PartialLinkError) Error() string {
	return fmt.Sprintf("%s %s created but not linked into %s %s: %v",
		e.EntityKind, e.EntityID, e.ParentKind, e.ParentID, e.Err)
}

func (e *PartialLinkError) Unwrap() error { return e.Err }

func (e *PartialLinkError) Is(target error) bool {
	return target == apperrors.ErrPartialLink
}

// Store is the injected handle shared by every component: opened once at
// process start, closed at shutdown.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at the configured location.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := badger.Open(buildBadgerOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", cfg.DataDir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func userKey(id string) []byte  { return append([]byte(prefixUser), ident.ToNative(id).Key()...) }
func emailKey(e string) []byte  { return []byte(prefixEmail + e) } // exact, case-sensitive match
func spaceKey(id string) []byte { return append([]byte(prefixSpace), ident.ToNative(id).Key()...) }
func contractKey(id string) []byte {
	return append([]byte(prefixContract), ident.ToNative(id).Key()...)
}

// ctxErr maps context termination to the store's error kinds. Deadline
// expiry is a Timeout, distinct from NotFound or malformed input.
func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", apperrors.ErrTimeout, ctx.Err())
		}
		return ctx.Err()
	default:
		return nil
	}
}

func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

// update runs fn in a read-write transaction, retrying on conflict so that
// two concurrent appends to the same list both land.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// CreateUser registers a user with a pre-hashed credential. The email index
// is written in the same transaction, so duplicates cannot slip in between
// check and insert.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}
	if email == "" {
		return "", fmt.Errorf("%w: empty email", apperrors.ErrInvalidInput)
	}
	id := ident.ToPortable(ident.New())
	user := User{ID: id, Email: email, Password: passwordHash, ContractSpaces: []string{}}

	err := s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return fmt.Errorf("%w: email %s", apperrors.ErrDuplicate, email)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, userKey(id), user); err != nil {
			return err
		}
		return txn.Set(emailKey(email), []byte(id))
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// FindUser looks a user up by exact email. Absence is an expected outcome.
func (s *Store) FindUser(ctx context.Context, email string) (*User, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser looks a user up by identifier.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateSpace creates a space, then appends its identifier to the owner's
// space list. The two steps are separate transactions; when the second
// fails the space exists unlinked and the caller gets the new ID alongside
// a PartialLinkError so its recovery policy can differ from a plain error.
func (s *Store) CreateSpace(ctx context.Context, ownerID, name string) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}
	id := ident.ToPortable(ident.New())
	space := ContractSpace{ID: id, Name: name, Contracts: []string{}}

	if err := s.update(func(txn *badger.Txn) error {
		return setJSON(txn, spaceKey(id), space)
	}); err != nil {
		return "", err
	}

	err := s.update(func(txn *badger.Txn) error {
		var user User
		if err := getJSON(txn, userKey(ownerID), &user); err != nil {
			return err
		}
		user.ContractSpaces = append(user.ContractSpaces, id)
		return setJSON(txn, userKey(ownerID), user)
	})
	if err != nil {
		return id, &PartialLinkError{
			EntityKind: "space", EntityID: id,
			ParentKind: "user", ParentID: ownerID,
			Err: err,
		}
	}
	return id, nil
}

// AddContract inserts the contract, then appends its identifier to the
// space's contract list. Same partial-failure contract as CreateSpace.
func (s *Store) AddContract(ctx context.Context, spaceID string, c Contract) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}
	// Fail fast on an unknown space rather than minting an orphan.
	if _, err := s.FindSpace(ctx, spaceID); err != nil {
		return "", err
	}

	id := ident.ToPortable(ident.New())
	c.ID = id
	c.SpaceID = spaceID
	if c.Status == "" {
		c.Status = StatusUnknown
	}

	if err := s.update(func(txn *badger.Txn) error {
		return setJSON(txn, contractKey(id), c)
	}); err != nil {
		return "", err
	}

	err := s.update(func(txn *badger.Txn) error {
		var space ContractSpace
		if err := getJSON(txn, spaceKey(spaceID), &space); err != nil {
			return err
		}
		space.Contracts = append(space.Contracts, id)
		return setJSON(txn, spaceKey(spaceID), space)
	})
	if err != nil {
		return id, &PartialLinkError{
			EntityKind: "contract", EntityID: id,
			ParentKind: "space", ParentID: spaceID,
			Err: err,
		}
	}
	return id, nil
}

// UpdateSpace applies a partial-field merge to a space. Unknown fields in
// the patch are stored as-is. The identity and link fields are not
// patchable; writes must never introduce dangling references.
func (s *Store) UpdateSpace(ctx context.Context, spaceID string, patch map[string]any) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return s.mergeInto(spaceKey(spaceID), patch, "id", "contracts")
}

// UpdateContractMetadata applies a partial-field merge to a contract's
// metadata. Supersede-by-patch: last write wins per field.
func (s *Store) UpdateContractMetadata(ctx context.Context, contractID string, patch map[string]any) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return s.mergeInto(contractKey(contractID), patch, "id", "space_id")
}

func (s *Store) mergeInto(key []byte, patch map[string]any, protected ...string) error {
	return s.update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return err
		}
		for k, v := range patch {
			if isProtected(k, protected) {
				continue
			}
			doc[k] = v
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return txn.Set(key, b)
	})
}

func isProtected(k string, protected []string) bool {
	for _, p := range protected {
		if k == p {
			return true
		}
	}
	return false
}

// DeleteContract removes the contract document. It does not touch the
// owning space's list; that cleanup belongs to the orchestrator, and a
// leftover reference is tolerated on read.
func (s *Store) DeleteContract(ctx context.Context, contractID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		key := contractKey(contractID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// DetachContract removes a contract identifier from a space's list. Used by
// the orchestrator after DeleteContract; a missing space or identifier is
// not an error since the dangling reference is tolerated anyway.
func (s *Store) DetachContract(ctx context.Context, spaceID, contractID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		var space ContractSpace
		if err := getJSON(txn, spaceKey(spaceID), &space); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}
			return err
		}
		kept := space.Contracts[:0]
		for _, cid := range space.Contracts {
			if cid != contractID {
				kept = append(kept, cid)
			}
		}
		space.Contracts = kept
		return setJSON(txn, spaceKey(spaceID), space)
	})
}

// FindSpace looks a space up by identifier.
func (s *Store) FindSpace(ctx context.Context, spaceID string) (*ContractSpace, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var space ContractSpace
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, spaceKey(spaceID), &space)
	})
	if err != nil {
		return nil, err
	}
	return &space, nil
}

// FindContract looks a contract up by identifier.
func (s *Store) FindContract(ctx context.Context, contractID string) (*Contract, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var c Contract
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, contractKey(contractID), &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListSpaces returns every space, in key order. Serves the search
// projection; the dataset is per-deployment small.
func (s *Store) ListSpaces(ctx context.Context) ([]ContractSpace, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var spaces []ContractSpace
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSpace)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var space ContractSpace
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &space)
			}); err != nil {
				return err
			}
			spaces = append(spaces, space)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return spaces, nil
}
