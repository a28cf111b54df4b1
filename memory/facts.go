package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/m-mizutani/goerr/v2"

	"github.com/lethanhdat/membank/logging"
)

// FactStore keeps per-user entity facts: an ordered, deduplicated list of
// strings under each entity key. Insertion order is preserved; deleting
// the last fact under a key removes the key.
//
// Reads degrade to empty on missing or corrupt storage. Writes surface
// their errors: silently losing a fact would corrupt user-visible state.
type FactStore struct {
	userID string
	kv     KV
}

// NewFactStore creates a FactStore for one user over the given KV.
func NewFactStore(userID string, kv KV) *FactStore {
	return &FactStore{userID: userID, kv: kv}
}

func (s *FactStore) key() string {
	return fmt.Sprintf("entities/%s", s.userID)
}

// load reads the current fact map, degrading to empty on any read problem.
func (s *FactStore) load(ctx context.Context) map[string][]string {
	raw, err := s.kv.Get(ctx, s.key())
	if err != nil {
		// Missing key is the common case for new users; anything else is
		// a degraded read worth a warning.
		if !isNotFound(err) {
			logging.From(ctx).Warn("fact store read degraded to empty",
				"user_id", s.userID, "error", err)
		}
		return map[string][]string{}
	}

	var facts map[string][]string
	if err := json.Unmarshal(raw, &facts); err != nil {
		logging.From(ctx).Warn("fact store document corrupt, treating as empty",
			"user_id", s.userID, "error", err)
		return map[string][]string{}
	}
	if facts == nil {
		facts = map[string][]string{}
	}
	return facts
}

func (s *FactStore) save(ctx context.Context, facts map[string][]string) error {
	raw, err := json.Marshal(facts)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal entity facts", goerr.V("user_id", s.userID))
	}
	if err := s.kv.Put(ctx, s.key(), raw); err != nil {
		return goerr.Wrap(err, "failed to persist entity facts", goerr.V("user_id", s.userID))
	}
	return nil
}

// AddFact appends value under entityKey unless it is already present
// (exact-string dedup). Idempotent under repeated identical calls.
func (s *FactStore) AddFact(ctx context.Context, entityKey, value string) error {
	facts := s.load(ctx)
	if slices.Contains(facts[entityKey], value) {
		return nil
	}
	facts[entityKey] = append(facts[entityKey], value)
	return s.save(ctx, facts)
}

// Facts returns the current ordered list for entityKey, or empty if absent.
func (s *FactStore) Facts(ctx context.Context, entityKey string) []string {
	return s.load(ctx)[entityKey]
}

// All returns a snapshot of every entity key and its fact list.
func (s *FactStore) All(ctx context.Context) map[string][]string {
	return s.load(ctx)
}

// RemoveFact removes one occurrence of value under entityKey. The key is
// deleted entirely once its list becomes empty.
func (s *FactStore) RemoveFact(ctx context.Context, entityKey, value string) error {
	facts := s.load(ctx)
	list, ok := facts[entityKey]
	if !ok {
		return nil
	}
	idx := slices.Index(list, value)
	if idx < 0 {
		return nil
	}
	list = slices.Delete(list, idx, idx+1)
	if len(list) == 0 {
		delete(facts, entityKey)
	} else {
		facts[entityKey] = list
	}
	return s.save(ctx, facts)
}

// Clear removes every entity key for the user.
func (s *FactStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key()); err != nil && !isNotFound(err) {
		return goerr.Wrap(err, "failed to clear entity facts", goerr.V("user_id", s.userID))
	}
	return nil
}
