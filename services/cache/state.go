package cachesvc

import (
	"context"
	"strconv"
	"time"

	"github.com/trezcool/ritmatiza/core/music"
)

const stateKeyPrefix = "spotify_auth_state_"

// StateStore keeps the OAuth anti-forgery states in a Store, one key per admin.
type StateStore struct {
	store Store
}

var _ music.StateStore = (*StateStore)(nil)

func NewStateStore(store Store) *StateStore {
	return &StateStore{store: store}
}

func (s *StateStore) Put(ctx context.Context, adminID int, state string, ttl time.Duration) error {
	return s.store.Set(ctx, stateKeyPrefix+strconv.Itoa(adminID), state, ttl)
}

func (s *StateStore) Pop(ctx context.Context, adminID int) (string, bool, error) {
	return s.store.Pop(ctx, stateKeyPrefix+strconv.Itoa(adminID))
}
