package cart

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/oppa-kitchen/storefront/internal/menu"
)

// StorageKey is the fixed record name under which cart snapshots are kept.
// Each cart session appends its id, see Key.
const StorageKey = "oppa-cart-storage"

const snapshotVersion = 0

// Key returns the storage key for a cart session.
func Key(cartID uuid.UUID) string {
	return StorageKey + ":" + cartID.String()
}

type snapshot struct {
	State   snapshotState `json:"state"`
	Version int           `json:"version"`
}

type snapshotState struct {
	Items []LineItem `json:"items"`
}

// Encode serializes line items in the persisted snapshot layout:
// {"state":{"items":[...]},"version":0}.
func Encode(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(snapshot{State: snapshotState{Items: items}, Version: snapshotVersion})
}

// Decode parses a persisted snapshot. Entries without an id or with a
// non-positive quantity are dropped, and only the first entry per id is
// kept, so a decoded cart always satisfies the store invariants.
func Decode(data []byte) ([]LineItem, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	items := make([]LineItem, 0, len(snap.State.Items))
	seen := make(map[menu.ID]bool, len(snap.State.Items))
	for _, it := range snap.State.Items {
		if it.ID == "" || it.Quantity <= 0 || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		items = append(items, it)
	}
	return items, nil
}
