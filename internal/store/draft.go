package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
)

const keyPrefix = "visa24:draft:"

// Snapshot is the persisted form of an in-progress wizard session.
type Snapshot struct {
	Step  int          `json:"step"`
	Draft *model.Draft `json:"draft"`
}

// DraftStore saves and restores wizard snapshots. All methods swallow
// storage failures: Save and Clear silently do nothing, Load returns nil.
type DraftStore struct {
	kv KV
}

// NewDraftStore creates a draft store over the given KV. A nil KV yields a
// store whose operations are all no-ops.
func NewDraftStore(kv KV) *DraftStore {
	return &DraftStore{kv: kv}
}

// Save persists the snapshot under the session id, best-effort.
func (s *DraftStore) Save(ctx context.Context, sessionID string, snap Snapshot) {
	if s.kv == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		slog.Warn("failed to marshal draft snapshot", "session_id", sessionID, "error", err)
		return
	}
	if err := s.kv.Set(ctx, keyPrefix+sessionID, string(data)); err != nil {
		slog.Warn("failed to persist draft", "session_id", sessionID, "error", err)
	}
}

// Load restores a snapshot for the session id. It returns nil when no
// snapshot exists, the store is unavailable, or the persisted blob is
// corrupt; a corrupt blob is logged and discarded rather than surfaced.
func (s *DraftStore) Load(ctx context.Context, sessionID string) *Snapshot {
	if s.kv == nil {
		return nil
	}
	raw, err := s.kv.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		if err != ErrNotFound {
			slog.Warn("failed to load draft", "session_id", sessionID, "error", err)
		}
		return nil
	}

	// Persisted fields win; fields absent from the blob keep defaults.
	snap := Snapshot{Step: 1, Draft: model.NewDraft()}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		slog.Warn("discarding corrupt draft snapshot", "session_id", sessionID, "error", err)
		return nil
	}
	if snap.Draft == nil || snap.Step < 1 || snap.Step > 6 {
		slog.Warn("discarding structurally incompatible draft snapshot", "session_id", sessionID)
		return nil
	}
	snap.Draft.Normalize()
	return &snap
}

// Clear removes the persisted snapshot, best-effort.
func (s *DraftStore) Clear(ctx context.Context, sessionID string) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Del(ctx, keyPrefix+sessionID); err != nil {
		slog.Warn("failed to clear draft", "session_id", sessionID, "error", err)
	}
}
