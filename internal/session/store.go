// Package session persists dialogue snapshots keyed by session identifier.
package session

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"

	"derogation-bot/internal/dialogue"
)

// Store is the only way the bot touches per-session state.
type Store interface {
	// Get returns the snapshot for id, or an empty one when nothing is stored.
	Get(ctx context.Context, id string) (dialogue.State, error)
	// Set replaces the snapshot for id.
	Set(ctx context.Context, id string, st dialogue.State) error
	// Merge applies an RFC 7396 merge patch to the stored snapshot.
	Merge(ctx context.Context, id string, patch []byte) error
}

// Diff builds the merge patch turning prev into next. An empty patch is "{}".
func Diff(prev, next dialogue.State) ([]byte, error) {
	a, err := encode(prev)
	if err != nil {
		return nil, err
	}
	b, err := encode(next)
	if err != nil {
		return nil, err
	}
	return jsonpatch.CreateMergePatch(a, b)
}

// IsNoop reports whether patch changes nothing.
func IsNoop(patch []byte) bool {
	return string(patch) == "{}"
}

// Commit stores the transition prev -> next as a merge patch, skipping no-ops.
func Commit(ctx context.Context, s Store, id string, prev, next dialogue.State) error {
	patch, err := Diff(prev, next)
	if err != nil {
		return fmt.Errorf("diff session %s: %w", id, err)
	}
	if IsNoop(patch) {
		return nil
	}
	return s.Merge(ctx, id, patch)
}

func encode(st dialogue.State) ([]byte, error) {
	if st.Details == nil {
		st.Details = dialogue.Details{}
	}
	raw, err := sonic.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return raw, nil
}

func decode(raw []byte) (dialogue.State, error) {
	st := dialogue.Empty()
	if len(raw) == 0 {
		return st, nil
	}
	if err := sonic.Unmarshal(raw, &st); err != nil {
		return dialogue.Empty(), fmt.Errorf("decode session: %w", err)
	}
	if st.Details == nil {
		st.Details = dialogue.Details{}
	}
	return st, nil
}

func applyPatch(current, patch []byte) ([]byte, error) {
	if len(current) == 0 {
		current = []byte(`{"details":{}}`)
	}
	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return nil, fmt.Errorf("apply merge patch: %w", err)
	}
	// round-trip so only well-formed snapshots are ever stored
	st, err := decode(merged)
	if err != nil {
		return nil, err
	}
	return encode(st)
}
