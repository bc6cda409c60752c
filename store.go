package compass

import "context"

// StateStore persists conversation state between turns.
//
// Load returns ErrStateNotFound when no state exists for the pair; callers
// seed an empty state. A decode failure returns ErrCorruptState and must
// not be masked by seeding.
//
// Save persists atomically. When two concurrent saves conflict, overwrite
// fields take the later writer and append-only fields merge by record id
// with order preserved (see MergeAppend).
type StateStore interface {
	Load(ctx context.Context, userID, conversationID string) (State, error)
	Save(ctx context.Context, s State) error
}

// MemoryStore is best-effort long-term user memory. Errors never block
// the pipeline.
type MemoryStore interface {
	Retrieve(ctx context.Context, userID, queryContext string) ([]string, error)
	Store(ctx context.Context, userID, entry string) error
}

// ResourceSearch looks up external resources for a query. Best-effort;
// implementations return an error that callers turn into a fallback string.
type ResourceSearch interface {
	Search(ctx context.Context, query, queryContext string) (string, error)
}

// AnalyticsSink receives fire-and-forget per-turn analytics payloads.
type AnalyticsSink interface {
	Log(ctx context.Context, sessionID string, payload map[string]any)
}

// MergeAppend unions two message histories for conflicting saves: records
// present in both keep base order; records unique to either side append
// in timestamp order. Ids are UUIDv7 so creation order survives the merge.
func MergeAppend(base, incoming []Message) []Message {
	seen := make(map[string]bool, len(base))
	for _, m := range base {
		seen[m.ID] = true
	}
	out := append([]Message(nil), base...)
	for _, m := range incoming {
		if !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	return out
}

// MergeHandoffs unions handoff records by id, preserving base order.
func MergeHandoffs(base, incoming []HandoffRecord) []HandoffRecord {
	seen := make(map[string]bool, len(base))
	for _, h := range base {
		seen[h.ID] = true
	}
	out := append([]HandoffRecord(nil), base...)
	for _, h := range incoming {
		if !seen[h.ID] {
			seen[h.ID] = true
			out = append(out, h)
		}
	}
	return out
}
