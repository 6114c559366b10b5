// internal/mirror/memory.go
package mirror

import (
	"context"
	"sync"

	"nutrition-tracker/internal/models"
)

// MemoryStore is an in-process Store, used in tests and as a stand-in when no
// workbook path is configured. FailTables injects per-table errors.
type MemoryStore struct {
	mu       sync.Mutex
	Entries  []models.Entry
	Users    []models.UserGoals
	Weights  []models.WeightSample
	Memories []models.MemoryFact

	// FailTables maps a table name ("entries", "users", "weights",
	// "memories") to the error its operations should return.
	FailTables map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{FailTables: make(map[string]error)}
}

func (m *MemoryStore) EntryIDs(ctx context.Context) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables["entries"]; err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(m.Entries))
	for _, e := range m.Entries {
		ids[e.ID] = true
	}
	return ids, nil
}

func (m *MemoryStore) AppendEntries(ctx context.Context, entries []models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables["entries"]; err != nil {
		return err
	}
	m.Entries = append(m.Entries, entries...)
	return nil
}

func (m *MemoryStore) UserIDs(ctx context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables["users"]; err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(m.Users))
	for _, u := range m.Users {
		ids[u.UserID] = true
	}
	return ids, nil
}

func (m *MemoryStore) AppendUsers(ctx context.Context, users []models.UserGoals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables["users"]; err != nil {
		return err
	}
	m.Users = append(m.Users, users...)
	return nil
}

func (m *MemoryStore) WeightIDs(ctx context.Context) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables["weights"]; err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(m.Weights))
	for _, w := range m.Weights {
		ids[w.ID] = true
	}
	return ids, nil
}

func (m *MemoryStore) AppendWeights(ctx context.Context, samples []models.WeightSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables["weights"]; err != nil {
		return err
	}
	m.Weights = append(m.Weights, samples...)
	return nil
}

func (m *MemoryStore) MemoryIDs(ctx context.Context) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables["memories"]; err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(m.Memories))
	for _, f := range m.Memories {
		ids[f.ID] = true
	}
	return ids, nil
}

func (m *MemoryStore) AppendMemories(ctx context.Context, facts []models.MemoryFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables["memories"]; err != nil {
		return err
	}
	m.Memories = append(m.Memories, facts...)
	return nil
}
