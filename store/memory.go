package store

import (
	"sync"
	"time"

	"github.com/evdnx/gobacktest/models"
)

// MemoryStore keeps partitions in a map. It backs ephemeral runs and tests
// where durability across processes is not wanted.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string]models.Series
}

// NewMemoryStore creates an empty in-memory partition store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string]models.Series),
	}
}

func memoryKey(stream models.Stream, paramKey string, hourStart time.Time) string {
	return stream.String() + "/" + partitionName(hourStart, paramKey)
}

// Get returns a copy of the stored partition, or a miss.
func (s *MemoryStore) Get(stream models.Stream, paramKey string, hourStart time.Time) (models.Series, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.partitions[memoryKey(stream, paramKey, hourStart)]
	if !ok {
		return nil, false, nil
	}
	out := make(models.Series, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Clone())
	}
	return out, true, nil
}

// Put stores a copy of the partition. Last write wins.
func (s *MemoryStore) Put(stream models.Stream, paramKey string, hourStart time.Time, rows models.Series) error {
	copied := make(models.Series, 0, len(rows))
	for _, row := range rows {
		copied = append(copied, row.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[memoryKey(stream, paramKey, hourStart)] = copied
	return nil
}

// Wipe drops every partition.
func (s *MemoryStore) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions = make(map[string]models.Series)
	return nil
}

// Len reports the number of stored partitions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.partitions)
}
