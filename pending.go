package auth

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryPendingStore is a process local PendingStore.
// Records are lost on restart.
type MemoryPendingStore struct {
	records *xsync.MapOf[string, PendingRegistration]
}

var _ PendingStore = (*MemoryPendingStore)(nil)

// NewMemoryPendingStore returns an empty store
func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{
		records: xsync.NewMapOf[string, PendingRegistration](),
	}
}

// Put stores record for email, replacing any previous one
func (s *MemoryPendingStore) Put(email string, record PendingRegistration) {
	s.records.Store(email, record)
}

// Get returns the record for email
func (s *MemoryPendingStore) Get(email string) (PendingRegistration, bool) {
	return s.records.Load(email)
}

// Remove deletes the record for email if present
func (s *MemoryPendingStore) Remove(email string) {
	s.records.Delete(email)
}

// CompareAndRemove removes the record for email if it matches record.
// A re-registration stored in the meantime is kept.
func (s *MemoryPendingStore) CompareAndRemove(email string, record PendingRegistration) bool {
	removed := false
	s.records.Compute(email, func(current PendingRegistration, loaded bool) (PendingRegistration, bool) {
		if !loaded {
			return current, true
		}
		if current.sameIssue(record) {
			removed = true
			return current, true
		}
		return current, false
	})
	return removed
}

// Len returns the number of pending records
func (s *MemoryPendingStore) Len() int {
	return s.records.Size()
}
