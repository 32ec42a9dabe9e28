// Package memory is an in-process implementation of the identity and enrollment
// stores. It backs tests and the database-less development mode.
//
// Reads outside a transaction wait for any running transaction to finish, so they
// observe either none or all of its writes.
package memory

import (
	"context"
	"maps"
	"sync"

	enrollment "registrar/internal/enrollment/models"
	identity "registrar/internal/identity/models"
	id "registrar/pkg/domain"
)

type txKey struct{}

// Store keeps every table in maps guarded by one lock. Transactions hold txMu
// exclusively and are rolled back by restoring a snapshot of the maps.
type Store struct {
	txMu sync.RWMutex
	mu   sync.RWMutex

	principals map[id.PrincipalID]identity.Principal
	students   map[id.StudentID]identity.StudentRecord
	courses    map[id.CourseID]enrollment.Course
}

func New() *Store {
	return &Store{
		principals: make(map[id.PrincipalID]identity.Principal),
		students:   make(map[id.StudentID]identity.StudentRecord),
		courses:    make(map[id.CourseID]enrollment.Course),
	}
}

type snapshot struct {
	principals map[id.PrincipalID]identity.Principal
	students   map[id.StudentID]identity.StudentRecord
	courses    map[id.CourseID]enrollment.Course
}

// RunInTx serializes fn against every other writer and restores the previous state
// when fn fails. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := snapshot{
		principals: maps.Clone(s.principals),
		students:   maps.Clone(s.students),
		courses:    maps.Clone(s.courses),
	}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.principals, s.students, s.courses = snap.principals, snap.students, snap.courses
		s.mu.Unlock()
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// write runs fn under the data lock. Outside a transaction it also takes txMu so a
// concurrent rollback cannot discard the change.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// read runs fn under the shared data lock. Outside a transaction it also shares
// txMu, which keeps it from seeing a transaction that has not committed.
func (s *Store) read(ctx context.Context, fn func()) {
	if !inTx(ctx) {
		s.txMu.RLock()
		defer s.txMu.RUnlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}
