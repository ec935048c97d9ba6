package memory

import (
	"context"
	"sync"

	"loom-backend/application/ports"
)

// UnitOfWork buffers writes and applies them together on Commit. Nothing
// touches the stores before Commit, so an abandoned unit of work has no
// effect.
type UnitOfWork struct {
	mu        sync.Mutex
	ops       []func()
	committed bool
}

// register queues one write
func (u *UnitOfWork) register(op func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ops = append(u.ops, op)
}

// Commit applies every registered write
func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, op := range u.ops {
		op()
	}
	u.committed = true
	u.ops = nil
	return nil
}

// Size returns the number of registered writes
func (u *UnitOfWork) Size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.ops)
}

// UnitOfWorkFactory creates memory units of work
type UnitOfWorkFactory struct{}

// NewUnitOfWorkFactory creates the factory
func NewUnitOfWorkFactory() *UnitOfWorkFactory {
	return &UnitOfWorkFactory{}
}

// New creates a fresh unit of work
func (f *UnitOfWorkFactory) New() ports.UnitOfWork {
	return &UnitOfWork{}
}
