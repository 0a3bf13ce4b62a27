package registry

import (
	"fmt"

	"github.com/google/uuid"
)

// PositionRegistry records one owner per position id. The ledger mints,
// burns, and transfers through it and never stores a duplicate owner field.
type PositionRegistry interface {
	Mint(owner uuid.UUID, id uint64) error
	Burn(id uint64) error
	Transfer(from, to uuid.UUID, id uint64) error
	OwnerOf(id uint64) (uuid.UUID, bool)
	IsOwnerOrApproved(caller uuid.UUID, id uint64) bool
	Approve(owner, delegate uuid.UUID, id uint64) error
}

// InMemory is the concrete registry adapter. Not safe for concurrent use —
// all access goes through the single-threaded engine.
type InMemory struct {
	owners    map[uint64]uuid.UUID
	approvals map[uint64]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		owners:    make(map[uint64]uuid.UUID),
		approvals: make(map[uint64]uuid.UUID),
	}
}

func (r *InMemory) Mint(owner uuid.UUID, id uint64) error {
	if owner == uuid.Nil {
		return fmt.Errorf("registry: mint to nil owner")
	}
	if _, exists := r.owners[id]; exists {
		return fmt.Errorf("registry: id %d already minted", id)
	}
	r.owners[id] = owner
	return nil
}

func (r *InMemory) Burn(id uint64) error {
	if _, exists := r.owners[id]; !exists {
		return fmt.Errorf("registry: id %d not minted", id)
	}
	delete(r.owners, id)
	delete(r.approvals, id)
	return nil
}

func (r *InMemory) Transfer(from, to uuid.UUID, id uint64) error {
	owner, exists := r.owners[id]
	if !exists {
		return fmt.Errorf("registry: id %d not minted", id)
	}
	if owner != from {
		return fmt.Errorf("registry: %s does not own id %d", from, id)
	}
	if to == uuid.Nil {
		return fmt.Errorf("registry: transfer to nil owner")
	}
	r.owners[id] = to
	delete(r.approvals, id)
	return nil
}

func (r *InMemory) OwnerOf(id uint64) (uuid.UUID, bool) {
	owner, ok := r.owners[id]
	return owner, ok
}

func (r *InMemory) IsOwnerOrApproved(caller uuid.UUID, id uint64) bool {
	owner, ok := r.owners[id]
	if !ok {
		return false
	}
	if owner == caller {
		return true
	}
	return r.approvals[id] == caller
}

func (r *InMemory) Approve(owner, delegate uuid.UUID, id uint64) error {
	actual, exists := r.owners[id]
	if !exists {
		return fmt.Errorf("registry: id %d not minted", id)
	}
	if actual != owner {
		return fmt.Errorf("registry: %s does not own id %d", owner, id)
	}
	r.approvals[id] = delegate
	return nil
}

// Snapshot returns owner and approval maps for persistence.
func (r *InMemory) Snapshot() (owners map[uint64]uuid.UUID, approvals map[uint64]uuid.UUID) {
	owners = make(map[uint64]uuid.UUID, len(r.owners))
	for k, v := range r.owners {
		owners[k] = v
	}
	approvals = make(map[uint64]uuid.UUID, len(r.approvals))
	for k, v := range r.approvals {
		approvals[k] = v
	}
	return owners, approvals
}

// Restore replaces registry state from a snapshot.
func (r *InMemory) Restore(owners, approvals map[uint64]uuid.UUID) {
	r.owners = make(map[uint64]uuid.UUID, len(owners))
	for k, v := range owners {
		r.owners[k] = v
	}
	r.approvals = make(map[uint64]uuid.UUID, len(approvals))
	for k, v := range approvals {
		r.approvals[k] = v
	}
}
