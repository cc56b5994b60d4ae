// Package taskregistry implements the content-addressed task store:
// fingerprint derivation, create/refill/delete, and the execution-cost
// estimator. It holds no opinion about slot placement or dispatch
// ordering — that is pkg/slotindex and pkg/engine's job.
package taskregistry

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/storage"
	"github.com/cuemby/cronfleet/pkg/types"
)

// ErrNotFound is returned when a fingerprint has no task record.
var ErrNotFound = errors.New("taskregistry: no task for fingerprint")

// ErrFingerprintExists is returned by Create when the derived
// fingerprint already names a task.
var ErrFingerprintExists = errors.New("taskregistry: fingerprint already exists")

// Fingerprint derives a task's content-addressed identity from its
// immutable fields. No timestamp or nonce is mixed in, so the same
// (contract, function, cadence, owner) tuple always yields the same
// fingerprint — this is what makes create_task idempotent for retries
// and lets clients precompute a fingerprint offline.
func Fingerprint(contractID types.Principal, functionID, cadenceExpr string, owner types.Principal) types.Fingerprint {
	h := sha256.New()
	h.Write([]byte(contractID))
	h.Write([]byte{0})
	h.Write([]byte(functionID))
	h.Write([]byte{0})
	h.Write([]byte(cadenceExpr))
	h.Write([]byte{0})
	h.Write([]byte(owner))
	var fp types.Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// Registry is the in-memory, store-backed task index.
type Registry struct {
	store storage.Store
	tasks map[types.Fingerprint]*types.Task
}

// New loads every persisted task into memory, so lookups never touch
// the store on the read path.
func New(store storage.Store) (*Registry, error) {
	tasks, err := store.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("taskregistry: load: %w", err)
	}
	r := &Registry{store: store, tasks: make(map[types.Fingerprint]*types.Task, len(tasks))}
	for _, t := range tasks {
		r.tasks[t.Fingerprint] = t
	}
	return r, nil
}

// Create inserts task, failing with ErrFingerprintExists on collision.
func (r *Registry) Create(task types.Task) error {
	if _, ok := r.tasks[task.Fingerprint]; ok {
		return ErrFingerprintExists
	}
	if err := r.store.PutTask(&task); err != nil {
		return fmt.Errorf("taskregistry: create: %w", err)
	}
	r.tasks[task.Fingerprint] = &task
	return nil
}

// Get returns the task for fp, if present. The returned pointer is
// registry-owned; callers must not mutate it directly — use SetTotalDeposit.
func (r *Registry) Get(fp types.Fingerprint) (*types.Task, bool) {
	t, ok := r.tasks[fp]
	return t, ok
}

// List returns every task, in unspecified order.
func (r *Registry) List() []*types.Task {
	out := make([]*types.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}

// ListFiltered returns tasks owned by owner (if non-nil), offset/limited,
// backing the paginated get_tasks view.
func (r *Registry) ListFiltered(offset, limit int, owner *types.Principal) []*types.Task {
	all := r.List()
	var matched []*types.Task
	for _, t := range all {
		if owner != nil && t.Owner != *owner {
			continue
		}
		matched = append(matched, t)
	}
	if offset >= len(matched) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end]
}

// SetTotalDeposit persists a new TotalDeposit for fp, used by refill
// (adds) and dispatch (debits).
func (r *Registry) SetTotalDeposit(fp types.Fingerprint, total amount.Amount) error {
	t, ok := r.tasks[fp]
	if !ok {
		return ErrNotFound
	}
	updated := *t
	updated.TotalDeposit = total
	if err := r.store.PutTask(&updated); err != nil {
		return fmt.Errorf("taskregistry: update: %w", err)
	}
	r.tasks[fp] = &updated
	return nil
}

// Delete removes a task outright (owner removal or exit-task path).
func (r *Registry) Delete(fp types.Fingerprint) error {
	if _, ok := r.tasks[fp]; !ok {
		return ErrNotFound
	}
	if err := r.store.DeleteTask(fp); err != nil {
		return fmt.Errorf("taskregistry: delete: %w", err)
	}
	delete(r.tasks, fp)
	return nil
}
