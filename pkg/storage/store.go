package storage

import (
	"github.com/cuemby/cronfleet/pkg/types"
)

// Store defines the interface for scheduler state storage: the
// content-addressed task registry, the time-wheel slot buckets, the
// agent registry, its two ordered queues, and the owner-mutable
// settings scalar. Implemented by BoltDB-backed storage.
type Store interface {
	// Tasks
	PutTask(task *types.Task) error
	GetTask(fp types.Fingerprint) (*types.Task, error)
	ListTasks() ([]*types.Task, error)
	DeleteTask(fp types.Fingerprint) error

	// Slots (the persisted half of the time wheel; pkg/slotindex holds
	// the in-memory, floor-queryable mirror rebuilt from this on boot)
	PutSlot(slotID uint64, bucket []types.Fingerprint) error
	GetSlot(slotID uint64) ([]types.Fingerprint, bool, error)
	DeleteSlot(slotID uint64) error
	ListSlotIDs() ([]uint64, error)

	// Agents
	PutAgent(agent *types.Agent) error
	GetAgent(principal types.Principal) (*types.Agent, error)
	ListAgents() ([]*types.Agent, error)
	DeleteAgent(principal types.Principal) error

	// Queues and cursor
	PutActiveQueue(queue []types.Principal) error
	GetActiveQueue() ([]types.Principal, error)
	PutPendingQueue(queue []types.Principal) error
	GetPendingQueue() ([]types.Principal, error)
	PutCursor(cursor int) error
	GetCursor() (int, error)

	// Settings
	PutSettings(settings *types.Settings) error
	GetSettings() (*types.Settings, error)

	Close() error
}

// ErrNotFound is returned by Get* methods when the requested key does
// not exist.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "storage: key not found" }
