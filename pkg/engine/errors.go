package engine

import "errors"

// Sentinel errors surfaced by Engine methods, one per failure kind the
// scheduler distinguishes. pkg/api maps these to HTTP status codes with
// errors.Is; lower-level packages (taskregistry, agentregistry, storage)
// keep their own local sentinels and are translated into these at the
// point Engine calls into them.
var (
	ErrPaused              = errors.New("engine: scheduler is paused")
	ErrNotOwner            = errors.New("engine: caller is not the owner")
	ErrNotTaskOwner        = errors.New("engine: caller is not the task owner")
	ErrAgentNotRegistered  = errors.New("engine: caller is not a registered agent")
	ErrAgentAlreadyExists  = errors.New("engine: agent already registered")
	ErrInvalidCadence      = errors.New("engine: invalid cadence expression")
	ErrCadenceRegression   = errors.New("engine: next slot is not after current slot")
	ErrGasTooHigh          = errors.New("engine: requested gas plus reserved gas exceeds platform maximum")
	ErrInvalidTarget       = errors.New("engine: invalid dispatch target")
	ErrInsufficientDeposit = errors.New("engine: attached deposit below required minimum")
	ErrTaskExists          = errors.New("engine: task fingerprint already exists")
	ErrNoTaskForHash       = errors.New("engine: no task for fingerprint")
	ErrNoSlotTasks         = errors.New("engine: no due slot tasks")
	ErrNotYourTurn         = errors.New("engine: caller is not the current dispatcher")
	ErrStorageUnderflow    = errors.New("engine: positive balance above storage quota, use force")
)
