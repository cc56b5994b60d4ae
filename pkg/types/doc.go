/*
Package types defines the core data structures shared by cronfleet's
scheduling engine: task records, agent records, fingerprints and the
global settings scalars.

# Core types

  - Fingerprint: a 32-byte content hash identifying a task, encoded as
    base64 on the wire and as hex for storage keys.
  - Task: the content-addressed record created by create_task; immutable
    except for TotalDeposit.
  - Agent: the record created by register_agent; tracks status, reward
    balance, executed-task counter and the last missed slot.
  - Settings: owner-mutable tunables (pause flag, slot granularity, fees,
    gas price, agent/task ratio, eviction threshold, storage quota).

Amount-typed fields use pkg/amount.Amount rather than a native integer
because prepaid deposits routinely exceed math.MaxUint64.
*/
package types
