/*
Package storage provides BoltDB-backed persistence for the scheduler's
state: the task registry, the time-wheel slot buckets, the agent
registry, its two ordered queues plus rotation cursor, and the
owner-mutable settings record.

Each entity lives in its own bucket, keyed by fingerprint hex (tasks),
big-endian slot-id (slots), or principal (agents); queues and settings
are single JSON blobs under a fixed key in their own buckets. Every
method runs in its own bbolt transaction — reads see a consistent
snapshot (db.View), writes are serialized and fsync'd on commit
(db.Update). A single method is atomic; a caller operation that spans
several methods is not, so a crash between two calls leaves the earlier
writes committed and the later ones missing.

pkg/engine treats BoltStore as the system of record and pkg/slotindex as
a rebuildable in-memory index over the slots bucket; on startup the
engine replays ListSlotIDs/GetSlot into a fresh slotindex.Index rather
than keeping the btree itself durable.
*/
package storage
