// Package slotindex implements the discretized time wheel: an ordered
// map from slot-id to a LIFO bucket of task fingerprints, with a
// mandatory O(log n) floor lookup. A plain hash map cannot answer "what
// is the greatest scheduled slot not after now", which is what the
// dispatch path needs to drain overdue slots before newer ones.
package slotindex

import (
	"github.com/google/btree"

	"github.com/cuemby/cronfleet/pkg/types"
)

// entry is the btree element: slots are ordered by SlotID alone.
type entry struct {
	SlotID uint64
	Bucket []types.Fingerprint
}

func less(a, b entry) bool { return a.SlotID < b.SlotID }

// Index is the in-memory time wheel. It is not safe for concurrent use;
// callers serialize access (pkg/engine holds the lock that matters).
type Index struct {
	tree *btree.BTreeG[entry]
}

// New constructs an empty time wheel.
func New() *Index {
	return &Index{tree: btree.NewG(32, less)}
}

// Insert appends fingerprint to slotID's bucket, creating the bucket if
// it does not exist yet. Insertion order is preserved; Pop removes from
// the tail (LIFO).
func (idx *Index) Insert(slotID uint64, fp types.Fingerprint) {
	e, ok := idx.tree.Get(entry{SlotID: slotID})
	if !ok {
		e = entry{SlotID: slotID}
	}
	e.Bucket = append(e.Bucket, fp)
	idx.tree.ReplaceOrInsert(e)
}

// FloorKey returns the greatest slot-id <= query, and whether one
// exists. This is the only lookup the dispatch path may use — never an
// exact-equality Get — so that under-dispatched past slots drain first.
func (idx *Index) FloorKey(query uint64) (uint64, bool) {
	var found uint64
	var ok bool
	idx.tree.DescendLessOrEqual(entry{SlotID: query}, func(e entry) bool {
		found = e.SlotID
		ok = true
		return false
	})
	return found, ok
}

// Get returns the bucket stored at slotID, if any. The returned slice is
// a copy; callers must use Pop/Remove to mutate the index.
func (idx *Index) Get(slotID uint64) ([]types.Fingerprint, bool) {
	e, ok := idx.tree.Get(entry{SlotID: slotID})
	if !ok {
		return nil, false
	}
	out := make([]types.Fingerprint, len(e.Bucket))
	copy(out, e.Bucket)
	return out, true
}

// Pop removes and returns the tail fingerprint of slotID's bucket. If
// the bucket becomes empty it is removed eagerly — slot buckets are
// never stored empty. ok is false if the slot does not exist or its
// bucket is already empty.
func (idx *Index) Pop(slotID uint64) (types.Fingerprint, bool) {
	e, ok := idx.tree.Get(entry{SlotID: slotID})
	if !ok || len(e.Bucket) == 0 {
		return types.Fingerprint{}, false
	}
	last := e.Bucket[len(e.Bucket)-1]
	e.Bucket = e.Bucket[:len(e.Bucket)-1]
	if len(e.Bucket) == 0 {
		idx.tree.Delete(entry{SlotID: slotID})
	} else {
		idx.tree.ReplaceOrInsert(e)
	}
	return last, true
}

// Remove deletes slotID's bucket outright, used by the empty-bucket
// sweep and by remove_task's slot cleanup.
func (idx *Index) Remove(slotID uint64) {
	idx.tree.Delete(entry{SlotID: slotID})
}

// RemoveFingerprint removes a single fingerprint from slotID's bucket
// (used by remove_task, which must unlink a specific task regardless of
// its position in the bucket). The bucket is removed if it becomes
// empty.
func (idx *Index) RemoveFingerprint(slotID uint64, fp types.Fingerprint) bool {
	e, ok := idx.tree.Get(entry{SlotID: slotID})
	if !ok {
		return false
	}
	for i, cur := range e.Bucket {
		if cur == fp {
			e.Bucket = append(e.Bucket[:i], e.Bucket[i+1:]...)
			if len(e.Bucket) == 0 {
				idx.tree.Delete(entry{SlotID: slotID})
			} else {
				idx.tree.ReplaceOrInsert(e)
			}
			return true
		}
	}
	return false
}

// Len reports how many distinct slots currently hold a bucket.
func (idx *Index) Len() int {
	return idx.tree.Len()
}

// SlotIDs returns up to limit slot-ids starting at offset, in ascending
// order, backing get_slot_ids.
func (idx *Index) SlotIDs(offset, limit int) []uint64 {
	var out []uint64
	i := 0
	idx.tree.Ascend(func(e entry) bool {
		if i >= offset && len(out) < limit {
			out = append(out, e.SlotID)
		}
		i++
		return len(out) < limit
	})
	return out
}

// AlignDown floors a nanosecond timestamp to the nearest multiple of
// granularity not after it. Used to locate "what runs now": the caller
// computes AlignDown(now, granularity) and then FloorKey's that value.
func AlignDown(nanos, granularity uint64) uint64 {
	if granularity == 0 {
		return nanos
	}
	return nanos - (nanos % granularity)
}

// AlignUp ceilings a nanosecond timestamp to the nearest multiple of
// granularity not before it. Placement (create_task, reschedule_callback)
// uses AlignUp rather than AlignDown: a cadence-computed instant must
// land in a slot that has not started yet, or it would be immediately
// dispatchable before its due time.
func AlignUp(nanos, granularity uint64) uint64 {
	if granularity == 0 {
		return nanos
	}
	rem := nanos % granularity
	if rem == 0 {
		return nanos
	}
	return nanos + (granularity - rem)
}
