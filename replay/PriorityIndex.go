package replay

import (
	"fmt"
	"sort"
)

// priorityEntry pairs a store slot with its sampling priority
type priorityEntry struct {
	slot     int
	priority float64
}

// priorityIndex maintains a rank ordering over store slots keyed by
// priority. It is an indexed binary max-heap: a slot→heap-position map
// gives O(log n) insert, update, and remove, while the heap array
// itself serves as an approximate rank order (position 0 is always the
// exact maximum). A periodic full sort keeps the approximation tight.
//
// Invariant: the index holds exactly one entry per live store slot.
// Slots evicted from the store must be removed from the index in the
// same step.
type priorityIndex struct {
	heap []priorityEntry
	pos  []int // slot -> heap position, -1 when absent
}

// newPriorityIndex returns an empty priorityIndex able to track slots
// in [0, capacity).
func newPriorityIndex(capacity int) *priorityIndex {
	pos := make([]int, capacity)
	for i := range pos {
		pos[i] = -1
	}
	return &priorityIndex{
		heap: make([]priorityEntry, 0, capacity),
		pos:  pos,
	}
}

// len returns the number of entries in the index
func (p *priorityIndex) len() int {
	return len(p.heap)
}

// contains returns whether the index holds an entry for slot
func (p *priorityIndex) contains(slot int) bool {
	return slot >= 0 && slot < len(p.pos) && p.pos[slot] >= 0
}

// insert adds an entry for slot, or updates its priority if the slot
// is already tracked.
func (p *priorityIndex) insert(slot int, priority float64) {
	if p.contains(slot) {
		p.update(slot, priority)
		return
	}
	p.heap = append(p.heap, priorityEntry{slot, priority})
	p.pos[slot] = len(p.heap) - 1
	p.siftUp(len(p.heap) - 1)
}

// update sets the priority of an existing entry and restores the heap
// ordering around it.
func (p *priorityIndex) update(slot int, priority float64) {
	i := p.pos[slot]
	old := p.heap[i].priority
	p.heap[i].priority = priority
	if priority > old {
		p.siftUp(i)
	} else if priority < old {
		p.siftDown(i)
	}
}

// remove deletes the entry for slot. Removing an untracked slot is a
// no-op.
func (p *priorityIndex) remove(slot int) {
	if !p.contains(slot) {
		return
	}
	i := p.pos[slot]
	last := len(p.heap) - 1

	p.swap(i, last)
	p.heap = p.heap[:last]
	p.pos[slot] = -1

	if i < last {
		p.siftDown(i)
		p.siftUp(i)
	}
}

// slotAtRank returns the store slot holding the transition of the
// argument rank, where rank 1 is the highest priority. Rank 1 is
// exact; other ranks are approximated by heap array position, which
// the periodic sort realigns with the true ordering.
func (p *priorityIndex) slotAtRank(rank int) (int, error) {
	if rank < 1 || rank > len(p.heap) {
		return 0, fmt.Errorf("slotatrank: rank %v outside [1, %v]", rank,
			len(p.heap))
	}
	return p.heap[rank-1].slot, nil
}

// priorityOf returns the priority of the entry at slot
func (p *priorityIndex) priorityOf(slot int) float64 {
	return p.heap[p.pos[slot]].priority
}

// maxPriority returns the largest priority in the index, or def when
// the index is empty.
func (p *priorityIndex) maxPriority(def float64) float64 {
	if len(p.heap) == 0 {
		return def
	}
	return p.heap[0].priority
}

// rebalance sorts the heap array into exact descending-priority order.
// A descending array satisfies the max-heap property, so all other
// operations remain valid afterwards.
func (p *priorityIndex) rebalance() {
	sort.SliceStable(p.heap, func(i, j int) bool {
		return p.heap[i].priority > p.heap[j].priority
	})
	for i, e := range p.heap {
		p.pos[e.slot] = i
	}
}

func (p *priorityIndex) swap(i, j int) {
	p.heap[i], p.heap[j] = p.heap[j], p.heap[i]
	p.pos[p.heap[i].slot] = i
	p.pos[p.heap[j].slot] = j
}

func (p *priorityIndex) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if p.heap[parent].priority >= p.heap[i].priority {
			return
		}
		p.swap(i, parent)
		i = parent
	}
}

func (p *priorityIndex) siftDown(i int) {
	n := len(p.heap)
	for {
		left, right := 2*i+1, 2*i+2
		largest := i
		if left < n && p.heap[left].priority > p.heap[largest].priority {
			largest = left
		}
		if right < n && p.heap[right].priority > p.heap[largest].priority {
			largest = right
		}
		if largest == i {
			return
		}
		p.swap(i, largest)
		i = largest
	}
}
