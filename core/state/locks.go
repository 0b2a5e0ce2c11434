package state

import (
	"hash/fnv"
	"sort"
	"sync"
)

const lockStripes = 1024

// lockTable serialises operations per record. Keys hash onto a fixed set of
// stripes that are always acquired in ascending order, so two operations with
// overlapping key sets can never deadlock.
type lockTable struct {
	stripes [lockStripes]sync.Mutex
}

func stripeOf(key []byte) int {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % lockStripes)
}

func (t *lockTable) stripesFor(keys [][]byte) []int {
	seen := make(map[int]struct{}, len(keys))
	out := make([]int, 0, len(keys))
	for _, key := range keys {
		idx := stripeOf(key)
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// acquire locks every stripe covering keys and returns the matching release.
func (t *lockTable) acquire(keys [][]byte) func() {
	held := t.stripesFor(keys)
	for _, idx := range held {
		t.stripes[idx].Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			t.stripes[held[i]].Unlock()
		}
	}
}
