package peerconn

import "github.com/joshuafuller/matterlink/internal/address"

// addressHeap is a container/heap priority queue over address.ServerAddress
// ordered by desirability (spec §4.8 step 4: "pending-addresses: priority
// heap of addresses waiting to be started").
type addressHeap []address.ServerAddress

func (h addressHeap) Len() int            { return len(h) }
func (h addressHeap) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h addressHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }

func (h *addressHeap) Push(x interface{}) {
	*h = append(*h, x.(address.ServerAddress))
}

func (h *addressHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// removeByKey deletes the entry whose URL matches key, re-heapifying in
// place. Used by the "address deleted while pending" path (spec §4.8 step
// 7).
func (h *addressHeap) removeByKey(key string) {
	idx := -1
	for i, a := range *h {
		if a.URL() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	n := len(*h)
	(*h)[idx] = (*h)[n-1]
	*h = (*h)[:n-1]
	fixHeap(h)
}

func fixHeap(h *addressHeap) {
	// Re-establish the heap invariant with a straightforward full rebuild;
	// pending-address lists stay small, so this is cheap relative to the
	// network round-trips it gates.
	arr := *h
	for i := len(arr)/2 - 1; i >= 0; i-- {
		siftDown(arr, i)
	}
}

func siftDown(h addressHeap, i int) {
	n := len(h)
	for {
		left, right, smallest := 2*i+1, 2*i+2, i
		if left < n && h.Less(left, smallest) {
			smallest = left
		}
		if right < n && h.Less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.Swap(i, smallest)
		i = smallest
	}
}
