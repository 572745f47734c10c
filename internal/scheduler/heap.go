package scheduler

import "sort"

// itemHeap orders by priority level (lower drains first), then FIFO by
// admission sequence.
type itemHeap []*QueueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(*QueueItem)) }

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// ordered returns the live entries in drain order without disturbing the
// heap. Entries lazily removed by Cancel are filtered out via the queued
// map.
func (h itemHeap) ordered(queued map[string]*QueueItem) []*QueueItem {
	out := make([]*QueueItem, 0, len(queued))
	for _, item := range h {
		if current, ok := queued[item.JobID]; ok && current == item {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}
