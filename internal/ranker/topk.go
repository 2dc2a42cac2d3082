package ranker

import "container/heap"

// topK keeps the best k hits with a bounded heap and returns them ordered.
func topK(hits []Hit, k int, less func(a, b Hit) bool) []Hit {
	h := &hitHeap{less: less}
	heap.Init(h)
	for _, hit := range hits {
		heap.Push(h, hit)
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]Hit, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Hit)
	}
	return result
}

// hitHeap is a min-heap on the ranking order: the root is the worst hit.
type hitHeap struct {
	hits []Hit
	less func(a, b Hit) bool
}

func (h hitHeap) Len() int { return len(h.hits) }

func (h hitHeap) Less(i, j int) bool { return h.less(h.hits[j], h.hits[i]) }

func (h hitHeap) Swap(i, j int) { h.hits[i], h.hits[j] = h.hits[j], h.hits[i] }

func (h *hitHeap) Push(x interface{}) {
	h.hits = append(h.hits, x.(Hit))
}

func (h *hitHeap) Pop() interface{} {
	old := h.hits
	n := len(old)
	item := old[n-1]
	h.hits = old[:n-1]
	return item
}
