package vhdhttp

import (
	"sync"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

// statusTable holds one slot per segment. Each slot has its own lock:
// fetcher i is the only writer of slot i, the aggregator snapshots all
// slots, and no global lock serializes the fetchers.
type statusTable struct {
	slots []statusSlot
}

type statusSlot struct {
	mu     sync.Mutex
	status utils.SegmentStatus
}

func newStatusTable(n int) *statusTable {
	t := &statusTable{slots: make([]statusSlot, n)}
	for i := range t.slots {
		t.slots[i].status = utils.SegmentStatus{Index: i, State: utils.SegmentPending}
	}
	return t
}

func (t *statusTable) setRetrying(index, retries int, err error) {
	s := &t.slots[index]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = utils.SegmentRetrying
	s.status.Retries = retries
	if err != nil {
		s.status.LastError = err.Error()
	}
}

func (t *statusTable) setSucceeded(index, retries int) {
	s := &t.slots[index]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = utils.SegmentSucceeded
	s.status.Retries = retries
}

func (t *statusTable) setFailed(index, retries int, err error) {
	s := &t.slots[index]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = utils.SegmentFailed
	s.status.Retries = retries
	if err != nil {
		s.status.LastError = err.Error()
	}
}

func (t *statusTable) snapshot() []utils.SegmentStatus {
	out := make([]utils.SegmentStatus, len(t.slots))
	for i := range t.slots {
		s := &t.slots[i]
		s.mu.Lock()
		out[i] = s.status
		s.mu.Unlock()
	}
	return out
}

func (t *statusTable) failed() []int {
	var indices []int
	for _, status := range t.snapshot() {
		if status.State == utils.SegmentFailed {
			indices = append(indices, status.Index)
		}
	}
	return indices
}
