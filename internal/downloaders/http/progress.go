package vhdhttp

import (
	"context"
	"os"
	"time"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

const aggregatorTick = 300 * time.Millisecond
const minSpeedForETA = 1024 // B/s below which the ETA is omitted

// aggregator samples on-disk segment sizes and the status table on a
// fixed cadence and emits snapshots. It never mutates download state and
// tolerates files appearing, growing, or being deleted by a retrying
// fetcher mid-tick.
type aggregator struct {
	segments   []utils.Segment
	table      *statusTable
	total      int64
	onProgress func(utils.ProgressSnapshot)
	startTime  time.Time
}

func newAggregator(segments []utils.Segment, table *statusTable, total int64, onProgress func(utils.ProgressSnapshot)) *aggregator {
	return &aggregator{
		segments:   segments,
		table:      table,
		total:      total,
		onProgress: onProgress,
		startTime:  time.Now(),
	}
}

// run ticks until done closes, then emits one final snapshot.
func (a *aggregator) run(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(aggregatorTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.emit()
		case <-done:
			a.emit()
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *aggregator) emit() {
	if a.onProgress == nil {
		return
	}
	a.onProgress(a.sample())
}

func (a *aggregator) sample() utils.ProgressSnapshot {
	var downloaded int64
	for _, seg := range a.segments {
		info, err := os.Stat(seg.Path)
		if err != nil {
			continue // missing or transiently unreadable counts as 0
		}
		downloaded += info.Size()
	}
	if downloaded > a.total {
		downloaded = a.total
	}
	elapsed := time.Since(a.startTime)
	snap := utils.ProgressSnapshot{
		Downloaded: downloaded,
		Total:      a.total,
		Elapsed:    elapsed,
		Statuses:   a.table.snapshot(),
	}
	if a.total > 0 {
		snap.Percent = float64(downloaded) / float64(a.total) * 100
	}
	if elapsed > 0 {
		snap.Speed = float64(downloaded) / elapsed.Seconds()
	}
	if snap.Speed >= minSpeedForETA && downloaded < a.total {
		remaining := float64(a.total - downloaded)
		snap.ETA = time.Duration(remaining / snap.Speed * float64(time.Second))
		snap.HasETA = true
	}
	return snap
}
