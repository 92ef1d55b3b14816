package vhdhttp

import (
	"fmt"
	"path/filepath"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

// planSegments partitions [0, length) into at most n contiguous
// intervals of ceil(length/n) bytes. The last segment absorbs the
// remainder so it ends at length-1 exactly; n is clamped to length, and
// when fewer than n intervals of that size already cover length (e.g.
// length 9, n 4 gives 3), no empty trailing segment is planned.
func planSegments(length int64, n int, stagingDir string) []utils.Segment {
	if n < 1 {
		n = 1
	}
	if int64(n) > length {
		n = int(length)
	}
	segmentSize := length / int64(n)
	if length%int64(n) != 0 {
		segmentSize++
	}
	segments := make([]utils.Segment, 0, n)
	for i := range n {
		start := int64(i) * segmentSize
		if start > length-1 {
			break
		}
		end := start + segmentSize - 1
		if end > length-1 {
			end = length - 1
		}
		segments = append(segments, utils.Segment{
			Index: i,
			Start: start,
			End:   end,
			Path:  filepath.Join(stagingDir, fmt.Sprintf("%s%d", utils.SegmentFilePrefix, i)),
		})
	}
	return segments
}
