package vhdhttp

import (
	"context"
	"fmt"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

// injectChaos returns a synthetic fault for the attempt, or nil when the
// attempt should proceed normally. Faults are handled by the fetcher
// exactly like real ones: they count against the retry budget and show
// up in the status table.
func injectChaos(ctx context.Context, chaos utils.ChaosConfig, seg utils.Segment, attempt int) error {
	if chaos.FailFirstSegment && seg.Index == 0 && attempt == 0 {
		return fmt.Errorf("chaos: synthetic status code 503 for segment 0")
	}
	if chaos.HangSegment && seg.Index == 1 {
		timeout := chaos.HangTimeout
		if timeout <= 0 {
			timeout = utils.DefaultChaosHangTimeout
		}
		hangCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		<-hangCtx.Done()
		return fmt.Errorf("chaos: segment 1 attempt hung: %w", hangCtx.Err())
	}
	return nil
}
