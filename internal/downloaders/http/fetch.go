package vhdhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

// fetchSegment downloads one segment to its staging file, retrying up to
// maxRetries attempts with a fixed backoff. It is the sole writer of its
// status slot. On cancellation the slot is left Retrying and the context
// error is returned.
func fetchSegment(ctx context.Context, client utils.HTTPDoer, url string, seg utils.Segment, maxRetries int, chaos utils.ChaosConfig, table *statusTable) error {
	log := utils.GetLogger("fetch").With().Int("segment", seg.Index).Logger()
	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			select {
			case <-time.After(utils.RetryBackoff):
			case <-ctx.Done():
				table.setRetrying(seg.Index, attempt, lastErr)
				return ctx.Err()
			}
		}
		err := downloadSegment(ctx, client, url, seg, chaos, attempt)
		if err == nil {
			table.setSucceeded(seg.Index, attempt)
			log.Debug().Int("retries", attempt).Msg("Segment completed")
			return nil
		}
		if ctx.Err() != nil {
			table.setRetrying(seg.Index, attempt, err)
			return ctx.Err()
		}
		lastErr = err
		if attempt+1 < maxRetries {
			log.Debug().Err(err).Int("attempt", attempt+1).Int("maxRetries", maxRetries).Msg("Segment attempt failed, will retry")
			table.setRetrying(seg.Index, attempt+1, err)
		}
	}
	table.setFailed(seg.Index, maxRetries, lastErr)
	log.Debug().Err(lastErr).Int("maxRetries", maxRetries).Msg("Segment failed after exhausting retries")
	return lastErr
}

// downloadSegment is a single attempt: range GET, stream to the staging
// file, validate the on-disk length. Every fault is retryable.
func downloadSegment(ctx context.Context, client utils.HTTPDoer, url string, seg utils.Segment, chaos utils.ChaosConfig, attempt int) error {
	if chaos.Enabled() {
		if err := injectChaos(ctx, chaos, seg, attempt); err != nil {
			return err
		}
	}

	// A prior attempt may have left a partial file behind
	if _, err := os.Stat(seg.Path); err == nil {
		if err := os.Remove(seg.Path); err != nil {
			return fmt.Errorf("error removing stale segment file: %v", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", seg.Start, seg.End))
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	segmentFile, err := os.OpenFile(seg.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error opening segment file: %v", err)
	}
	defer segmentFile.Close()

	buffer := make([]byte, utils.DefaultBufferSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := segmentFile.Write(buffer[:bytesRead]); writeErr != nil {
				return writeErr
			}
			written += int64(bytesRead)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return readErr
		}
	}
	if err := segmentFile.Sync(); err != nil {
		return fmt.Errorf("error flushing segment file: %v", err)
	}
	if err := segmentFile.Close(); err != nil {
		return fmt.Errorf("error closing segment file: %v", err)
	}

	info, err := os.Stat(seg.Path)
	if err != nil {
		return fmt.Errorf("error checking segment file: %v", err)
	}
	if info.Size() != seg.Length() {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d bytes", seg.Length(), info.Size())
	}
	return nil
}
