package vhdhttp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

const stageFetch = "fetch"
const stageMerge = "merge"
const stageVerify = "verify"

// Download runs the full segmented pipeline: probe, plan, N concurrent
// segment fetchers with a progress aggregator alongside, merge, verify.
// The returned Result carries stage timings and per-segment final states
// on failure as well as success.
func Download(ctx context.Context, req utils.DownloadRequest) (*utils.Result, error) {
	log := utils.GetLogger("engine")
	if req.Connections < 1 {
		req.Connections = 1
	}
	if req.Connections > utils.MaxConnectionsPerDownload {
		req.Connections = utils.MaxConnectionsPerDownload
	}
	if req.MaxRetries < 1 {
		req.MaxRetries = 1
	}

	result := &utils.Result{
		URL:            req.URL,
		OutputPath:     req.OutputPath,
		Connections:    req.Connections,
		ExpectedDigest: req.ExpectedDigest,
	}

	clientConfig := req.ClientConfig
	clientConfig.Connections = req.Connections
	clientConfig.HighThreadMode = req.Connections > 5
	client := utils.NewVHDHTTPClient(clientConfig)

	meta, err := probe(ctx, client, req.URL)
	if err != nil {
		return result, err
	}
	log.Debug().Int64("length", meta.Length).Int("connections", req.Connections).Msg("Origin probed")

	stagingDir := utils.StagingDir(req.OutputPath)
	if err := os.RemoveAll(stagingDir); err != nil {
		return result, fmt.Errorf("error removing stale staging directory: %v", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return result, fmt.Errorf("error creating staging directory: %v", err)
	}

	segments := planSegments(meta.Length, req.Connections, stagingDir)
	table := newStatusTable(len(segments))

	// Fetch stage: N fetchers plus the aggregator, joined cooperatively
	fetchStart := time.Now()
	agg := newAggregator(segments, table, meta.Length, req.OnProgress)
	aggDone := make(chan struct{})
	var aggWg sync.WaitGroup
	aggWg.Add(1)
	go func() {
		defer aggWg.Done()
		agg.run(ctx, aggDone)
	}()

	var wg sync.WaitGroup
	for _, seg := range segments {
		wg.Add(1)
		go func(seg utils.Segment) {
			defer wg.Done()
			fetchSegment(ctx, client, req.URL, seg, req.MaxRetries, req.Chaos, table)
		}(seg)
	}
	wg.Wait()
	close(aggDone)
	aggWg.Wait()
	result.Timings = append(result.Timings, utils.StageTiming{Stage: stageFetch, Start: fetchStart, End: time.Now()})
	result.Statuses = table.snapshot()

	// Cancellation: no merge, staging left for the next run to clear
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if failed := table.failed(); len(failed) > 0 {
		lastErrors := make(map[int]string, len(failed))
		for _, status := range result.Statuses {
			if status.State == utils.SegmentFailed {
				lastErrors[status.Index] = status.LastError
			}
		}
		exhausted := &SegmentExhaustedError{
			Indices:            failed,
			LastErrors:         lastErrors,
			RecommendedRetries: req.MaxRetries * 2,
		}
		// Staging is preserved on failure for diagnosis
		log.Debug().Ints("segments", failed).Int("recommendedRetries", exhausted.RecommendedRetries).Msg("Download failed, staging preserved")
		return result, exhausted
	}

	mergeStart := time.Now()
	if err := mergeSegments(ctx, segments, req.OutputPath); err != nil {
		result.Timings = append(result.Timings, utils.StageTiming{Stage: stageMerge, Start: mergeStart, End: time.Now()})
		return result, err
	}
	if !req.KeepSegments {
		if err := removeStaging(segments); err != nil {
			log.Debug().Err(err).Msg("Error removing staging directory")
		}
	}
	result.Timings = append(result.Timings, utils.StageTiming{Stage: stageMerge, Start: mergeStart, End: time.Now()})

	if req.Verify || req.ExpectedDigest != "" {
		verifyStart := time.Now()
		local, verified, err := verifyOutput(ctx, req.OutputPath, req.ExpectedDigest)
		result.Timings = append(result.Timings, utils.StageTiming{Stage: stageVerify, Start: verifyStart, End: time.Now()})
		result.LocalDigest = local
		if req.ExpectedDigest != "" {
			result.Verified = &verified
		}
		if err != nil {
			return result, err
		}
	}

	return result, nil
}
