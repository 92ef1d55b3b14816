package s3

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

func (d *S3Downloader) Download(ctx context.Context, job *utils.VHDJob) error {
	log := utils.GetLogger("s3")
	bucket := job.Metadata["bucket"].(string)
	key := job.Metadata["key"].(string)
	size := job.Metadata["size"].(int64)
	profile, _ := job.Metadata["profile"].(string)
	if profile == "" {
		profile = "default"
	}

	result := &utils.Result{
		URL:            job.URL,
		OutputPath:     job.OutputPath,
		Connections:    job.Connections,
		ExpectedDigest: job.ExpectedDigest,
	}
	job.Result = result

	client, err := getS3Client(ctx, profile)
	if err != nil {
		return err
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Int64("size", size).Msg("Starting ranged S3 download")

	outFile, err := os.Create(job.OutputPath)
	if err != nil {
		return fmt.Errorf("error creating output file: %v", err)
	}
	defer outFile.Close()

	writer := &progressWriterAt{file: outFile, total: size, onProgress: job.ProgressFunc, startTime: time.Now()}
	downloader := manager.NewDownloader(client.client, func(o *manager.Downloader) {
		o.PartSize = utils.DefaultBufferSize
		o.Concurrency = job.Connections
	})

	fetchStart := time.Now()
	_, err = downloader.Download(ctx, writer, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	result.Timings = append(result.Timings, utils.StageTiming{Stage: "fetch", Start: fetchStart, End: time.Now()})
	if err != nil {
		return fmt.Errorf("error downloading object: %v", err)
	}
	if err := outFile.Sync(); err != nil {
		return fmt.Errorf("error flushing output file: %v", err)
	}

	if job.Verify || job.ExpectedDigest != "" {
		verifyStart := time.Now()
		local, err := utils.ComputeFileSHA256(ctx, job.OutputPath)
		result.Timings = append(result.Timings, utils.StageTiming{Stage: "verify", Start: verifyStart, End: time.Now()})
		if err != nil {
			return err
		}
		result.LocalDigest = local
		if job.ExpectedDigest != "" {
			verified := strings.EqualFold(local, job.ExpectedDigest)
			result.Verified = &verified
			if !verified {
				return fmt.Errorf("digest mismatch: expected %s, computed %s", strings.ToLower(job.ExpectedDigest), local)
			}
		}
	}
	return nil
}

// progressWriterAt wraps the output file so the s3 manager's concurrent
// part writes feed the progress display.
type progressWriterAt struct {
	file       *os.File
	total      int64
	written    atomic.Int64
	onProgress func(utils.ProgressSnapshot)
	startTime  time.Time
}

func (w *progressWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.file.WriteAt(p, off)
	if n > 0 && w.onProgress != nil {
		downloaded := w.written.Add(int64(n))
		if downloaded > w.total {
			downloaded = w.total
		}
		elapsed := time.Since(w.startTime)
		snap := utils.ProgressSnapshot{
			Downloaded: downloaded,
			Total:      w.total,
			Elapsed:    elapsed,
		}
		if w.total > 0 {
			snap.Percent = float64(downloaded) / float64(w.total) * 100
		}
		if elapsed > 0 {
			snap.Speed = float64(downloaded) / elapsed.Seconds()
		}
		w.onProgress(snap)
	}
	return n, err
}
