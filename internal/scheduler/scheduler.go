package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	vhdhttp "github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/downloaders/http"
	vhds3 "github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/downloaders/s3"
	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/output"
	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

// downloaderRegistry maps job types to their downloader implementations
var downloaderRegistry = map[string]utils.Downloader{
	"http": &vhdhttp.HTTPDownloader{},
	"s3":   &vhds3.S3Downloader{},
}

var ErrJobsFailed = errors.New("one or more jobs failed")

// Run executes the jobs through numWorkers workers, wiring each job's
// progress to the shared output manager. It returns ErrJobsFailed if
// any job did not complete.
func Run(ctx context.Context, jobs []utils.VHDJob, numWorkers int) error {
	if err := validateStaging(jobs); err != nil {
		return err
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	outputMgr := output.NewManager()
	outputMgr.StartDisplay()
	defer outputMgr.StopDisplay()

	jobCh := make(chan utils.VHDJob, len(jobs))
	for _, job := range jobs {
		job.ID = uuid.NewString()
		jobCh <- job
	}
	close(jobCh)

	var wg sync.WaitGroup
	var failures sync.Map
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processJobs(ctx, jobCh, outputMgr, &failures)
		}()
	}
	wg.Wait()

	var failed bool
	failures.Range(func(_, _ any) bool {
		failed = true
		return false
	})
	if failed {
		return ErrJobsFailed
	}
	return nil
}

// validateStaging rejects job sets whose HTTP downloads share an output
// directory: they would share <dir>/.segments and clobber each other.
func validateStaging(jobs []utils.VHDJob) error {
	seen := make(map[string]string)
	for _, job := range jobs {
		if job.JobType != "http" {
			continue
		}
		dir := filepath.Dir(job.OutputPath)
		if prior, ok := seen[dir]; ok {
			return fmt.Errorf("jobs %q and %q share output directory %q and would share its staging area", prior, job.URL, dir)
		}
		seen[dir] = job.URL
	}
	return nil
}

func processJobs(ctx context.Context, jobCh <-chan utils.VHDJob, outputMgr *output.Manager, failures *sync.Map) {
	log := utils.GetLogger("scheduler")
	for job := range jobCh {
		if ctx.Err() != nil {
			return
		}
		name := job.OutputPath
		if name == "" {
			name = job.URL
		}
		funcID := outputMgr.RegisterFunction(name)

		downloader, exists := downloaderRegistry[job.JobType]
		if !exists {
			err := fmt.Errorf("unknown job type: %s", job.JobType)
			outputMgr.ReportError(funcID, err, nil)
			failures.Store(job.ID, err)
			continue
		}

		outputMgr.SetStatus(funcID, "pending")
		outputMgr.SetMessage(funcID, fmt.Sprintf("Validating %s job", job.JobType))
		if err := downloader.ValidateJob(&job); err != nil {
			outputMgr.ReportError(funcID, fmt.Errorf("validation failed: %v", err), nil)
			failures.Store(job.ID, err)
			continue
		}

		outputMgr.SetMessage(funcID, fmt.Sprintf("Building %s job", job.JobType))
		if err := downloader.BuildJob(ctx, &job); err != nil {
			outputMgr.ReportError(funcID, fmt.Errorf("build failed: %v", err), nil)
			failures.Store(job.ID, err)
			continue
		}

		outputMgr.SetMessage(funcID, fmt.Sprintf("Downloading %s", job.OutputPath))
		job.ProgressFunc = func(snap utils.ProgressSnapshot) {
			outputMgr.SetProgress(funcID, snap)
		}
		err := downloader.Download(ctx, &job)
		resultLines := output.RenderResult(job.Result)
		if err != nil {
			log.Debug().Err(err).Str("url", job.URL).Msg("Job failed")
			outputMgr.ReportError(funcID, err, resultLines)
			failures.Store(job.ID, err)
			continue
		}
		outputMgr.Complete(funcID, fmt.Sprintf("Completed %s", job.OutputPath), resultLines)
	}
}
