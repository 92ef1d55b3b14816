package vhdhttp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

type HTTPDownloader struct{}

func (d *HTTPDownloader) ValidateJob(job *utils.VHDJob) error {
	parsedURL, err := url.Parse(job.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}
	if job.ExpectedDigest != "" && !utils.DigestRegex.MatchString(job.ExpectedDigest) {
		return fmt.Errorf("expected digest must be 64 hex characters")
	}
	return nil
}

func (d *HTTPDownloader) BuildJob(ctx context.Context, job *utils.VHDJob) error {
	client := utils.NewVHDHTTPClient(job.HTTPClientConfig)

	// HEAD checks that the URL is reachable. The client follows
	// redirects itself, so job.URL is replaced only when a 301 or 302
	// with a Location header reaches this point unfollowed; range GETs
	// otherwise go to the original URL and are redirected again.
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, job.URL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error checking URL: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound {
		if location := resp.Header.Get("Location"); location != "" {
			job.URL = location
		}
	}

	if job.OutputPath == "" {
		parsedURL, _ := url.Parse(job.URL)
		pathParts := strings.Split(parsedURL.Path, "/")
		job.OutputPath = pathParts[len(pathParts)-1]
		if job.OutputPath == "" {
			job.OutputPath = "download"
		}
	}
	if _, err := os.Stat(job.OutputPath); err == nil {
		job.OutputPath = utils.RenewOutputPath(job.OutputPath)
	}

	// Verification requested without a digest: try the sidecar
	if job.Verify && job.ExpectedDigest == "" {
		if digest := FetchExpectedDigest(ctx, client, job.URL); digest != "" {
			job.ExpectedDigest = digest
		}
	}
	return nil
}

func (d *HTTPDownloader) Download(ctx context.Context, job *utils.VHDJob) error {
	req := utils.DownloadRequest{
		URL:            job.URL,
		OutputPath:     job.OutputPath,
		Connections:    job.Connections,
		MaxRetries:     job.MaxRetries,
		ExpectedDigest: job.ExpectedDigest,
		Verify:         job.Verify,
		KeepSegments:   job.KeepSegments,
		Chaos:          job.Chaos,
		OnProgress:     job.ProgressFunc,
		ClientConfig:   job.HTTPClientConfig,
	}
	result, err := Download(ctx, req)
	job.Result = result
	return err
}
