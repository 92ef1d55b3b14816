package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

type S3Downloader struct{}

func (d *S3Downloader) ValidateJob(job *utils.VHDJob) error {
	bucket, key, err := parseS3URL(job.URL)
	if err != nil {
		return err
	}
	if job.ExpectedDigest != "" && !utils.DigestRegex.MatchString(job.ExpectedDigest) {
		return fmt.Errorf("expected digest must be 64 hex characters")
	}
	job.Metadata["bucket"] = bucket
	job.Metadata["key"] = key
	return nil
}

func (d *S3Downloader) BuildJob(ctx context.Context, job *utils.VHDJob) error {
	bucket := job.Metadata["bucket"].(string)
	key := job.Metadata["key"].(string)
	profile, _ := job.Metadata["profile"].(string)
	if profile == "" {
		profile = "default"
	}

	client, err := getS3Client(ctx, profile)
	if err != nil {
		return err
	}
	size, err := getS3ObjectSize(ctx, client, bucket, key)
	if err != nil {
		return err
	}
	job.Metadata["size"] = size

	if job.OutputPath == "" {
		job.OutputPath = filepath.Base(key)
	}
	if _, err := os.Stat(job.OutputPath); err == nil {
		job.OutputPath = utils.RenewOutputPath(job.OutputPath)
	}

	if job.Verify && job.ExpectedDigest == "" {
		if digest := fetchSidecarDigest(ctx, client, bucket, key); digest != "" {
			job.ExpectedDigest = digest
		}
	}
	return nil
}

// fetchSidecarDigest reads <key>.sha256 from the same bucket and
// returns the first token that looks like a SHA-256 digest, or "".
func fetchSidecarDigest(ctx context.Context, client *S3Client, bucket, key string) string {
	obj, err := client.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key + ".sha256"),
	})
	if err != nil {
		return ""
	}
	defer obj.Body.Close()
	body, err := io.ReadAll(io.LimitReader(obj.Body, 64*1024))
	if err != nil {
		return ""
	}
	for _, token := range strings.Fields(string(body)) {
		if utils.DigestRegex.MatchString(token) {
			return strings.ToLower(token)
		}
	}
	return ""
}
