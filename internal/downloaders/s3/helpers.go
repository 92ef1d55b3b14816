package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Client struct {
	client *s3.Client
}

func getS3Client(ctx context.Context, profile string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithSharedConfigProfile(profile),
		config.WithRetryMode("adaptive"),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return &S3Client{
		client: s3.NewFromConfig(cfg),
	}, nil
}

// parseS3URL accepts "s3://bucket/key" or "bucket/key".
func parseS3URL(raw string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(raw, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 path: %s", raw)
	}
	return parts[0], parts[1], nil
}

func getS3ObjectSize(ctx context.Context, client *S3Client, bucket, key string) (int64, error) {
	headObj, err := client.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("error accessing S3 object: %v", err)
	}
	if headObj.ContentLength == nil || *headObj.ContentLength <= 0 {
		return 0, fmt.Errorf("S3 object reports no size")
	}
	return *headObj.ContentLength, nil
}
