package cmd

import (
	"github.com/spf13/cobra"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

func newS3Cmd() *cobra.Command {
	var outputPath string
	var profile string

	cmd := &cobra.Command{
		Use:   "s3 [BUCKET/KEY or s3://BUCKET/KEY]",
		Short: "Download a VHD image from AWS S3",
		Long: `Download a VHD image from AWS S3 with ranged concurrent part fetches.

Examples:
  vhdget s3 mybucket/images/gateway.vhdx
  vhdget s3 s3://mybucket/images/gateway.vhdx --profile myprofile`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := utils.VHDJob{
				JobType:          "s3",
				URL:              args[0],
				OutputPath:       outputPath,
				Connections:      connections,
				MaxRetries:       maxRetries,
				ExpectedDigest:   expectedHash,
				Verify:           verify,
				Metadata:         map[string]any{"profile": profile},
				HTTPClientConfig: globalHTTPConfig,
			}
			runJobs([]utils.VHDJob{job}, 1)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&profile, "profile", "default", "AWS profile to use")
	cmd.Flags().StringVar(&expectedHash, "hash", "", "Expected SHA-256 digest (64 hex characters)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the download against the expected digest (fetched from <key>.sha256 when --hash is not given)")
	return cmd
}
