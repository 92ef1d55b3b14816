package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := utils.ReadDownloadList(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading download list: %v\n", err)
				os.Exit(1)
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stderr, "No valid entries found in the batch file")
				os.Exit(1)
			}
			// Cap the total connection budget across parallel links
			connectionsPerLink := connections
			if workers*connectionsPerLink > utils.MaxConnectionsPerDownload {
				connectionsPerLink = max(utils.MaxConnectionsPerDownload/workers, 1)
			}
			var jobs []utils.VHDJob
			for _, entry := range entries {
				jobs = append(jobs, utils.VHDJob{
					JobType:          entry.Type,
					URL:              entry.URL,
					OutputPath:       entry.OutputPath,
					Connections:      connectionsPerLink,
					MaxRetries:       maxRetries,
					Verify:           verify,
					Metadata:         make(map[string]any),
					HTTPClientConfig: globalHTTPConfig,
				})
			}
			runJobs(jobs, workers)
		},
	}
}
