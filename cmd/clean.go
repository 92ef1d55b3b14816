package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/output"
	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [path]",
		Short: "Remove stale staging directories",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := "."
			if len(args) == 1 {
				dir = filepath.Dir(args[0])
			}
			if err := utils.Clean(dir); err != nil {
				output.PrintError("Error cleaning up staging directory")
				os.Exit(1)
			}
			output.PrintSuccess("Staging directory cleaned up")
		},
	}
}
