package main

import "github.com/SkylineCommunications/SLC-VHD-DownloadManager/cmd"

func main() {
	cmd.Execute()
}
