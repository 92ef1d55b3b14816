package vhdhttp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

// mergeSegments concatenates the segment files in strict index order
// into <outputPath>.tmp, then atomically renames it over outputPath.
// Each input is closed before the next is opened; on any failure the
// temporary file is unlinked.
func mergeSegments(ctx context.Context, segments []utils.Segment, outputPath string) error {
	log := utils.GetLogger("merge")
	for _, seg := range segments {
		if _, err := os.Stat(seg.Path); err != nil {
			return &MergeError{Index: seg.Index, Op: "missing segment file", Err: err}
		}
	}

	tempPath := outputPath + ".tmp"
	destFile, err := os.Create(tempPath)
	if err != nil {
		return &MergeError{Index: -1, Op: "create temp file", Err: err}
	}

	fail := func(index int, op string, err error) error {
		destFile.Close()
		os.Remove(tempPath)
		return &MergeError{Index: index, Op: op, Err: err}
	}

	buffer := make([]byte, utils.MergeBufferSize)
	var totalWritten int64
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return fail(seg.Index, "cancelled", err)
		}
		segmentFile, err := os.Open(seg.Path)
		if err != nil {
			return fail(seg.Index, "open segment", err)
		}
		written, err := io.CopyBuffer(destFile, segmentFile, buffer)
		segmentFile.Close()
		if err != nil {
			return fail(seg.Index, "copy segment", err)
		}
		if written != seg.Length() {
			return fail(seg.Index, "copy segment", fmt.Errorf("wrote %d bytes but segment length is %d", written, seg.Length()))
		}
		totalWritten += written
	}
	if err := destFile.Sync(); err != nil {
		return fail(-1, "flush temp file", err)
	}
	if err := destFile.Close(); err != nil {
		os.Remove(tempPath)
		return &MergeError{Index: -1, Op: "close temp file", Err: err}
	}

	if _, err := os.Stat(outputPath); err == nil {
		if err := os.Remove(outputPath); err != nil {
			os.Remove(tempPath)
			return &MergeError{Index: -1, Op: "remove existing output", Err: err}
		}
	}
	if err := os.Rename(tempPath, outputPath); err != nil {
		os.Remove(tempPath)
		return &MergeError{Index: -1, Op: "rename temp file", Err: err}
	}
	log.Debug().Int64("bytes", totalWritten).Str("output", outputPath).Msg("Merge completed")
	return nil
}

// removeStaging unlinks the segment files and their directory.
func removeStaging(segments []utils.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	for _, seg := range segments {
		if err := os.Remove(seg.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return os.Remove(filepath.Dir(segments[0].Path))
}
