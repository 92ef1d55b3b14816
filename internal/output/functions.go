package output

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

// HeatmapColumns is the default number of cells per heatmap row.
const HeatmapColumns = 16

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders a bytes-per-second rate
func FormatSpeed(bps float64) string {
	if bps <= 0 {
		return "0 B/s"
	}
	formatted := FormatBytes(uint64(bps))
	return formatted[:len(formatted)-1] + "B/s"
}

func FormatETA(eta time.Duration) string {
	return eta.Round(time.Second).String()
}

// PrintProgressBar creates a progress bar string
func PrintProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(fmt.Sprintf("%s %.1f%% %s ", bar, percent*100, StyleSymbols["bullet"]))
}

// RenderHeatmap renders the per-segment status grid, one cell per
// segment in index order, columns cells per row. Each cell shows the
// segment's retry count; color encodes its state.
func RenderHeatmap(statuses []utils.SegmentStatus, columns int) []string {
	if columns <= 0 {
		columns = HeatmapColumns
	}
	var rows []string
	var row strings.Builder
	for i, status := range statuses {
		retries := status.Retries
		if retries > 9 {
			retries = 9
		}
		cell := fmt.Sprintf("%d", retries)
		switch status.State {
		case utils.SegmentSucceeded:
			cell = successStyle.Render(cell)
		case utils.SegmentRetrying:
			cell = warningStyle.Render(cell)
		case utils.SegmentFailed:
			cell = errorStyle.Render(cell)
		default:
			cell = neutralStyle.Render(cell)
		}
		row.WriteString(cell)
		if (i+1)%columns == 0 || i == len(statuses)-1 {
			rows = append(rows, row.String())
			row.Reset()
		} else {
			row.WriteString(" ")
		}
	}
	return rows
}

// RenderSnapshot turns one aggregator tick into display lines:
// progress bar, rate line, and the heatmap grid.
func RenderSnapshot(snap utils.ProgressSnapshot) []string {
	lines := []string{PrintProgressBar(snap.Downloaded, snap.Total, 30)}
	rate := fmt.Sprintf("%s / %s %s %s",
		FormatBytes(uint64(snap.Downloaded)), FormatBytes(uint64(snap.Total)),
		StyleSymbols["bullet"], FormatSpeed(snap.Speed))
	if snap.HasETA {
		rate += fmt.Sprintf(" %s ETA %s", StyleSymbols["bullet"], FormatETA(snap.ETA))
	}
	lines = append(lines, debugStyle.Render(rate))
	lines = append(lines, RenderHeatmap(snap.Statuses, HeatmapColumns)...)
	return lines
}

// RenderResult renders the final summary: stage timings and, when the
// run carried segment statuses, their final states.
func RenderResult(result *utils.Result) []string {
	if result == nil {
		return nil
	}
	var lines []string
	for _, timing := range result.Timings {
		lines = append(lines, fmt.Sprintf("%s %s: %s", StyleSymbols["dot"], timing.Stage, timing.Duration().Round(time.Millisecond)))
	}
	if result.LocalDigest != "" {
		lines = append(lines, fmt.Sprintf("%s sha256: %s", StyleSymbols["dot"], result.LocalDigest))
	}
	if result.Verified != nil {
		if *result.Verified {
			lines = append(lines, FSuccess(fmt.Sprintf("%s verified against expected digest", StyleSymbols["pass"])))
		} else {
			lines = append(lines, FError(fmt.Sprintf("%s digest mismatch (expected %s)", StyleSymbols["fail"], result.ExpectedDigest)))
		}
	}
	lines = append(lines, RenderHeatmap(result.Statuses, HeatmapColumns)...)
	for _, status := range result.Statuses {
		if status.State == utils.SegmentFailed {
			lines = append(lines, FError(fmt.Sprintf("%s segment %d failed after %d retries: %s",
				StyleSymbols["fail"], status.Index, status.Retries, status.LastError)))
		}
	}
	return lines
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default fallback width
	}
	return width
}

func getTerminalHeight() int {
	height, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24 // Default fallback height
	}
	return height
}

func wrapText(text string, indent int) []string {
	termWidth := getTerminalWidth()
	maxWidth := termWidth - indent - 2
	if maxWidth <= 10 {
		maxWidth = 80
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return []string{text}
	}
	var lines []string
	remaining := text
	for utf8.RuneCountInString(remaining) > maxWidth {
		runes := []rune(remaining)
		lines = append(lines, string(runes[:maxWidth]))
		remaining = string(runes[maxWidth:])
	}
	if remaining != "" {
		lines = append(lines, remaining)
	}
	return lines
}
