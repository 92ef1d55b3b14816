package output

import (
	"strings"
	"testing"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

func statuses(n int) []utils.SegmentStatus {
	out := make([]utils.SegmentStatus, n)
	for i := range out {
		out[i] = utils.SegmentStatus{Index: i, State: utils.SegmentPending}
	}
	return out
}

func TestRenderHeatmapRows(t *testing.T) {
	cases := []struct {
		cells    int
		columns  int
		wantRows int
	}{
		{cells: 8, columns: 16, wantRows: 1},
		{cells: 16, columns: 16, wantRows: 1},
		{cells: 17, columns: 16, wantRows: 2},
		{cells: 64, columns: 16, wantRows: 4},
		{cells: 5, columns: 0, wantRows: 1}, // zero columns falls back to the default
	}
	for _, tc := range cases {
		rows := RenderHeatmap(statuses(tc.cells), tc.columns)
		if len(rows) != tc.wantRows {
			t.Errorf("RenderHeatmap(%d cells, %d columns) produced %d rows, want %d",
				tc.cells, tc.columns, len(rows), tc.wantRows)
		}
	}
}

func TestRenderHeatmapRetryCap(t *testing.T) {
	rows := RenderHeatmap([]utils.SegmentStatus{
		{Index: 0, State: utils.SegmentRetrying, Retries: 15},
	}, 16)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !strings.Contains(rows[0], "9") {
		t.Errorf("retry counts above 9 should render as 9, got %q", rows[0])
	}
}

func TestRenderSnapshotIncludesHeatmap(t *testing.T) {
	snap := utils.ProgressSnapshot{
		Downloaded: 512,
		Total:      1024,
		Percent:    50,
		Speed:      2048,
		Statuses:   statuses(32),
	}
	lines := RenderSnapshot(snap)
	// bar + rate line + two heatmap rows
	if len(lines) != 4 {
		t.Errorf("expected 4 lines, got %d: %v", len(lines), lines)
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(0); got != "0 B/s" {
		t.Errorf("FormatSpeed(0) = %q", got)
	}
	if got := FormatSpeed(1048576); got != "1.00 MB/s" {
		t.Errorf("FormatSpeed(1MiB) = %q", got)
	}
}

func TestPrintProgressBarClamps(t *testing.T) {
	// Out-of-range inputs must not panic and must render a full/empty bar
	if got := PrintProgressBar(-5, 100, 10); got == "" {
		t.Error("negative current should still render")
	}
	if got := PrintProgressBar(200, 100, 10); !strings.Contains(got, "100.0%") {
		t.Errorf("overfull bar should clamp to 100%%, got %q", got)
	}
}
