package vhdhttp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// rangeServer serves data with full HEAD and Range support.
func rangeServer(data []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "image.vhd", time.Time{}, bytes.NewReader(data))
	}))
}

func newRequest(url, outputPath string, connections, retries int) utils.DownloadRequest {
	return utils.DownloadRequest{
		URL:         url,
		OutputPath:  outputPath,
		Connections: connections,
		MaxRetries:  retries,
	}
}

func TestDownloadHappyPath(t *testing.T) {
	data := testData(1024 * 1024)
	server := rangeServer(data)
	defer server.Close()

	dir := t.TempDir()
	outputPath := filepath.Join(dir, "image.vhd")
	var lastSnap utils.ProgressSnapshot
	req := newRequest(server.URL, outputPath, 8, 3)
	req.OnProgress = func(snap utils.ProgressSnapshot) { lastSnap = snap }

	result, err := Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	merged, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Equal(merged, data) {
		t.Fatal("merged output differs from origin data")
	}
	if _, err := os.Stat(filepath.Join(dir, utils.StagingDirName)); !os.IsNotExist(err) {
		t.Error("staging directory should be removed after a successful merge")
	}
	if len(result.Statuses) != 8 {
		t.Fatalf("expected 8 segment statuses, got %d", len(result.Statuses))
	}
	for _, status := range result.Statuses {
		if status.State != utils.SegmentSucceeded {
			t.Errorf("segment %d in state %s, want succeeded", status.Index, status.State)
		}
		if status.Retries != 0 {
			t.Errorf("segment %d used %d retries, want 0", status.Index, status.Retries)
		}
	}
	stages := make(map[string]bool)
	for _, timing := range result.Timings {
		stages[timing.Stage] = true
	}
	if !stages["fetch"] || !stages["merge"] {
		t.Errorf("expected fetch and merge timings, got %v", result.Timings)
	}
	if stages["verify"] {
		t.Error("verify stage should not run without opt-in")
	}
	if lastSnap.Total != int64(len(data)) {
		t.Errorf("final snapshot total = %d, want %d", lastSnap.Total, len(data))
	}
}

func TestDownloadNonDivisibleLength(t *testing.T) {
	data := testData(1000003)
	server := rangeServer(data)
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "odd.bin")
	result, err := Download(context.Background(), newRequest(server.URL, outputPath, 8, 3))
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() != int64(len(data)) {
		t.Errorf("output size = %d, want %d", info.Size(), len(data))
	}
	merged, _ := os.ReadFile(outputPath)
	if !bytes.Equal(merged, data) {
		t.Fatal("merged output differs from origin data")
	}
	if len(result.Statuses) != 8 {
		t.Errorf("expected 8 segments, got %d", len(result.Statuses))
	}
}

func TestDownloadChaosTransientFault(t *testing.T) {
	data := testData(256 * 1024)
	server := rangeServer(data)
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "image.vhd")
	req := newRequest(server.URL, outputPath, 4, 3)
	req.Chaos = utils.ChaosConfig{FailFirstSegment: true}

	result, err := Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	for _, status := range result.Statuses {
		if status.State != utils.SegmentSucceeded {
			t.Errorf("segment %d in state %s, want succeeded", status.Index, status.State)
		}
		wantRetries := 0
		if status.Index == 0 {
			wantRetries = 1
		}
		if status.Retries != wantRetries {
			t.Errorf("segment %d used %d retries, want %d", status.Index, status.Retries, wantRetries)
		}
	}
	merged, _ := os.ReadFile(outputPath)
	if !bytes.Equal(merged, data) {
		t.Fatal("merged output differs from origin data")
	}
}

func TestDownloadChaosHangExhaustsRetries(t *testing.T) {
	data := testData(128 * 1024)
	server := rangeServer(data)
	defer server.Close()

	dir := t.TempDir()
	outputPath := filepath.Join(dir, "image.vhd")
	req := newRequest(server.URL, outputPath, 4, 2)
	req.Chaos = utils.ChaosConfig{HangSegment: true, HangTimeout: 50 * time.Millisecond}

	result, err := Download(context.Background(), req)
	var exhausted *SegmentExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected SegmentExhaustedError, got %v", err)
	}
	if len(exhausted.Indices) != 1 || exhausted.Indices[0] != 1 {
		t.Errorf("expected segment 1 to be exhausted, got %v", exhausted.Indices)
	}
	if exhausted.RecommendedRetries != 4 {
		t.Errorf("expected recommendation of 4 retries, got %d", exhausted.RecommendedRetries)
	}
	for _, status := range result.Statuses {
		if status.Index == 1 {
			if status.State != utils.SegmentFailed {
				t.Errorf("segment 1 in state %s, want failed", status.State)
			}
			if status.Retries != 2 {
				t.Errorf("segment 1 recorded %d retries, want 2", status.Retries)
			}
		} else if status.State != utils.SegmentSucceeded {
			t.Errorf("segment %d in state %s, want succeeded", status.Index, status.State)
		}
	}
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Error("no output file should exist after a failed download")
	}
	// Staging is preserved on failure for diagnosis
	if _, err := os.Stat(filepath.Join(dir, utils.StagingDirName)); err != nil {
		t.Errorf("staging directory should be preserved after a failure: %v", err)
	}
}

func TestDownloadVerifyMismatch(t *testing.T) {
	data := testData(1024)
	server := rangeServer(data)
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "small.bin")
	req := newRequest(server.URL, outputPath, 1, 1)
	req.Verify = true
	req.ExpectedDigest = "0000000000000000000000000000000000000000000000000000000000000000"

	result, err := Download(context.Background(), req)
	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("merged file should be retained on digest mismatch: %v", err)
	}
	if result.Verified == nil || *result.Verified {
		t.Error("expected verified=false")
	}
	sum := sha256.Sum256(data)
	if result.LocalDigest != hex.EncodeToString(sum[:]) {
		t.Errorf("local digest = %s, want %s", result.LocalDigest, hex.EncodeToString(sum[:]))
	}
}

func TestDownloadVerifySuccess(t *testing.T) {
	data := testData(4096)
	server := rangeServer(data)
	defer server.Close()

	sum := sha256.Sum256(data)
	outputPath := filepath.Join(t.TempDir(), "small.bin")
	req := newRequest(server.URL, outputPath, 2, 1)
	req.Verify = true
	req.ExpectedDigest = hex.EncodeToString(sum[:])

	result, err := Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.Verified == nil || !*result.Verified {
		t.Error("expected verified=true")
	}
	stages := make(map[string]bool)
	for _, timing := range result.Timings {
		stages[timing.Stage] = true
	}
	if !stages["verify"] {
		t.Error("expected a verify stage timing")
	}
}

func TestDownloadCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "10485760")
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}
		// Trickle bytes so the download outlives the cancellation
		w.WriteHeader(http.StatusPartialContent)
		flusher, _ := w.(http.Flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(50 * time.Millisecond):
				w.Write(make([]byte, 1024))
				if flusher != nil {
					flusher.Flush()
				}
			}
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	outputPath := filepath.Join(dir, "big.vhd")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	_, err := Download(ctx, newRequest(server.URL, outputPath, 4, 3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Error("no output file should exist after cancellation")
	}
	// Policy: staging is left intact on cancellation; the next run clears it
	if _, err := os.Stat(filepath.Join(dir, utils.StagingDirName)); err != nil {
		t.Errorf("staging directory should remain after cancellation: %v", err)
	}
}

func TestDownloadProbeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	outputPath := filepath.Join(dir, "nope.bin")
	_, err := Download(context.Background(), newRequest(server.URL, outputPath, 4, 3))
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected ProbeError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, utils.StagingDirName)); !os.IsNotExist(err) {
		t.Error("no staging directory should be created when the probe fails")
	}
}

func TestDownloadKeepSegments(t *testing.T) {
	data := testData(64 * 1024)
	server := rangeServer(data)
	defer server.Close()

	dir := t.TempDir()
	outputPath := filepath.Join(dir, "keep.bin")
	req := newRequest(server.URL, outputPath, 4, 1)
	req.KeepSegments = true

	if _, err := Download(context.Background(), req); err != nil {
		t.Fatalf("Download: %v", err)
	}
	stagingDir := filepath.Join(dir, utils.StagingDirName)
	for i := range 4 {
		segPath := filepath.Join(stagingDir, fmt.Sprintf("%s%d", utils.SegmentFilePrefix, i))
		if _, err := os.Stat(segPath); err != nil {
			t.Errorf("segment file %d should be kept: %v", i, err)
		}
	}
}

func TestDownloadStaleStagingRemoved(t *testing.T) {
	data := testData(64 * 1024)
	server := rangeServer(data)
	defer server.Close()

	dir := t.TempDir()
	stagingDir := filepath.Join(dir, utils.StagingDirName)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(stagingDir, "segment_99")
	if err := os.WriteFile(stale, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	outputPath := filepath.Join(dir, "fresh.bin")
	if _, err := Download(context.Background(), newRequest(server.URL, outputPath, 2, 1)); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale segment file should have been removed at run start")
	}
	if _, err := os.Stat(stagingDir); !os.IsNotExist(err) {
		t.Error("staging directory should be removed after success")
	}
}

func TestDownloadOverwritesExistingOutput(t *testing.T) {
	data := testData(32 * 1024)
	server := rangeServer(data)
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "existing.bin")
	if err := os.WriteFile(outputPath, []byte("old contents"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Download(context.Background(), newRequest(server.URL, outputPath, 2, 1)); err != nil {
		t.Fatalf("Download: %v", err)
	}
	merged, _ := os.ReadFile(outputPath)
	if !bytes.Equal(merged, data) {
		t.Fatal("existing output was not replaced by the merged download")
	}
}
