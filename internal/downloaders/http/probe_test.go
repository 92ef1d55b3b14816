package vhdhttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

func TestProbeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Header().Set("Accept-Ranges", "bytes")
	}))
	defer server.Close()

	client := utils.NewVHDHTTPClient(utils.HTTPClientConfig{})
	meta, err := probe(context.Background(), client, server.URL)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if meta.Length != 1000 {
		t.Errorf("expected length 1000, got %d", meta.Length)
	}
	if !meta.RangeSupport {
		t.Error("expected range support")
	}
}

func TestProbeMissingContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Length for HEAD
	}))
	defer server.Close()

	client := utils.NewVHDHTTPClient(utils.HTTPClientConfig{})
	_, err := probe(context.Background(), client, server.URL)
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected ProbeError, got %v", err)
	}
}

func TestProbeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := utils.NewVHDHTTPClient(utils.HTTPClientConfig{})
	_, err := probe(context.Background(), client, server.URL)
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected ProbeError, got %v", err)
	}
	if probeErr.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", probeErr.Status)
	}
}

func TestProbeRangeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Header().Set("Accept-Ranges", "none")
	}))
	defer server.Close()

	client := utils.NewVHDHTTPClient(utils.HTTPClientConfig{})
	_, err := probe(context.Background(), client, server.URL)
	if !errors.Is(err, utils.ErrRangeRequestsNotSupported) {
		t.Fatalf("expected ErrRangeRequestsNotSupported, got %v", err)
	}
}
