package vhdhttp

import (
	"context"
	"net/http"
	"strconv"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

// probe issues a HEAD request and returns the origin's total length.
// Range support is assumed from the presence of Content-Length and is
// proven on the first byte-range fetch; a missing length is fatal.
func probe(ctx context.Context, client utils.HTTPDoer, url string) (utils.OriginMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return utils.OriginMetadata{}, &ProbeError{URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return utils.OriginMetadata{}, &ProbeError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.OriginMetadata{}, &ProbeError{URL: url, Status: resp.StatusCode}
	}
	if resp.Header.Get("Accept-Ranges") == "none" {
		return utils.OriginMetadata{}, &ProbeError{URL: url, Reason: "origin rejects range requests", Err: utils.ErrRangeRequestsNotSupported}
	}
	contentLength := resp.Header.Get("Content-Length")
	if contentLength == "" {
		return utils.OriginMetadata{}, &ProbeError{URL: url, Reason: "server didn't provide Content-Length header"}
	}
	size, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil {
		return utils.OriginMetadata{}, &ProbeError{URL: url, Reason: "invalid Content-Length header", Err: err}
	}
	if size <= 0 {
		return utils.OriginMetadata{}, &ProbeError{URL: url, Reason: "invalid file size reported by server"}
	}
	return utils.OriginMetadata{Length: size, RangeSupport: true}, nil
}
