package vhdhttp

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/SkylineCommunications/SLC-VHD-DownloadManager/internal/utils"
)

const digestSidecarLimit = 64 * 1024 // plenty for a "<hex>  <name>" line

// FetchExpectedDigest retrieves the published digest from the sidecar
// resource <url>.sha256 and returns the first whitespace-delimited token
// that looks like a SHA-256 hex digest. Absence is not fatal: any
// failure returns "".
func FetchExpectedDigest(ctx context.Context, client utils.HTTPDoer, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+".sha256", nil)
	if err != nil {
		return ""
	}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, digestSidecarLimit))
	if err != nil {
		return ""
	}
	for _, token := range strings.Fields(string(body)) {
		if utils.DigestRegex.MatchString(token) {
			return strings.ToLower(token)
		}
	}
	return ""
}

// verifyOutput computes the streaming SHA-256 of the merged output and
// compares it to the expected digest (case-insensitive). The merged file
// is retained on mismatch so the caller can inspect it.
func verifyOutput(ctx context.Context, outputPath, expected string) (local string, verified bool, err error) {
	local, err = utils.ComputeFileSHA256(ctx, outputPath)
	if err != nil {
		return "", false, err
	}
	if expected == "" {
		return local, false, nil
	}
	if !strings.EqualFold(local, expected) {
		return local, false, &VerificationError{Expected: strings.ToLower(expected), Actual: local}
	}
	return local, true, nil
}
