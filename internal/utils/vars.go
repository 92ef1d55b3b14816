package utils

import (
	"errors"
	"regexp"
	"time"
)

const DefaultBufferSize = 1024 * 1024 * 8 // 8MB streaming buffer
const MergeBufferSize = 1024 * 1024 * 4   // 4MB merge copy buffer

const StagingDirName = ".segments"
const SegmentFilePrefix = "segment_"

const MaxConnectionsPerDownload = 64
const RetryBackoff = 2 * time.Second
const DefaultChaosHangTimeout = 5 * time.Second

const ToolUserAgent = "vhdget"

var ErrRangeRequestsNotSupported = errors.New("range requests are not supported")

var DigestRegex = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// Local-only User-Agent list
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/132.0.0.0",
	"curl/7.88.1",
	"Wget/1.21.4",
}
