package utils

import (
	"context"
	"time"
)

type Downloader interface {
	ValidateJob(job *VHDJob) error
	BuildJob(ctx context.Context, job *VHDJob) error
	Download(ctx context.Context, job *VHDJob) error
}

// VHDJob is the unit of work the scheduler hands to a downloader.
type VHDJob struct {
	ID               string
	JobType          string
	URL              string
	OutputPath       string
	Connections      int
	MaxRetries       int
	ExpectedDigest   string
	Verify           bool
	KeepSegments     bool
	Chaos            ChaosConfig
	ProgressFunc     func(snapshot ProgressSnapshot)
	Metadata         map[string]any
	HTTPClientConfig HTTPClientConfig
	Result           *Result
}

// DownloadRequest is the engine's input, assembled by the outer layers.
type DownloadRequest struct {
	URL            string
	OutputPath     string
	Connections    int
	MaxRetries     int
	ExpectedDigest string
	Verify         bool
	KeepSegments   bool
	Chaos          ChaosConfig
	OnProgress     func(snapshot ProgressSnapshot)
	ClientConfig   HTTPClientConfig
}

// ChaosConfig injects deterministic faults for testing. The CLI --chaos
// flag enables both canonical faults; tests may enable them separately.
type ChaosConfig struct {
	FailFirstSegment bool          // segment 0 fails its first attempt with a synthetic HTTP error
	HangSegment      bool          // segment 1 hangs per attempt until HangTimeout
	HangTimeout      time.Duration // per-attempt deadline for the hanging segment
}

func (c ChaosConfig) Enabled() bool {
	return c.FailFirstSegment || c.HangSegment
}

type OriginMetadata struct {
	Length       int64
	RangeSupport bool
}

// Segment is one contiguous byte interval of the origin file,
// fetched independently into its own staging file.
type Segment struct {
	Index int
	Start int64
	End   int64 // inclusive
	Path  string
}

func (s Segment) Length() int64 {
	return s.End - s.Start + 1
}

type SegmentState int

const (
	SegmentPending SegmentState = iota
	SegmentRetrying
	SegmentSucceeded
	SegmentFailed
)

func (s SegmentState) String() string {
	switch s {
	case SegmentPending:
		return "pending"
	case SegmentRetrying:
		return "retrying"
	case SegmentSucceeded:
		return "succeeded"
	case SegmentFailed:
		return "failed"
	}
	return "unknown"
}

// SegmentStatus is the slot fetcher i writes and the aggregator reads.
type SegmentStatus struct {
	Index     int
	State     SegmentState
	Retries   int
	LastError string
}

// ProgressSnapshot is one tick of the aggregator's view.
type ProgressSnapshot struct {
	Downloaded int64
	Total      int64
	Percent    float64
	Speed      float64 // bytes per second
	ETA        time.Duration
	HasETA     bool
	Elapsed    time.Duration
	Statuses   []SegmentStatus
}

type StageTiming struct {
	Stage string
	Start time.Time
	End   time.Time
}

func (t StageTiming) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Result is the engine's exit record, produced on success and failure.
type Result struct {
	URL            string
	OutputPath     string
	Connections    int
	Timings        []StageTiming
	LocalDigest    string
	ExpectedDigest string
	Verified       *bool
	Statuses       []SegmentStatus
}

type DownloadEntry struct {
	OutputPath string `yaml:"op"`
	URL        string `yaml:"link"`
	Type       string `yaml:"type"`
}
