package vhdhttp

import (
	"fmt"
	"sort"
	"strings"
)

// ProbeError means the HEAD request could not establish the origin
// metadata. No download work has been done when it is returned.
type ProbeError struct {
	URL    string
	Status int
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %v", e.URL, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("probe %s: unexpected status code %d", e.URL, e.Status)
	}
	return fmt.Sprintf("probe %s: %s", e.URL, e.Reason)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// SegmentExhaustedError reports every segment that ran out of retries.
type SegmentExhaustedError struct {
	Indices            []int
	LastErrors         map[int]string
	RecommendedRetries int
}

func (e *SegmentExhaustedError) Error() string {
	sorted := make([]int, len(e.Indices))
	copy(sorted, e.Indices)
	sort.Ints(sorted)
	parts := make([]string, 0, len(sorted))
	for _, i := range sorted {
		parts = append(parts, fmt.Sprintf("%d (%s)", i, e.LastErrors[i]))
	}
	return fmt.Sprintf("retries exhausted for %d segment(s): %s; retry with --retries=%d",
		len(sorted), strings.Join(parts, ", "), e.RecommendedRetries)
}

// MergeError is fatal; the temporary output is unlinked before it is
// returned. Index is -1 for output-level failures.
type MergeError struct {
	Index int
	Op    string
	Err   error
}

func (e *MergeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("merge segment %d: %s: %v", e.Index, e.Op, e.Err)
	}
	return fmt.Sprintf("merge output: %s: %v", e.Op, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// VerificationError reports a digest mismatch. The merged file is
// retained on disk so the caller can inspect it.
type VerificationError struct {
	Expected string
	Actual   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("digest mismatch: expected %s, computed %s", e.Expected, e.Actual)
}
