package fiberconv

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// RisingEdges returns the indices i where trace transitions from low to high,
// i.e. trace[i-1] == 0 and trace[i] != 0. Index 0 never qualifies. An all-zero
// or all-one trace yields an empty result.
func RisingEdges(trace []float64) []int {
	var edges []int
	for i := 1; i < len(trace); i++ {
		if trace[i-1] == 0 && trace[i] != 0 {
			edges = append(edges, i)
		}
	}
	return edges
}

// FrameTimestamps maps the rising edges of a TTL pulse trace through the
// parallel timestamp array. The rising-edge count of a channel defines the
// canonical frame count for whatever stream that channel was wired to.
func FrameTimestamps(trace []float64, timestamps []float64) ([]float64, error) {
	if len(trace) != len(timestamps) {
		return nil, &ErrShapeMismatch{What: "TTL trace and timestamps", Want: len(trace), Got: len(timestamps)}
	}
	edges := RisingEdges(trace)
	frameTimes := make([]float64, len(edges))
	for i, edge := range edges {
		frameTimes[i] = timestamps[edge]
	}
	return frameTimes, nil
}

type EventInterval struct {
	StartTime float64
	StopTime  float64
}

// EventIntervals extracts the (onset, offset) pairs from a discrete event
// trace mapped through the timestamp array. The stop time is the last high
// sample of each pulse. A pulse still high at the end of the trace closes on
// the final sample; a trace starting high discards the leading partial pulse.
func EventIntervals(trace []float64, timestamps []float64) ([]EventInterval, error) {
	if len(trace) != len(timestamps) {
		return nil, &ErrShapeMismatch{What: "event trace and timestamps", Want: len(trace), Got: len(timestamps)}
	}
	var intervals []EventInterval
	for _, onset := range RisingEdges(trace) {
		offset := onset
		for offset+1 < len(trace) && trace[offset+1] != 0 {
			offset++
		}
		intervals = append(intervals, EventInterval{
			StartTime: timestamps[onset],
			StopTime:  timestamps[offset],
		})
	}
	return intervals, nil
}

// Camera names wired to the TTL inputs of the acquisition board.
var videoTTLStreams = map[string]string{
	"body":   "ttlIn3",
	"top":    "ttlIn3",
	"video1": "ttlIn3",
	"lick":   "ttlIn4",
	"face":   "ttlIn4",
	"side":   "ttlIn4",
	"video2": "ttlIn4",
}

// TTLStreamFromVideoPath infers which TTL channel a behavior camera was wired
// to from its file name. An unrecognized name is an error; silently defaulting
// would corrupt cross-modal sync.
func TTLStreamFromVideoPath(path string) (string, error) {
	fileName := strings.ToLower(filepath.Base(path))
	for name, stream := range videoTTLStreams {
		if strings.Contains(fileName, name) {
			return stream, nil
		}
	}
	return "", &ErrConfiguration{
		Parameter: "video file path",
		Reason:    fmt.Sprintf("no TTL stream associated with video %q", filepath.Base(path)),
	}
}

var ttlStreamPattern = regexp.MustCompile(`(ttlIn1|ttlIn2)`)

// TTLStreamNameFromFilePath extracts the TTL stream name (ttlIn1 or ttlIn2)
// embedded in a processed behavior file name.
func TTLStreamNameFromFilePath(path string) (string, error) {
	match := ttlStreamPattern.FindString(path)
	if match == "" {
		return "", &ErrConfiguration{
			Parameter: "behavior file path",
			Reason:    fmt.Sprintf("TTL stream name (ttlIn1, ttlIn2) not found in %q", path),
		}
	}
	return match, nil
}
