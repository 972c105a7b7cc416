package fiberconv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRisingEdges(t *testing.T) {
	trace := []float64{0, 0, 1, 1, 0, 0, 0, 1, 0, 1, 1, 1, 0, 0, 0, 1}
	require.Equal(t, []int{2, 7, 9, 15}, RisingEdges(trace))
}

func TestRisingEdgesStartsHigh(t *testing.T) {
	// The leading partial pulse has no onset sample and is discarded
	trace := []float64{1, 1, 0, 1}
	require.Equal(t, []int{3}, RisingEdges(trace))
}

func TestRisingEdgesFlatTraces(t *testing.T) {
	require.Empty(t, RisingEdges([]float64{0, 0, 0, 0}))
	require.Empty(t, RisingEdges([]float64{1, 1, 1, 1}))
	require.Empty(t, RisingEdges(nil))
}

func TestFrameTimestamps(t *testing.T) {
	trace := []float64{0, 1, 0, 0, 1, 1}
	timestamps := []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5}

	frameTimes, err := FrameTimestamps(trace, timestamps)
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.4}, frameTimes)
}

func TestFrameTimestampsShapeMismatch(t *testing.T) {
	_, err := FrameTimestamps([]float64{0, 1}, []float64{0.0})
	var shapeErr *ErrShapeMismatch
	require.ErrorAs(t, err, &shapeErr)
}

func TestEventIntervals(t *testing.T) {
	trace := []float64{0, 0, 1, 1, 1, 0, 0, 1, 0}
	timestamps := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}

	intervals, err := EventIntervals(trace, timestamps)
	require.NoError(t, err)
	require.Equal(t, []EventInterval{
		{StartTime: 2, StopTime: 4},
		{StartTime: 7, StopTime: 7},
	}, intervals)
}

func TestEventIntervalsOpenAtEnd(t *testing.T) {
	// A pulse still high at the end closes on the final sample
	trace := []float64{0, 1, 1}
	timestamps := []float64{0, 1, 2}

	intervals, err := EventIntervals(trace, timestamps)
	require.NoError(t, err)
	require.Equal(t, []EventInterval{{StartTime: 1, StopTime: 2}}, intervals)
}

func TestTTLStreamFromVideoPath(t *testing.T) {
	cases := map[string]string{
		"/data/DL18/DL18_body_cam.avi":  "ttlIn3",
		"/data/DL18/DL18_Top.avi":       "ttlIn3",
		"/data/DL18/DL18_video1.avi":    "ttlIn3",
		"/data/DL18/DL18_lick_cam.avi":  "ttlIn4",
		"/data/DL18/DL18_FACE.avi":      "ttlIn4",
		"/data/DL18/DL18_side_view.avi": "ttlIn4",
		"/data/DL18/DL18_video2.avi":    "ttlIn4",
	}
	for path, want := range cases {
		stream, err := TTLStreamFromVideoPath(path)
		require.NoError(t, err, path)
		require.Equal(t, want, stream, path)
	}
}

func TestTTLStreamFromVideoPathUnknownCamera(t *testing.T) {
	_, err := TTLStreamFromVideoPath("/data/DL18/DL18_overhead.avi")
	var configErr *ErrConfiguration
	require.ErrorAs(t, err, &configErr)
}

func TestTTLStreamNameFromFilePath(t *testing.T) {
	stream, err := TTLStreamNameFromFilePath("DL18_20230501_ttlIn1_processed.mat")
	require.NoError(t, err)
	require.Equal(t, "ttlIn1", stream)

	stream, err = TTLStreamNameFromFilePath("DL18_20230501_ttlIn2_processed.mat")
	require.NoError(t, err)
	require.Equal(t, "ttlIn2", stream)

	_, err = TTLStreamNameFromFilePath("DL18_20230501_processed.mat")
	require.Error(t, err)
}
