package fiberconv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAcquisitionRejectsDuplicates(t *testing.T) {
	doc := NewDocument("test")
	require.NoError(t, doc.AddAcquisition(&ResponseSeries{Name: RawSeriesName}))
	require.Error(t, doc.AddAcquisition(&ResponseSeries{Name: RawSeriesName}))
	require.Equal(t, []string{RawSeriesName}, doc.AcquisitionNames())
}

func TestModuleGetOrCreate(t *testing.T) {
	doc := NewDocument("test")
	ophys := doc.Module("ophys", "Contains the processed fiber photometry data.")
	behavior := doc.Module("behavior", "Contains velocity signals.")

	// A second lookup returns the existing module, description unchanged
	again := doc.Module("ophys", "ignored")
	require.Same(t, ophys, again)
	require.Equal(t, "Contains the processed fiber photometry data.", again.Description)

	require.NotSame(t, ophys, behavior)
	require.Equal(t, []string{"ophys", "behavior"}, doc.ModuleNames())
}

func TestTimingIsRegular(t *testing.T) {
	require.True(t, Timing{Rate: 20, StartingTime: 1.5}.IsRegular())
	require.False(t, Timing{Timestamps: []float64{0, 0.1, 0.3}}.IsRegular())
}

func TestTruncateTimestampsStubRun(t *testing.T) {
	config := GetConfiguration()
	original := config
	config.StubTest = true
	config.StubFrames = 3
	SetConfiguration(config)
	t.Cleanup(func() { SetConfiguration(original) })

	timestamps := []float64{0, 1, 2, 3, 4}
	require.Equal(t, []float64{0, 1, 2}, truncateTimestamps(timestamps))

	// Shorter sessions pass through untouched
	require.Equal(t, []float64{0, 1}, truncateTimestamps([]float64{0, 1}))
}

func TestNewVideoInterface(t *testing.T) {
	video, err := NewVideoInterface("/data/DL18/DL18_body.avi")
	require.NoError(t, err)
	require.Equal(t, "ttlIn3", video.TTLStreamName)

	require.Error(t, video.AddToDocument(NewDocument("test"), "Video1"))

	_, err = NewVideoInterface("/data/DL18/DL18_unknown.avi")
	require.Error(t, err)
}
