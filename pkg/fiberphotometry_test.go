package fiberconv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateRegularSeriesRate(t *testing.T) {
	rate, regular := CalculateRegularSeriesRate([]float64{0.0, 0.05, 0.1, 0.15})
	require.True(t, regular)
	require.InDelta(t, 20.0, rate, 1e-9)
}

func TestCalculateRegularSeriesRateIrregular(t *testing.T) {
	_, regular := CalculateRegularSeriesRate([]float64{0.0, 0.05, 0.2})
	require.False(t, regular)

	_, regular = CalculateRegularSeriesRate([]float64{0.0})
	require.False(t, regular)

	// Duplicated timestamps collapse the mean step to zero
	_, regular = CalculateRegularSeriesRate([]float64{1.0, 1.0, 1.0})
	require.False(t, regular)
}

func testFiberLocations(n int) []FiberLocation {
	locations := make([]FiberLocation, n)
	for i := range locations {
		locations[i] = FiberLocation{
			Coordinates: [3]float64{0.5, 1.1, -2.8},
			BrainArea:   "CP",
			Included:    true,
		}
	}
	return locations
}

func TestAddFiberPhotometrySeries(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)
	require.NoError(t, meta.UpdateForExcitation("dLight1.3b", 470))

	doc := NewDocument("test")
	data := &Matrix{Data: make([]float64, 4*3), Frames: 4, Fibers: 3}
	timestamps := []float64{0.0, 0.05, 0.1, 0.15}

	err := AddFiberPhotometrySeries(doc, meta, data, timestamps, RawSeriesName, testFiberLocations(3), SeriesOptions{})
	require.NoError(t, err)

	require.Len(t, doc.FiberTable.Rows, 3)
	require.Equal(t, "dLight1.3b", doc.FiberTable.Rows[0].Indicator)

	series, ok := doc.Acquisition(RawSeriesName)
	require.True(t, ok)
	require.Equal(t, []int{0, 1, 2}, series.Region.Rows)
	require.True(t, series.Timing.IsRegular())
	require.InDelta(t, 20.0, series.Timing.Rate, 1e-9)

	// Devices the series references are registered in the document
	for _, name := range []string{"OpticalFiber1", "dLight1.3b", "ExcitationSource470", "Photodetector1", "DichroicMirror2", "OpticalFilter470"} {
		_, ok := doc.GetDevice(name)
		require.True(t, ok, name)
	}
}

func TestAddFiberPhotometrySeriesSharedRegion(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)
	require.NoError(t, meta.UpdateForExcitation("dLight1.3b", 470))

	doc := NewDocument("test")
	data := &Matrix{Data: make([]float64, 4*2), Frames: 4, Fibers: 2}
	timestamps := []float64{0.0, 0.05, 0.1, 0.15}
	locations := testFiberLocations(2)

	require.NoError(t, AddFiberPhotometrySeries(doc, meta, data, timestamps, RawSeriesName, locations, SeriesOptions{}))

	baseline, err := meta.DerivedSeries("Baseline", "Baseline")
	require.NoError(t, err)
	require.NoError(t, AddFiberPhotometrySeries(doc, meta, data, timestamps, baseline.Name, locations,
		SeriesOptions{Container: ContainerOphys}))

	corrected, err := meta.DerivedSeries("DfOverF", "Baseline corrected (DF/F)")
	require.NoError(t, err)
	require.NoError(t, AddFiberPhotometrySeries(doc, meta, data, timestamps, corrected.Name, locations,
		SeriesOptions{Container: ContainerOphys}))

	// The fiber table is populated once, and later series share the raw
	// series' region instead of recomputing it
	require.Len(t, doc.FiberTable.Rows, 2)
	raw, _ := doc.Acquisition(RawSeriesName)
	ophys, ok := doc.modules["ophys"]
	require.True(t, ok)
	require.Len(t, ophys.ResponseSeries, 2)
	require.Same(t, raw.Region, ophys.ResponseSeries[0].Region)
	require.Same(t, raw.Region, ophys.ResponseSeries[1].Region)
}

func TestAddFiberPhotometrySeriesLocationMismatch(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)
	require.NoError(t, meta.UpdateForExcitation("dLight1.3b", 470))

	doc := NewDocument("test")
	data := &Matrix{Data: make([]float64, 4*3), Frames: 4, Fibers: 3}
	timestamps := []float64{0.0, 0.05, 0.1, 0.15}

	err := AddFiberPhotometrySeries(doc, meta, data, timestamps, RawSeriesName, testFiberLocations(2), SeriesOptions{})
	var shapeErr *ErrShapeMismatch
	require.ErrorAs(t, err, &shapeErr)
}

func TestAddFiberPhotometrySeriesTimestampMismatch(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)
	require.NoError(t, meta.UpdateForExcitation("dLight1.3b", 470))

	doc := NewDocument("test")
	data := &Matrix{Data: make([]float64, 4*3), Frames: 4, Fibers: 3}

	err := AddFiberPhotometrySeries(doc, meta, data, []float64{0.0, 0.05}, RawSeriesName, testFiberLocations(3), SeriesOptions{})
	var shapeErr *ErrShapeMismatch
	require.ErrorAs(t, err, &shapeErr)
}

func TestAddFiberPhotometrySeriesInvalidContainer(t *testing.T) {
	meta := loadTestPhotometryMetadata(t)
	require.NoError(t, meta.UpdateForExcitation("dLight1.3b", 470))

	doc := NewDocument("test")
	data := &Matrix{Data: make([]float64, 2*1), Frames: 2, Fibers: 1}

	err := AddFiberPhotometrySeries(doc, meta, data, []float64{0.0, 0.05}, RawSeriesName, testFiberLocations(1),
		SeriesOptions{Container: "general"})
	var configErr *ErrConfiguration
	require.ErrorAs(t, err, &configErr)
}
