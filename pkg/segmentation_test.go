package fiberconv

import (
	"path/filepath"
	"testing"

	hdf5 "github.com/jmbenlloch/go-hdf5"
	"github.com/stretchr/testify/require"
)

// writeTestSegmentationMat writes a photometry .mat with ROImasks, ROIs and F
// laid out the way MATLAB dumps them, the HDF5 extents reversed. coordRows is
// the first MATLAB dimension of ROIs, 2 for a valid file.
func writeTestSegmentationMat(t *testing.T, numROIs, numRows, numColumns, numFrames, coordRows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "traces_ROIs.mat")
	file, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	require.NoError(t, err)
	defer file.Close()

	writeDataset := func(name string, dims []uint, data []float64) {
		space, err := hdf5.CreateSimpleDataspace(dims, nil)
		require.NoError(t, err)
		dset, err := file.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
		require.NoError(t, err)
		require.NoError(t, dset.Write(&data))
		require.NoError(t, dset.Close())
	}

	masks := make([]float64, numROIs*numColumns*numRows)
	for roi := 0; roi < numROIs; roi++ {
		// pixel (0, 0) of every mask
		masks[roi*numColumns*numRows] = 1
	}
	writeDataset("ROImasks", []uint{uint(numROIs), uint(numColumns), uint(numRows)}, masks)

	locations := make([]float64, numROIs*coordRows)
	for roi := 0; roi < numROIs; roi++ {
		for k := 0; k < coordRows; k++ {
			locations[roi*coordRows+k] = float64(10*roi + k)
		}
	}
	writeDataset("ROIs", []uint{uint(numROIs), uint(coordRows)}, locations)

	traces := make([]float64, numROIs*numFrames)
	writeDataset("F", []uint{uint(numROIs), uint(numFrames)}, traces)

	return path
}

func TestNewSegmentationExtractor(t *testing.T) {
	path := writeTestSegmentationMat(t, 5, 4, 3, 7, 2)

	extractor, err := NewSegmentationExtractor(path, 20.0, nil)
	require.NoError(t, err)

	require.Equal(t, 5, extractor.NumROIs())
	require.Equal(t, 7, extractor.NumFrames())
	rows, columns := extractor.ImageSize()
	require.Equal(t, 4, rows)
	require.Equal(t, 3, columns)

	for roi := 0; roi < 5; roi++ {
		want := [2]float64{float64(10 * roi), float64(10*roi + 1)}
		require.Equal(t, want, extractor.ROILocation(roi))
	}

	mask, err := extractor.ImageMask(2)
	require.NoError(t, err)
	require.Len(t, mask, 4*3)
	require.Equal(t, 1.0, mask[0])

	require.Equal(t, []int{0, 1, 2, 3, 4}, extractor.AcceptedList())
	require.Empty(t, extractor.RejectedList())
}

func TestNewSegmentationExtractorAcceptedList(t *testing.T) {
	path := writeTestSegmentationMat(t, 4, 2, 2, 3, 2)

	extractor, err := NewSegmentationExtractor(path, 20.0, []int{0, 2})
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, extractor.AcceptedList())
	require.Equal(t, []int{1, 3}, extractor.RejectedList())
}

func TestNewSegmentationExtractorLocationShape(t *testing.T) {
	path := writeTestSegmentationMat(t, 4, 2, 2, 3, 3)

	_, err := NewSegmentationExtractor(path, 20.0, nil)
	var shapeErr *ErrShapeMismatch
	require.ErrorAs(t, err, &shapeErr)
}

func TestNewSegmentationExtractorInvalidRate(t *testing.T) {
	_, err := NewSegmentationExtractor("traces_ROIs.mat", 0, nil)
	var configErr *ErrConfiguration
	require.ErrorAs(t, err, &configErr)
}
