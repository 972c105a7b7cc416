package fiberconv

import "fmt"

// SegmentationExtractor reads the fiber ROI masks and locations saved next to
// the photometry traces. The masks live in the same .mat file as the raw
// fluorescence, under ROImasks with MATLAB shape (height, width, rois) and
// ROIs with shape (2, rois).
type SegmentationExtractor struct {
	Path              string
	SamplingFrequency float64

	masks        []float64
	numRows      int
	numColumns   int
	numROIs      int
	numFrames    int
	roiLocations [][2]float64
	accepted     []int
	rejected     []int
}

func NewSegmentationExtractor(path string, samplingFrequency float64, acceptedList []int) (*SegmentationExtractor, error) {
	if samplingFrequency <= 0 {
		return nil, &ErrConfiguration{
			Parameter: "sampling_frequency",
			Reason:    fmt.Sprintf("must be positive, got %f", samplingFrequency),
		}
	}
	file, err := OpenMatFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	masks, shape, err := file.Cube("ROImasks")
	if err != nil {
		return nil, err
	}
	numRows, numColumns, numROIs := shape[0], shape[1], shape[2]

	locations, err := file.Matrix("ROIs")
	if err != nil {
		return nil, err
	}
	if locations.Frames != 2 || locations.Fibers != numROIs {
		return nil, &ErrShapeMismatch{What: "ROI locations", Want: numROIs, Got: locations.Fibers}
	}
	roiLocations := make([][2]float64, numROIs)
	for i := range roiLocations {
		roiLocations[i] = [2]float64{locations.At(0, i), locations.At(1, i)}
	}

	traces, err := file.Matrix("F")
	if err != nil {
		return nil, err
	}

	if acceptedList == nil {
		acceptedList = make([]int, numROIs)
		for i := range acceptedList {
			acceptedList[i] = i
		}
	}
	acceptedSet := make(map[int]bool, len(acceptedList))
	for _, id := range acceptedList {
		acceptedSet[id] = true
	}
	rejected := []int{}
	for i := 0; i < numROIs; i++ {
		if !acceptedSet[i] {
			rejected = append(rejected, i)
		}
	}

	return &SegmentationExtractor{
		Path:              path,
		SamplingFrequency: samplingFrequency,
		masks:             masks,
		numRows:           numRows,
		numColumns:        numColumns,
		numROIs:           numROIs,
		numFrames:         traces.Frames,
		roiLocations:      roiLocations,
		accepted:          acceptedList,
		rejected:          rejected,
	}, nil
}

func (e *SegmentationExtractor) NumFrames() int { return e.numFrames }

func (e *SegmentationExtractor) NumROIs() int { return e.numROIs }

// ImageSize returns (rows, columns) of the imaging plane.
func (e *SegmentationExtractor) ImageSize() (int, int) {
	return e.numRows, e.numColumns
}

func (e *SegmentationExtractor) AcceptedList() []int { return e.accepted }

func (e *SegmentationExtractor) RejectedList() []int { return e.rejected }

// ROILocation returns the (x, y) pixel coordinates of the ROI centroid.
func (e *SegmentationExtractor) ROILocation(roi int) [2]float64 {
	return e.roiLocations[roi]
}

// ImageMask returns the row-major mask of one ROI. The cube is stored with
// HDF5 extents (rois, columns, rows), so element (row, column) of mask n sits
// at n*columns*rows + column*rows + row.
func (e *SegmentationExtractor) ImageMask(roi int) ([]float64, error) {
	if roi < 0 || roi >= e.numROIs {
		return nil, &ErrShapeMismatch{What: "ROI index", Want: e.numROIs, Got: roi}
	}
	mask := make([]float64, e.numRows*e.numColumns)
	base := roi * e.numColumns * e.numRows
	for column := 0; column < e.numColumns; column++ {
		for row := 0; row < e.numRows; row++ {
			mask[row*e.numColumns+column] = e.masks[base+column*e.numRows+row]
		}
	}
	return mask, nil
}
