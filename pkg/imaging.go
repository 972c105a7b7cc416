package fiberconv

import "fmt"

// ImagingMetadata is the descriptor produced by the imaging format readers.
type ImagingMetadata struct {
	NumFrames         int
	SamplingFrequency float64
	NumChannels       int
	NumPlanes         int
	NumRows           int
	NumColumns        int
	DtypeName         string
	ChannelNames      []string
}

// ImagingExtractor is the boundary to the imaging format readers. Frames are
// read lazily; Frames(start, end) materializes the half-open range only.
type ImagingExtractor interface {
	Metadata() ImagingMetadata
	NumFrames() int
	SamplingFrequency() float64
	// Times returns the native frame times in seconds, nil when the source
	// carries none.
	Times() []float64
	// Frames reads the half-open frame range [start, end), each frame
	// flattened row-major to NumRows*NumColumns samples.
	Frames(start, end int) ([][]uint16, error)
}

// SelectDualWavelengthFrames converts an orig_frame_numbers array from a
// behavior log (1-based native indices) into 0-based frame indices within a
// multiplexed imaging file. The subset must be non-empty and fit the native
// frame count.
func SelectDualWavelengthFrames(numFrames int, origFrameNumbers []float64) ([]int, error) {
	if len(origFrameNumbers) == 0 {
		return nil, &ErrShapeMismatch{What: "frame indices", Want: 1, Got: 0}
	}
	if len(origFrameNumbers) > numFrames {
		return nil, &ErrShapeMismatch{What: "frame indices and native frames", Want: numFrames, Got: len(origFrameNumbers)}
	}
	indices := make([]int, len(origFrameNumbers))
	for i, number := range origFrameNumbers {
		index := int(number) - 1
		if index < 0 || index >= numFrames {
			return nil, &ErrShapeMismatch{What: fmt.Sprintf("frame index %d", int(number)), Want: numFrames, Got: index}
		}
		indices[i] = index
	}
	return indices, nil
}

// SplitDualWavelengthFrames derives the per-wavelength frame index subsets
// when two excitation wavelengths are multiplexed through one imaging file.
func SplitDualWavelengthFrames(numFrames int, firstFrameNumbers, secondFrameNumbers []float64) ([]int, []int, error) {
	first, err := SelectDualWavelengthFrames(numFrames, firstFrameNumbers)
	if err != nil {
		return nil, nil, err
	}
	second, err := SelectDualWavelengthFrames(numFrames, secondFrameNumbers)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

// subselectFrames applies a frame index subset to a metadata descriptor and
// native times. Selecting a subset halves the reported sampling frequency:
// the physical sensor captured both wavelengths at the combined rate.
func subselectFrames(meta ImagingMetadata, times []float64, frameIndices []int) (ImagingMetadata, []float64, error) {
	if frameIndices == nil {
		return meta, times, nil
	}
	if len(frameIndices) == 0 || len(frameIndices) > meta.NumFrames {
		return meta, nil, &ErrShapeMismatch{What: "frame indices and native frames", Want: meta.NumFrames, Got: len(frameIndices)}
	}
	meta.NumFrames = len(frameIndices)
	meta.SamplingFrequency = meta.SamplingFrequency / 2
	if times != nil {
		selected := make([]float64, len(frameIndices))
		for i, index := range frameIndices {
			selected[i] = times[index]
		}
		times = selected
	}
	return meta, times, nil
}
