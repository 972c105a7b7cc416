package fiberconv

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// The Hamamatsu .cxd decoding is owned by the Bio-Formats tooling. The bridge
// shells out to showinf for the OME metadata descriptor and to bfconvert for
// frame materialization.
const (
	showinfBinary   = "showinf"
	bfconvertBinary = "bfconvert"
)

var supportedImagingSuffixes = map[string]bool{
	".cxd":  true,
	".tif":  true,
	".tiff": true,
}

// CheckFileFormatIsSupported verifies the imaging readers recognize the file
// suffix.
func CheckFileFormatIsSupported(path string) error {
	suffix := filepath.Ext(path)
	if !supportedImagingSuffixes[suffix] {
		return &ErrUnsupportedFormat{Path: path, Suffix: suffix}
	}
	return nil
}

type omeChannel struct {
	ID string `xml:"ID,attr"`
}

type omePlane struct {
	DeltaT float64 `xml:"DeltaT,attr"`
}

type omePixels struct {
	SizeT         int          `xml:"SizeT,attr"`
	SizeC         int          `xml:"SizeC,attr"`
	SizeZ         int          `xml:"SizeZ,attr"`
	SizeY         int          `xml:"SizeY,attr"`
	SizeX         int          `xml:"SizeX,attr"`
	Type          string       `xml:"Type,attr"`
	TimeIncrement float64      `xml:"TimeIncrement,attr"`
	Channels      []omeChannel `xml:"Channel"`
	Planes        []omePlane   `xml:"Plane"`
}

type omeImage struct {
	Pixels omePixels `xml:"Pixels"`
}

type omeMetadata struct {
	Images []omeImage `xml:"Image"`
}

// ExtractOMEMetadata runs showinf on the file and parses the OME-XML output.
func ExtractOMEMetadata(path string) (*omeMetadata, error) {
	if err := CheckFileFormatIsSupported(path); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ErrNotFound{Path: path, Err: err}
	}
	output, err := exec.Command(showinfBinary, "-nopix", "-novalid", "-omexml-only", path).Output()
	if err != nil {
		return nil, fmt.Errorf("error running %s on %q: %w", showinfBinary, path, err)
	}
	// showinf may print warnings before the XML document
	if start := bytes.Index(output, []byte("<?xml")); start > 0 {
		output = output[start:]
	}
	var metadata omeMetadata
	if err := xml.Unmarshal(output, &metadata); err != nil {
		return nil, fmt.Errorf("error parsing OME metadata of %q: %w", path, err)
	}
	if len(metadata.Images) == 0 {
		return nil, &ErrMissingMetadata{Name: "Image", Table: "OME metadata of " + path}
	}
	return &metadata, nil
}

// ParseOMEMetadata converts an OME descriptor to the reader-facing form.
func ParseOMEMetadata(metadata *omeMetadata) ImagingMetadata {
	pixels := metadata.Images[0].Pixels

	samplingFrequency := 0.0
	if pixels.TimeIncrement > 0 {
		samplingFrequency = 1 / pixels.TimeIncrement
	}
	channelNames := make([]string, len(pixels.Channels))
	for i, channel := range pixels.Channels {
		channelNames[i] = channel.ID
	}

	return ImagingMetadata{
		NumFrames:         pixels.SizeT,
		SamplingFrequency: samplingFrequency,
		NumChannels:       pixels.SizeC,
		NumPlanes:         pixels.SizeZ,
		NumRows:           pixels.SizeY,
		NumColumns:        pixels.SizeX,
		DtypeName:         pixels.Type,
		ChannelNames:      channelNames,
	}
}

// CxdImagingExtractor reads Hamamatsu Photonics imaging data from .cxd files
// through the Bio-Formats bridge.
type CxdImagingExtractor struct {
	path         string
	meta         ImagingMetadata
	times        []float64
	frameIndices []int
	channelIndex int
	planeIndex   int
}

// NewCxdImagingExtractor opens a .cxd file. When the file multiplexes more
// than one channel or plane, the caller must select one. When the file
// multiplexes two excitation wavelengths, frameIndices selects the frames of
// one wavelength and the reported sampling frequency halves.
func NewCxdImagingExtractor(path string, channelName string, samplingFrequency float64, frameIndices []int) (*CxdImagingExtractor, error) {
	if suffix := filepath.Ext(path); suffix != ".cxd" {
		return nil, &ErrUnsupportedFormat{Path: path, Suffix: suffix}
	}
	omeMeta, err := ExtractOMEMetadata(path)
	if err != nil {
		return nil, err
	}
	meta := ParseOMEMetadata(omeMeta)

	channelIndex := 0
	if channelName == "" {
		if meta.NumChannels > 1 {
			return nil, &ErrConfiguration{
				Parameter: "channel_name",
				Reason:    fmt.Sprintf("more than one channel detected, specify one of %v", meta.ChannelNames),
			}
		}
	} else {
		channelIndex = -1
		for i, name := range meta.ChannelNames {
			if name == channelName {
				channelIndex = i
			}
		}
		if channelIndex < 0 {
			return nil, &ErrConfiguration{
				Parameter: "channel_name",
				Reason:    fmt.Sprintf("channel %q not in %v", channelName, meta.ChannelNames),
			}
		}
	}
	if meta.NumPlanes > 1 {
		return nil, &ErrConfiguration{
			Parameter: "plane_name",
			Reason:    fmt.Sprintf("more than one plane detected (%d)", meta.NumPlanes),
		}
	}

	if meta.SamplingFrequency <= 0 {
		if samplingFrequency <= 0 {
			return nil, &ErrConfiguration{
				Parameter: "sampling_frequency",
				Reason:    "sampling frequency not found in the file metadata, provide it manually",
			}
		}
		meta.SamplingFrequency = samplingFrequency
	}

	var times []float64
	pixels := omeMeta.Images[0].Pixels
	for _, plane := range pixels.Planes {
		if plane.DeltaT != 0 {
			times = make([]float64, len(pixels.Planes))
			for i, p := range pixels.Planes {
				times[i] = p.DeltaT
			}
			break
		}
	}

	meta, times, err = subselectFrames(meta, times, frameIndices)
	if err != nil {
		return nil, err
	}

	return &CxdImagingExtractor{
		path:         path,
		meta:         meta,
		times:        times,
		frameIndices: frameIndices,
		channelIndex: channelIndex,
	}, nil
}

func (e *CxdImagingExtractor) Metadata() ImagingMetadata {
	return e.meta
}

func (e *CxdImagingExtractor) NumFrames() int {
	return e.meta.NumFrames
}

func (e *CxdImagingExtractor) SamplingFrequency() float64 {
	return e.meta.SamplingFrequency
}

func (e *CxdImagingExtractor) Times() []float64 {
	return e.times
}

// Frames materializes the half-open range [start, end) through bfconvert.
// With a frame index subset, the covering native range is exported and the
// selected frames picked from it.
func (e *CxdImagingExtractor) Frames(start, end int) ([][]uint16, error) {
	if start < 0 || end > e.meta.NumFrames || start > end {
		return nil, &ErrShapeMismatch{What: "frame range", Want: e.meta.NumFrames, Got: end}
	}
	if start == end {
		return nil, nil
	}

	nativeStart, nativeEnd := start, end
	if e.frameIndices != nil {
		nativeStart = e.frameIndices[start]
		nativeEnd = e.frameIndices[end-1] + 1
	}

	tempDir, err := os.MkdirTemp("", "cxd-frames-")
	if err != nil {
		return nil, fmt.Errorf("error creating scratch directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempPath := filepath.Join(tempDir, "frames.tif")
	cmd := exec.Command(bfconvertBinary,
		"-overwrite", "-nogroup",
		"-channel", fmt.Sprintf("%d", e.channelIndex),
		"-range", fmt.Sprintf("%d", nativeStart), fmt.Sprintf("%d", nativeEnd-1),
		"-compression", "Uncompressed",
		e.path, tempPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("error running %s on %q: %w (%s)", bfconvertBinary, e.path, err, output)
	}

	stack, err := NewTiffImagingExtractor(tempPath, e.meta.SamplingFrequency)
	if err != nil {
		return nil, err
	}
	defer stack.Close()

	exported, err := stack.Frames(0, stack.NumFrames())
	if err != nil {
		return nil, err
	}

	if e.frameIndices == nil {
		return exported, nil
	}
	frames := make([][]uint16, 0, end-start)
	for _, index := range e.frameIndices[start:end] {
		exportedIndex := index - nativeStart
		if exportedIndex < 0 || exportedIndex >= len(exported) {
			return nil, &ErrShapeMismatch{What: "exported frame range", Want: len(exported), Got: exportedIndex}
		}
		frames = append(frames, exported[exportedIndex])
	}
	return frames, nil
}
